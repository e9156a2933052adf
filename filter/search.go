package filter

import (
	"context"
	"slices"
	"strings"

	"github.com/rushteam/feedrank/core"
)

// CategoryFilter 只保留分类在名单中的候选（精确匹配）。
type CategoryFilter struct {
	categories map[string]bool
}

// NewCategoryFilter 创建分类过滤器，至少需要一个非空分类。
func NewCategoryFilter(categories ...string) (*CategoryFilter, error) {
	set := toSet(categories)
	if len(set) == 0 {
		return nil, core.InvalidArgument(core.ModuleFilter, "filter: category filter needs at least one category")
	}
	return &CategoryFilter{categories: set}, nil
}

func (f *CategoryFilter) Name() string { return "filter.category" }

func (f *CategoryFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	if c == nil || c.Item == nil {
		return true, nil
	}
	return !f.categories[c.Item.Category], nil
}

// SearchIntent 是从查询词推断出的检索意图。
type SearchIntent string

const (
	IntentGeneral       SearchIntent = "general"
	IntentTutorial      SearchIntent = "tutorial"
	IntentEntertainment SearchIntent = "entertainment"
	IntentNews          SearchIntent = "news"
	IntentMusic         SearchIntent = "music"
	IntentGaming        SearchIntent = "gaming"
)

// intentRules 按顺序匹配，第一个命中的关键词决定意图。
// 命中意图后，候选需属于 category 或带有 tag。
var intentRules = []struct {
	intent   SearchIntent
	keywords []string
	category string
	tag      string
}{
	{IntentTutorial, []string{"how to", "tutorial", "learn", "guide", "step by step"}, "education", "tutorial"},
	{IntentEntertainment, []string{"funny", "comedy", "entertainment", "joke", "meme"}, "entertainment", "funny"},
	{IntentNews, []string{"news", "update", "latest", "breaking", "today"}, "news", "news"},
	{IntentMusic, []string{"music", "song", "album", "artist", "lyrics"}, "music", "music"},
	{IntentGaming, []string{"game", "gaming", "play", "walkthrough", "review"}, "gaming", "gaming"},
}

// DetectIntent 按关键词（子串、忽略大小写）推断意图，未命中返回 IntentGeneral。
func DetectIntent(query string) SearchIntent {
	q := strings.ToLower(query)
	for _, r := range intentRules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.intent
			}
		}
	}
	return IntentGeneral
}

// Query 是解析后的检索条件。
//
// 语法：
//   - 空白分隔的词均需出现在分类或标签文本中（子串匹配）
//   - -term 排除包含 term 的候选
//   - "exact phrase" 存在时只做短语匹配，忽略其余词
type Query struct {
	Raw    string
	Terms  []string
	Phrase string
	Intent SearchIntent
}

// ParseQuery 解析查询串。
func ParseQuery(raw string) Query {
	q := Query{
		Raw:    raw,
		Terms:  strings.Fields(strings.ToLower(raw)),
		Intent: DetectIntent(raw),
	}
	if i := strings.IndexByte(raw, '"'); i >= 0 {
		if j := strings.IndexByte(raw[i+1:], '"'); j > 0 {
			q.Phrase = strings.ToLower(raw[i+1 : i+1+j])
		}
	}
	return q
}

// Matches 返回 item 是否满足文本条件与意图条件。
func (q Query) Matches(item *core.ContentItem) bool {
	if item == nil {
		return false
	}
	return q.matchText(searchableText(item)) && q.matchIntent(item)
}

func (q Query) matchText(text string) bool {
	if q.Phrase != "" {
		return strings.Contains(text, q.Phrase)
	}
	for _, term := range q.Terms {
		if excluded, ok := strings.CutPrefix(term, "-"); ok {
			if excluded != "" && strings.Contains(text, excluded) {
				return false
			}
			continue
		}
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func (q Query) matchIntent(item *core.ContentItem) bool {
	for _, r := range intentRules {
		if r.intent == q.Intent {
			return item.Category == r.category || slices.Contains(item.Tags, r.tag)
		}
	}
	return true
}

func searchableText(item *core.ContentItem) string {
	parts := make([]string, 0, len(item.Tags)+1)
	parts = append(parts, item.Tags...)
	parts = append(parts, item.Category)
	return strings.ToLower(strings.Join(parts, " "))
}

// QueryFilter 过滤不满足检索条件的候选。
type QueryFilter struct {
	Query Query
}

// NewQueryFilter 解析 query 并创建过滤器；query 不能为空。
func NewQueryFilter(query string) (*QueryFilter, error) {
	if strings.TrimSpace(query) == "" {
		return nil, core.InvalidArgument(core.ModuleFilter, "filter: query is empty")
	}
	return &QueryFilter{Query: ParseQuery(query)}, nil
}

func (f *QueryFilter) Name() string { return "filter.query" }

func (f *QueryFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	if c == nil {
		return true, nil
	}
	return !f.Query.Matches(c.Item), nil
}
