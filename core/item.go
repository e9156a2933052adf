package core

import (
	"time"

	"github.com/rushteam/feedrank/pkg/utils"
)

// Metrics 是内容的互动计数。只增不减，由外部互动事件累加。
type Metrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// Valid 返回所有计数是否非负。
func (m Metrics) Valid() bool {
	return m.Views >= 0 && m.Likes >= 0 && m.Comments >= 0 && m.Shares >= 0
}

// IsZero 返回是否没有任何互动。
func (m Metrics) IsZero() bool {
	return m.Views == 0 && m.Likes == 0 && m.Comments == 0 && m.Shares == 0
}

// Add 累加一次互动；未知类型只计一次曝光。
func (m Metrics) Add(t InteractionType) Metrics {
	switch t {
	case InteractionLike:
		m.Likes++
	case InteractionComment:
		m.Comments++
	case InteractionShare:
		m.Shares++
	default:
		m.Views++
	}
	return m
}

// ContentItem 是一条内容（视频/帖子），推荐链路中的候选单元。
// ID、CreatorID、PublishedAt 创建后不可变；Tags 缺省为空集合，不会是 nil 语义上的"未知"。
type ContentItem struct {
	ID          string   `json:"id" validate:"required"`
	CreatorID   string   `json:"creatorId"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Metrics     Metrics  `json:"metrics"`
	PublishedAt int64    `json:"publishedAt"` // epoch 毫秒
}

// Published 返回发布时间。
func (c *ContentItem) Published() time.Time {
	return time.UnixMilli(c.PublishedAt)
}

// ScoredCandidate 是排序过程中的中间结果：内容 + 综合分 + 各策略未加权分。
// Breakdown 用于 explain / 测试；Labels 记录链路上的决策（命中过滤、多样性放宽等）。
type ScoredCandidate struct {
	Item      *ContentItem
	Score     float64
	Breakdown map[Strategy]float64
	Labels    map[string]utils.Label
}

// NewScoredCandidate 包装一个候选内容，分数为 0。
func NewScoredCandidate(item *ContentItem) *ScoredCandidate {
	return &ScoredCandidate{
		Item:      item,
		Breakdown: make(map[Strategy]float64),
		Labels:    make(map[string]utils.Label),
	}
}

// ID 返回内容 ID；nil 安全。
func (c *ScoredCandidate) ID() string {
	if c == nil || c.Item == nil {
		return ""
	}
	return c.Item.ID
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *ScoredCandidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}
