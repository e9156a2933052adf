package rerank

import (
	"context"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/utils"
)

// DiversityFilter 是多样性重排：限制同类别、同创作者的重复出现，并截断到 limit。
//
// 算法（贪心、单遍、保持输入的分数顺序）：
//  1. 按顺序遍历排序结果，统计已入选的类别数与创作者数
//  2. 类别与创作者都未达上限时入选；任一达到上限则延后
//     （Lenient 为 true 时，只要任一未达上限即入选）
//  3. 分数 >= AlwaysIncludeScore 的候选不受上限约束
//  4. 入选数达到 limit 或输入耗尽时停止
//
// 第一遍不足 limit 时，默认做第二遍放宽：按分数顺序补入被延后的候选，
// 放宽入选的候选写入 label diversity=relaxed。DisableRelax 为 true 时只做第一遍，
// 行为与旧版一致（可能返回不足 limit 的结果）。
type DiversityFilter struct {
	// MaxPerCategoryBeforeRelax 同类别入选上限，默认 5
	MaxPerCategoryBeforeRelax int

	// MaxPerCreatorBeforeRelax 同创作者入选上限，默认 10
	MaxPerCreatorBeforeRelax int

	// AlwaysIncludeScore 分数达到此值的候选总是入选；0 表示关闭
	AlwaysIncludeScore float64

	// Lenient 为 true 时，类别或创作者任一未达上限即可入选
	Lenient bool

	// DisableRelax 关闭第二遍放宽
	DisableRelax bool

	// Limit 是未设置 RecommendContext.Limit 时的截断数量；<= 0 表示不截断
	Limit int
}

// NewDiversityFilter 创建默认上限（类别 5、创作者 10）的多样性重排。
func NewDiversityFilter() *DiversityFilter {
	return &DiversityFilter{
		MaxPerCategoryBeforeRelax: core.DefaultMaxPerCategoryBeforeRelax,
		MaxPerCreatorBeforeRelax:  core.DefaultMaxPerCreatorBeforeRelax,
	}
}

func (d *DiversityFilter) Name() string        { return "rerank.diversity" }
func (d *DiversityFilter) Kind() pipeline.Kind { return pipeline.KindReRank }

func (d *DiversityFilter) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.ScoredCandidate,
) ([]*core.ScoredCandidate, error) {
	limit := d.Limit
	if rctx != nil && rctx.Limit > 0 {
		limit = rctx.Limit
	}
	if limit <= 0 {
		limit = len(items)
	}
	return d.Filter(items, limit), nil
}

// Filter 对已排序的候选做多样性截断，返回不超过 limit 个候选，结果不含重复 ID。
func (d *DiversityFilter) Filter(ranked []*core.ScoredCandidate, limit int) []*core.ScoredCandidate {
	if limit <= 0 || len(ranked) == 0 {
		return []*core.ScoredCandidate{}
	}

	maxCategory := d.MaxPerCategoryBeforeRelax
	if maxCategory <= 0 {
		maxCategory = core.DefaultMaxPerCategoryBeforeRelax
	}
	maxCreator := d.MaxPerCreatorBeforeRelax
	if maxCreator <= 0 {
		maxCreator = core.DefaultMaxPerCreatorBeforeRelax
	}

	categoriesSeen := make(map[string]int, 16)
	creatorsSeen := make(map[string]int, 16)
	admittedIDs := make(map[string]bool, limit)
	out := make([]*core.ScoredCandidate, 0, min(limit, len(ranked)))
	deferred := make([]*core.ScoredCandidate, 0)

	for _, c := range ranked {
		if len(out) >= limit {
			break
		}
		id := c.ID()
		if id == "" || admittedIDs[id] {
			continue
		}
		category, creator := c.Item.Category, c.Item.CreatorID
		underCategory := categoriesSeen[category] < maxCategory
		underCreator := creatorsSeen[creator] < maxCreator

		admit := underCategory && underCreator
		if d.Lenient {
			admit = underCategory || underCreator
		}
		if !admit && d.AlwaysIncludeScore > 0 && c.Score >= d.AlwaysIncludeScore {
			admit = true
			c.PutLabel("diversity", utils.Label{Value: "always_include", Source: utils.SourceRerank})
		}
		if !admit {
			deferred = append(deferred, c)
			continue
		}
		categoriesSeen[category]++
		creatorsSeen[creator]++
		admittedIDs[id] = true
		out = append(out, c)
	}

	if d.DisableRelax {
		return out
	}
	for _, c := range deferred {
		if len(out) >= limit {
			break
		}
		id := c.ID()
		if admittedIDs[id] {
			continue
		}
		admittedIDs[id] = true
		c.PutLabel("diversity", utils.Label{Value: "relaxed", Source: utils.SourceRerank})
		out = append(out, c)
	}
	return out
}
