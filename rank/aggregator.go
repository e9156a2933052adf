// Package rank 把多个策略打分器的结果按权重合并为一个有序列表。
package rank

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/utils"
	"github.com/rushteam/feedrank/score"
)

// Aggregator 是加权聚合排序 Node。
//
//	score = Σ weight_i · calc_i(item)
//
// - Breakdown 记录每个策略的未加权分，用于 explain / 测试
// - 权重不自动归一化，由调用方保证总和合理（默认 0.4 / 0.4 / 0.2）
// - 打分器返回错误或非有限值时该策略记 0 分，并上报 DATA_QUALITY
// - 排序：score 降序 → views 降序 → publishedAt 降序 → id 升序，全序且可复现
// - 达到爆款阈值的候选写入 label viral=true
type Aggregator struct {
	// Calculators 是可用的打分器，为空时使用 score.DefaultCalculators()
	Calculators score.Calculators

	// Strategies 是默认策略组合，为空时使用 core.DefaultStrategies()；
	// RecommendContext.Strategies 非空时以请求为准
	Strategies []core.WeightedStrategy

	// Viral 是爆款阈值，为空时使用 core.DefaultViralThresholds()
	Viral *core.ViralThresholds
}

// NewAggregator 创建使用默认打分器与默认策略的聚合器。
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Name() string        { return "rank.weighted" }
func (a *Aggregator) Kind() pipeline.Kind { return pipeline.KindRank }

// Process 实现 Node 接口：对候选就地打分并排序。
func (a *Aggregator) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.ScoredCandidate,
) ([]*core.ScoredCandidate, error) {
	if rctx == nil {
		return nil, core.InvalidArgument(core.ModuleRank, "rank: nil recommend context")
	}
	in := score.NewInput(rctx.Signals, rctx.User, rctx.Now)
	strategies := rctx.Strategies
	if len(strategies) == 0 {
		strategies = a.Strategies
	}
	issues, err := a.rank(in, items, strategies)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		rctx.ReportDataQuality(issue)
	}
	return items, nil
}

// Combine 对内容列表按策略加权打分并排序，返回新的候选列表及数据质量问题。
// strategies 为空时使用 Aggregator 的默认组合。
func (a *Aggregator) Combine(
	signals core.SignalStore,
	items []*core.ContentItem,
	strategies []core.WeightedStrategy,
	uctx *core.UserContext,
	now time.Time,
) ([]*core.ScoredCandidate, []core.DataQualityIssue, error) {
	cands := make([]*core.ScoredCandidate, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		cands = append(cands, core.NewScoredCandidate(it))
	}
	issues, err := a.rank(score.NewInput(signals, uctx, now), cands, strategies)
	if err != nil {
		return nil, nil, err
	}
	return cands, issues, nil
}

// ValidateStrategies 校验策略组合：名称已注册、不重复、权重为非负有限值。
func (a *Aggregator) ValidateStrategies(strategies []core.WeightedStrategy) error {
	calcs := a.calculators()
	seen := make(map[core.Strategy]bool, len(strategies))
	for _, ws := range strategies {
		if _, ok := calcs[ws.Name]; !ok {
			return core.InvalidArgument(core.ModuleRank, fmt.Sprintf("rank: unknown strategy %q", ws.Name))
		}
		if seen[ws.Name] {
			return core.InvalidArgument(core.ModuleRank, fmt.Sprintf("rank: duplicate strategy %q", ws.Name))
		}
		seen[ws.Name] = true
		if math.IsNaN(ws.Weight) || math.IsInf(ws.Weight, 0) || ws.Weight < 0 {
			return core.InvalidArgument(core.ModuleRank, fmt.Sprintf("rank: invalid weight %v for %q", ws.Weight, ws.Name))
		}
	}
	return nil
}

func (a *Aggregator) calculators() score.Calculators {
	if len(a.Calculators) == 0 {
		return score.DefaultCalculators()
	}
	return a.Calculators
}

func (a *Aggregator) rank(in *score.Input, cands []*core.ScoredCandidate, strategies []core.WeightedStrategy) ([]core.DataQualityIssue, error) {
	if len(strategies) == 0 {
		strategies = a.Strategies
	}
	if len(strategies) == 0 {
		strategies = core.DefaultStrategies()
	}
	if err := a.ValidateStrategies(strategies); err != nil {
		return nil, err
	}

	calcs := a.calculators()
	viral := core.DefaultViralThresholds()
	if a.Viral != nil {
		viral = *a.Viral
	}

	var issues []core.DataQualityIssue
	for _, c := range cands {
		if c == nil || c.Item == nil {
			continue
		}
		if c.Breakdown == nil {
			c.Breakdown = make(map[core.Strategy]float64, len(strategies))
		}
		var total float64
		for _, ws := range strategies {
			v, err := calcs[ws.Name].Score(in, c.Item.ID)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = core.DataQuality(core.ModuleRank, fmt.Sprintf("rank: %s produced non-finite score %v", ws.Name, v))
			}
			if err != nil {
				issues = append(issues, core.DataQualityIssue{ContentID: c.Item.ID, Strategy: ws.Name, Err: err})
				v = 0
			}
			c.Breakdown[ws.Name] = v
			total += ws.Weight * v
		}
		if math.IsNaN(total) || math.IsInf(total, 0) {
			total = 0
		}
		c.Score = total
		if viral.IsViral(c.Item.Metrics) {
			c.PutLabel("viral", utils.BoolLabel(true, utils.SourceRank))
		}
	}

	Sort(cands)
	return issues, nil
}

// Sort 按 score 降序 → views 降序 → publishedAt 降序 → id 升序排序，nil 排最后。
func Sort(cands []*core.ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return Less(cands[i], cands[j])
	})
}

// Less 定义候选之间的全序。
func Less(a, b *core.ScoredCandidate) bool {
	if a == nil || a.Item == nil {
		return false
	}
	if b == nil || b.Item == nil {
		return true
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Item.Metrics.Views != b.Item.Metrics.Views {
		return a.Item.Metrics.Views > b.Item.Metrics.Views
	}
	if a.Item.PublishedAt != b.Item.PublishedAt {
		return a.Item.PublishedAt > b.Item.PublishedAt
	}
	return a.Item.ID < b.Item.ID
}
