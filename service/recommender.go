// Package service 是排序引擎的对外入口：校验请求、构造信号快照、执行 Pipeline。
package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/utils"
	"github.com/rushteam/feedrank/rank"
	"github.com/rushteam/feedrank/rerank"
	"github.com/rushteam/feedrank/signal"
)

// Recommender 是排序服务。只持有不可变配置，可并发使用。
//
// 一次调用的执行顺序：
//  1. 校验请求（limit > 0、候选 ID 非空、策略名合法），失败返回 INVALID_ARGUMENT
//  2. 按 ID 去重并构造信号快照；候选为空直接返回空列表
//  3. 执行 Pipeline 中的 rank 节点
//  4. 没有任何信号时降级：保持输入顺序，只执行 filter 节点
//  5. 否则执行 filter → rerank → postprocess 节点
//  6. 截断到 limit
type Recommender struct {
	pipeline       *pipeline.Pipeline
	aggregator     *rank.Aggregator
	logger         zerolog.Logger
	metrics        *metrics
	clock          func() time.Time
	maxCandidates  int
	maxConcurrency int
}

// Option 配置 Recommender。
type Option func(*options)

type options struct {
	logger         zerolog.Logger
	registerer     prometheus.Registerer
	pipeline       *pipeline.Pipeline
	aggregator     *rank.Aggregator
	diversity      *rerank.DiversityFilter
	filters        []filter.Filter
	clock          func() time.Time
	maxCandidates  int
	maxConcurrency int
}

// WithLogger 设置日志。
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer 设置指标注册器，例如 prometheus.DefaultRegisterer。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithPipeline 使用自定义 Pipeline，必须恰好包含一个 *rank.Aggregator 节点。
// 设置后 WithAggregator / WithDiversity / WithFilters 不再生效。
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(o *options) { o.pipeline = p }
}

// WithAggregator 替换默认聚合器（打分器、默认策略、爆款阈值）。
func WithAggregator(a *rank.Aggregator) Option {
	return func(o *options) { o.aggregator = a }
}

// WithDiversity 替换默认多样性重排。
func WithDiversity(d *rerank.DiversityFilter) Option {
	return func(o *options) { o.diversity = d }
}

// WithFilters 在排序后、多样性重排前追加过滤器。使用 WithPipeline 时插在排序节点之后。
func WithFilters(filters ...filter.Filter) Option {
	return func(o *options) { o.filters = append(o.filters, filters...) }
}

// WithClock 设置请求未指定 now 时使用的时钟。
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithMaxCandidates 设置单次请求的候选上限，默认 5000。
func WithMaxCandidates(n int) Option {
	return func(o *options) { o.maxCandidates = n }
}

// WithMaxConcurrency 设置 RecommendBatch 的并发上限，默认 8。
func WithMaxConcurrency(n int) Option {
	return func(o *options) { o.maxConcurrency = n }
}

// New 创建排序服务。
func New(opts ...Option) (*Recommender, error) {
	o := &options{
		logger:         zerolog.Nop(),
		clock:          time.Now,
		maxCandidates:  core.DefaultMaxCandidates,
		maxConcurrency: 8,
	}
	for _, opt := range opts {
		opt(o)
	}

	p := o.pipeline
	agg := o.aggregator
	if p == nil {
		if agg == nil {
			agg = rank.NewAggregator()
		}
		p = &pipeline.Pipeline{Nodes: []pipeline.Node{agg}}
		if len(o.filters) > 0 {
			p.Nodes = append(p.Nodes, &filter.FilterNode{Filters: o.filters})
		}
		d := o.diversity
		if d == nil {
			d = rerank.NewDiversityFilter()
		}
		p.Nodes = append(p.Nodes, d)
	} else {
		agg = nil
		for _, n := range p.Nodes {
			a, ok := n.(*rank.Aggregator)
			if !ok {
				continue
			}
			if agg != nil {
				return nil, fmt.Errorf("pipeline has more than one %s node", a.Name())
			}
			agg = a
		}
		if agg == nil {
			return nil, fmt.Errorf("pipeline has no rank.weighted node")
		}
		if len(o.filters) > 0 {
			p = withFiltersAfterRank(p, &filter.FilterNode{Filters: o.filters})
		}
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	return &Recommender{
		pipeline:       p,
		aggregator:     agg,
		logger:         o.logger.With().Str("component", "recommend").Logger(),
		metrics:        newMetrics(o.registerer),
		clock:          o.clock,
		maxCandidates:  o.maxCandidates,
		maxConcurrency: max(o.maxConcurrency, 1),
	}, nil
}

// Recommend 对请求中的候选排序，返回不超过 limit 个结果。
// 只有请求结构非法时返回 INVALID_ARGUMENT；单条脏数据只会让对应策略记 0 分。
func (r *Recommender) Recommend(ctx context.Context, req Request) ([]Result, error) {
	start := time.Now()
	if err := r.validate(req, len(req.Candidates), req.Strategies); err != nil {
		return nil, r.finish(start, outcomeInvalid, err)
	}
	snap := signal.NewSnapshot(req.Candidates, req.Peers)
	return r.run(ctx, start, &req.Context, snap, req.Search, req.Limit, req.Strategies, r.now(req.Now))
}

// RecommendStored 从存储读取候选与协同信号后排序。不存在的候选被跳过。
func (r *Recommender) RecommendStored(ctx context.Context, loader *signal.Loader, req StoredRequest) ([]Result, error) {
	start := time.Now()
	if loader == nil {
		return nil, r.finish(start, outcomeError, fmt.Errorf("service: nil loader"))
	}
	if err := r.validate(req, len(req.ContentIDs), req.Strategies); err != nil {
		return nil, r.finish(start, outcomeInvalid, err)
	}

	uctx := req.Context
	if req.LoadHistory && uctx.UserID != "" && len(uctx.RecentInteractions) == 0 {
		history, err := loader.LoadUserHistory(ctx, uctx.UserID)
		if err != nil {
			return nil, r.finish(start, outcomeError, err)
		}
		uctx.RecentInteractions = history
	}

	ids := req.ContentIDs
	if len(ids) == 0 {
		depth := req.TrendingDepth
		if depth <= 0 {
			depth = req.Limit * 5
		}
		var err error
		if ids, err = loader.Trending(ctx, min(depth, r.maxCandidates)); err != nil {
			return nil, r.finish(start, outcomeError, err)
		}
	}

	snap, _, missing, err := loader.Load(ctx, &uctx, ids)
	if err != nil {
		return nil, r.finish(start, outcomeError, err)
	}
	if len(missing) > 0 {
		r.logger.Debug().Int("missing", len(missing)).Strs("content_ids", head(missing, 10)).Msg("candidates not found in store")
	}
	return r.run(ctx, start, &uctx, snap, req.Search, req.Limit, req.Strategies, r.now(req.Now))
}

// RecommendBatch 并发处理多个独立请求，结果与请求一一对应。任一请求失败即返回该错误。
func (r *Recommender) RecommendBatch(ctx context.Context, reqs []Request) ([][]Result, error) {
	out := make([][]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)
	for i := range reqs {
		g.Go(func() error {
			res, err := r.Recommend(gctx, reqs[i])
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Recommender) validate(req any, n int, strategies []core.WeightedStrategy) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if n > r.maxCandidates {
		return core.InvalidArgument(core.ModuleService, fmt.Sprintf("service: %d candidates exceeds limit %d", n, r.maxCandidates))
	}
	if len(strategies) > 0 {
		if err := r.aggregator.ValidateStrategies(strategies); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recommender) now(ms int64) time.Time {
	if ms > 0 {
		return time.UnixMilli(ms)
	}
	return r.clock()
}

func (r *Recommender) run(
	ctx context.Context,
	start time.Time,
	uctx *core.UserContext,
	snap *signal.Snapshot,
	search Search,
	limit int,
	strategies []core.WeightedStrategy,
	now time.Time,
) ([]Result, error) {
	contents := snap.Contents()
	if len(contents) == 0 {
		r.finish(start, outcomeEmpty, nil)
		return []Result{}, nil
	}

	rctx := &core.RecommendContext{
		User:          uctx,
		Signals:       snap,
		Now:           now,
		Limit:         limit,
		Strategies:    strategies,
		OnDataQuality: r.onDataQuality,
	}

	cands := make([]*core.ScoredCandidate, 0, len(contents))
	for _, it := range contents {
		cands = append(cands, core.NewScoredCandidate(it))
	}
	searchFilters, err := search.filters()
	if err != nil {
		return nil, r.finish(start, outcomeInvalid, err)
	}
	if len(searchFilters) > 0 {
		node := &filter.FilterNode{Filters: searchFilters}
		if cands, err = node.Process(ctx, rctx, cands); err != nil {
			return nil, r.finish(start, outcomeError, err)
		}
		if len(cands) == 0 {
			r.finish(start, outcomeEmpty, nil)
			return []Result{}, nil
		}
	}
	inputOrder := slices.Clone(cands)

	ranked, err := r.pipeline.Select(pipeline.KindRank).Run(ctx, rctx, cands)
	if err != nil {
		return nil, r.finish(start, outcomeError, err)
	}

	outcome := outcomeOK
	var out []*core.ScoredCandidate
	effective := strategies
	if len(effective) == 0 {
		effective = r.aggregator.Strategies
	}
	if !hasSignal(ranked, trendingOnly(effective)) {
		outcome = outcomeFallback
		r.metrics.fallbacks.Inc()
		for _, c := range inputOrder {
			c.PutLabel("fallback", utils.BoolLabel(true, utils.SourceFallback))
		}
		out, err = r.pipeline.Select(pipeline.KindFilter).Run(ctx, rctx, inputOrder)
	} else {
		out, err = r.pipeline.Select(pipeline.KindFilter, pipeline.KindReRank, pipeline.KindPostProcess).Run(ctx, rctx, ranked)
	}
	if err != nil {
		return nil, r.finish(start, outcomeError, err)
	}
	out = rerank.Truncate(dedupe(out), limit)

	results := toResults(out)
	r.finish(start, outcome, nil)
	r.logger.Debug().
		Str("user_id", uctx.UserID).
		Int("candidates", len(contents)).
		Int("returned", len(results)).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(start)).
		Msg("recommend")
	return results, nil
}

func (r *Recommender) onDataQuality(issue core.DataQualityIssue) {
	r.metrics.dataQuality.WithLabelValues(string(issue.Strategy)).Inc()
	r.logger.Warn().
		Str("content_id", issue.ContentID).
		Str("strategy", string(issue.Strategy)).
		Err(issue.Err).
		Msg("data quality")
}

func (r *Recommender) finish(start time.Time, outcome string, err error) error {
	r.metrics.duration.Observe(time.Since(start).Seconds())
	r.metrics.requests.WithLabelValues(outcome).Inc()
	if err != nil && outcome == outcomeError {
		r.logger.Error().Err(err).Msg("recommend failed")
	}
	return err
}

// hasSignal 判断排序结果是否有可用信号：存在非零聚合分，且至少一个候选有互动计数
// 或非 Trending 策略得分。仅有时间衰减不算信号，除非调用方只要求 Trending（recencyOK）。
func hasSignal(cands []*core.ScoredCandidate, recencyOK bool) bool {
	nonZero, evidence := false, false
	for _, c := range cands {
		if c == nil || c.Item == nil {
			continue
		}
		if c.Score != 0 {
			nonZero = true
		}
		if !c.Item.Metrics.IsZero() {
			evidence = true
		}
		for s, v := range c.Breakdown {
			if s != core.StrategyTrending && v > 0 {
				evidence = true
			}
		}
	}
	return nonZero && (evidence || recencyOK)
}

// trendingOnly 返回调用方是否显式只使用 Trending（忽略权重为 0 的策略）。
func trendingOnly(strategies []core.WeightedStrategy) bool {
	found := false
	for _, s := range strategies {
		if s.Weight == 0 {
			continue
		}
		if s.Name != core.StrategyTrending {
			return false
		}
		found = true
	}
	return found
}

// withFiltersAfterRank 返回在排序节点之后插入 fn 的新 Pipeline，不修改 p。
func withFiltersAfterRank(p *pipeline.Pipeline, fn pipeline.Node) *pipeline.Pipeline {
	out := &pipeline.Pipeline{Nodes: make([]pipeline.Node, 0, len(p.Nodes)+1)}
	for _, n := range p.Nodes {
		out.Nodes = append(out.Nodes, n)
		if n.Kind() == pipeline.KindRank {
			out.Nodes = append(out.Nodes, fn)
		}
	}
	return out
}

func dedupe(cands []*core.ScoredCandidate) []*core.ScoredCandidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0:0]
	for _, c := range cands {
		id := c.ID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out
}

func toResults(cands []*core.ScoredCandidate) []Result {
	out := make([]Result, 0, len(cands))
	for _, c := range cands {
		res := Result{
			ID:        c.Item.ID,
			Score:     c.Score,
			Breakdown: make(map[string]float64, len(c.Breakdown)),
		}
		for s, v := range c.Breakdown {
			res.Breakdown[string(s)] = v
		}
		if len(c.Labels) > 0 {
			res.Labels = make(map[string]string, len(c.Labels))
			for k, l := range c.Labels {
				res.Labels[k] = l.Value
			}
		}
		out = append(out, res)
	}
	return out
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
