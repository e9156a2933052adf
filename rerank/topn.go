package rerank

import (
	"context"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
)

// TopNNode 是 Top-N 截断节点，保留前 N 个候选。
// N <= 0 时使用 RecommendContext.Limit；两者都未设置时不截断。
//
// 零信号降级路径没有多样性重排，由它兜底保证返回数量不超过 limit。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string        { return "rerank.topn" }
func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.ScoredCandidate,
) ([]*core.ScoredCandidate, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		limit = rctx.Limit
	}
	return Truncate(items, limit), nil
}

// Truncate 返回 items 的前 n 个；n <= 0 或不足 n 个时原样返回。
func Truncate(items []*core.ScoredCandidate, n int) []*core.ScoredCandidate {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
