package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/feedrank/core"
)

// Pipeline 把排序逻辑拆成可组合的 Node 链：Rank → Filter → ReRank → PostProcess。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.ScoredCandidate,
) ([]*core.ScoredCandidate, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Select 返回只包含指定阶段 Node 的子 Pipeline，保持原有顺序。
func (p *Pipeline) Select(kinds ...Kind) *Pipeline {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := &Pipeline{}
	for _, n := range p.Nodes {
		if want[n.Kind()] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	return out
}

// Has 返回 Pipeline 是否包含指定阶段的 Node。
func (p *Pipeline) Has(kind Kind) bool {
	for _, n := range p.Nodes {
		if n.Kind() == kind {
			return true
		}
	}
	return false
}
