package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/utils"
)

// FilterNode 是过滤 Node，组合多个过滤器。
// 任何一个过滤器返回 true，该候选即被移除；保留的候选顺序不变。
//
// 单个过滤器出错时跳过该过滤器（保留候选），不中断流程；
// 被跳过的过滤器名写入请求级 label filter_error。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string        { return "filter" }
func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.ScoredCandidate,
) ([]*core.ScoredCandidate, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	filters := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		if b, ok := f.(Binder); ok {
			bound, err := b.Bind(ctx, rctx)
			if err != nil {
				return nil, fmt.Errorf("bind %s: %w", f.Name(), err)
			}
			f = bound
		}
		filters = append(filters, f)
	}

	out := make([]*core.ScoredCandidate, 0, len(items))
	failed := make(map[string]bool)
	removed := 0
	for _, c := range items {
		if c == nil || c.Item == nil {
			continue
		}
		drop := false
		for _, f := range filters {
			ok, err := f.ShouldFilter(ctx, rctx, c)
			if err != nil {
				if rctx != nil && !failed[f.Name()] {
					failed[f.Name()] = true
					rctx.PutLabel("filter_error", utils.Label{Value: f.Name(), Source: utils.SourceFilter})
				}
				continue
			}
			if ok {
				drop = true
				break
			}
		}
		if drop {
			removed++
			continue
		}
		out = append(out, c)
	}

	if rctx != nil && removed > 0 {
		rctx.PutLabel("filtered", utils.Label{Value: fmt.Sprint(removed), Source: utils.SourceFilter})
	}
	return out, nil
}
