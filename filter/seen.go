package filter

import (
	"context"

	"github.com/rushteam/feedrank/core"
)

// SeenFilter 过滤用户近期已互动过的内容。
// Types 为空时任何互动类型都算已看过。
type SeenFilter struct {
	Types []core.InteractionType
}

func (f *SeenFilter) Name() string { return "filter.seen" }

func (f *SeenFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	bound, err := f.Bind(ctx, rctx)
	if err != nil {
		return false, err
	}
	return bound.ShouldFilter(ctx, rctx, c)
}

// Bind 把用户近期互动整理为集合。
func (f *SeenFilter) Bind(_ context.Context, rctx *core.RecommendContext) (Filter, error) {
	seen := make(map[string]bool)
	if rctx != nil && rctx.User != nil {
		allowed := make(map[core.InteractionType]bool, len(f.Types))
		for _, t := range f.Types {
			allowed[t] = true
		}
		for _, in := range rctx.User.RecentInteractions {
			if len(allowed) == 0 || allowed[in.Type] {
				seen[in.ContentID] = true
			}
		}
	}
	return Func{FilterName: f.Name(), Fn: func(_ *core.RecommendContext, c *core.ScoredCandidate) bool {
		return c == nil || c.Item == nil || seen[c.Item.ID]
	}}, nil
}
