// Package filter 提供排序后、多样性重排前执行的候选过滤器。
package filter

import (
	"context"

	"github.com/rushteam/feedrank/core"
)

// Filter 判断一个候选是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断候选是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, c *core.ScoredCandidate) (bool, error)
}

// Binder 是需要按请求准备数据的过滤器（例如从存储读取名单）。
// FilterNode 每次 Process 调用一次 Bind，并用返回的 Filter 处理本次所有候选。
type Binder interface {
	Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// Func 把普通函数适配为 Filter。
type Func struct {
	FilterName string
	Fn         func(rctx *core.RecommendContext, c *core.ScoredCandidate) bool
}

func (f Func) Name() string { return f.FilterName }

func (f Func) ShouldFilter(_ context.Context, rctx *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	return f.Fn(rctx, c), nil
}
