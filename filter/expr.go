package filter

import (
	"context"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pkg/dsl"
)

// ExprFilter 用 CEL 表达式筛选候选：表达式为 true 的候选保留，false 的被过滤。
//
// 示例：`item.category != "nsfw" && score > 0.1`
type ExprFilter struct {
	prg *dsl.Program
}

// NewExprFilter 编译表达式，编译失败返回 InvalidArgument。
func NewExprFilter(expr string) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.InvalidArgument(core.ModuleFilter, err.Error())
	}
	return &ExprFilter{prg: prg}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

// Expr 返回表达式原文。
func (f *ExprFilter) Expr() string { return f.prg.String() }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	var user *core.UserContext
	if rctx != nil {
		user = rctx.User
	}
	keep, err := f.prg.Match(c, user)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
