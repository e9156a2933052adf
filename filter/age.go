package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/feedrank/core"
)

// AgeWindow 是发布时间窗口。
type AgeWindow string

const (
	AgeToday AgeWindow = "today"
	AgeWeek  AgeWindow = "week"
	AgeMonth AgeWindow = "month"
)

// Duration 返回窗口长度。
func (w AgeWindow) Duration() (time.Duration, error) {
	switch w {
	case AgeToday:
		return 24 * time.Hour, nil
	case AgeWeek:
		return 7 * 24 * time.Hour, nil
	case AgeMonth:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, core.InvalidArgument(core.ModuleFilter, fmt.Sprintf("filter: unknown age window %q", w))
	}
}

// AgeFilter 过滤发布时间早于 now - MaxAge 的候选，now 取 RecommendContext.Now。
// 未来发布时间视为刚发布。
type AgeFilter struct {
	MaxAge time.Duration
}

// NewAgeFilter 按窗口创建发布时间过滤器。
func NewAgeFilter(window AgeWindow) (*AgeFilter, error) {
	d, err := window.Duration()
	if err != nil {
		return nil, err
	}
	return &AgeFilter{MaxAge: d}, nil
}

func (f *AgeFilter) Name() string { return "filter.age" }

func (f *AgeFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	if c == nil || c.Item == nil {
		return true, nil
	}
	if f.MaxAge <= 0 {
		return false, nil
	}
	now := time.Now()
	if rctx != nil && !rctx.Now.IsZero() {
		now = rctx.Now
	}
	return now.Sub(c.Item.Published()) > f.MaxAge, nil
}
