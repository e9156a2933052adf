package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/score"
)

// QualityLevel 是互动质量档位。
type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

// MinScore 返回档位对应的最低质量分。
func (l QualityLevel) MinScore() (float64, error) {
	switch l {
	case QualityHigh:
		return 0.8, nil
	case QualityMedium:
		return 0.5, nil
	case QualityLow:
		return 0.2, nil
	default:
		return 0, core.InvalidArgument(core.ModuleFilter, fmt.Sprintf("filter: unknown quality level %q", l))
	}
}

// QualityFilter 过滤互动质量分（score.Quality）低于 Min 的候选。
type QualityFilter struct {
	Min float64
}

// NewQualityFilter 按档位创建质量过滤器。
func NewQualityFilter(level QualityLevel) (*QualityFilter, error) {
	minScore, err := level.MinScore()
	if err != nil {
		return nil, err
	}
	return &QualityFilter{Min: minScore}, nil
}

func (f *QualityFilter) Name() string { return "filter.quality" }

func (f *QualityFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	if c == nil || c.Item == nil {
		return true, nil
	}
	return score.Quality(c.Item.Metrics) < f.Min, nil
}
