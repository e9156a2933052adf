package score

import (
	"math"

	"github.com/rushteam/feedrank/core"
)

// EngagementQuality 是互动质量打分器。
//
//	rate  = clip((likes + 2·comments + 3·shares) / max(views, 1), 0, 1)
//	score = min(rate·100 + views/10000, 1)
type EngagementQuality struct{}

// NewEngagementQuality 创建互动质量打分器。
func NewEngagementQuality() *EngagementQuality {
	return &EngagementQuality{}
}

func (e *EngagementQuality) Strategy() core.Strategy { return core.StrategyEngagementQuality }

func (e *EngagementQuality) Score(in *Input, contentID string) (float64, error) {
	item, err := lookup(in, core.StrategyEngagementQuality, contentID)
	if err != nil {
		return 0, err
	}
	return Quality(item.Metrics), nil
}

// Quality 计算计数的互动质量分，范围 [0, 1]。
func Quality(m core.Metrics) float64 {
	if !m.Valid() {
		return 0
	}
	views := math.Max(float64(m.Views), 1)
	rate := (float64(m.Likes) + 2*float64(m.Comments) + 3*float64(m.Shares)) / views
	rate = math.Min(math.Max(rate, 0), 1)
	return math.Min(rate*100+float64(m.Views)/10000, 1)
}
