package score

import (
	"math"

	"github.com/rushteam/feedrank/core"
)

// Trending 是热度打分器：互动计数取对数后加权，再叠加指数时间衰减的新鲜度。
//
//	score = Σ w_m · log10(m + 1) + RecencyWeight · exp(-hours / HalfLifeHours)
//
// 对数避免高播放量内容垄断；衰减奖励新内容但没有硬截止。
// 发布时间晚于 Now 时按 0 小时处理。
type Trending struct {
	HalfLifeHours  float64
	ViewsWeight    float64
	LikesWeight    float64
	CommentsWeight float64
	SharesWeight   float64
	RecencyWeight  float64
}

// TrendingOption 修改 Trending 的默认配置。
type TrendingOption func(*Trending)

// WithHalfLife 设置衰减常数（小时），<= 0 时忽略。
func WithHalfLife(hours float64) TrendingOption {
	return func(t *Trending) {
		if hours > 0 {
			t.HalfLifeHours = hours
		}
	}
}

// WithMetricWeights 设置四个互动计数的权重。
func WithMetricWeights(views, likes, comments, shares float64) TrendingOption {
	return func(t *Trending) {
		t.ViewsWeight = views
		t.LikesWeight = likes
		t.CommentsWeight = comments
		t.SharesWeight = shares
	}
}

// WithRecencyWeight 设置新鲜度权重。
func WithRecencyWeight(w float64) TrendingOption {
	return func(t *Trending) { t.RecencyWeight = w }
}

// NewTrending 创建默认配置的热度打分器：views 0.3、likes 0.2、comments 0.15、shares 0.15、新鲜度 0.2，半衰 24 小时。
func NewTrending(opts ...TrendingOption) *Trending {
	t := &Trending{
		HalfLifeHours:  core.DefaultHalfLifeHours,
		ViewsWeight:    0.3,
		LikesWeight:    0.2,
		CommentsWeight: 0.15,
		SharesWeight:   0.15,
		RecencyWeight:  0.2,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trending) Strategy() core.Strategy { return core.StrategyTrending }

func (t *Trending) Score(in *Input, contentID string) (float64, error) {
	item, err := lookup(in, core.StrategyTrending, contentID)
	if err != nil {
		return 0, err
	}
	m := item.Metrics
	s := t.ViewsWeight*logScale(m.Views) +
		t.LikesWeight*logScale(m.Likes) +
		t.CommentsWeight*logScale(m.Comments) +
		t.SharesWeight*logScale(m.Shares)
	return s + t.RecencyWeight*t.Decay(item, in), nil
}

// Decay 返回内容在 Now 时刻的衰减系数，范围 (0, 1]。
func (t *Trending) Decay(item *core.ContentItem, in *Input) float64 {
	halfLife := t.HalfLifeHours
	if halfLife <= 0 {
		halfLife = core.DefaultHalfLifeHours
	}
	hours := in.Now.Sub(item.Published()).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / halfLife)
}

func logScale(v int64) float64 {
	return math.Log10(float64(v) + 1)
}
