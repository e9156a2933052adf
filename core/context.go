package core

import (
	"time"

	"github.com/rushteam/feedrank/pkg/utils"
)

// InteractionType 是用户与内容的互动类型。
type InteractionType string

const (
	InteractionView    InteractionType = "view"
	InteractionLike    InteractionType = "like"
	InteractionComment InteractionType = "comment"
	InteractionShare   InteractionType = "share"
)

// DefaultWeight 返回互动类型的默认权重：view 1、like 3、comment 5、share 10，未知类型为 1。
func (t InteractionType) DefaultWeight() float64 {
	switch t {
	case InteractionLike:
		return 3
	case InteractionComment:
		return 5
	case InteractionShare:
		return 10
	default:
		return 1
	}
}

// Interaction 是一次互动记录。Weight <= 0 时使用类型默认权重。
type Interaction struct {
	ContentID string          `json:"contentId" validate:"required"`
	Type      InteractionType `json:"type"`
	Weight    float64         `json:"weight"`
}

// EffectiveWeight 返回参与计算的权重。
func (i Interaction) EffectiveWeight() float64 {
	if i.Weight > 0 {
		return i.Weight
	}
	return i.Type.DefaultWeight()
}

// UserContext 是一次排序调用的用户偏好视图，只读，由调用方按请求构造。
type UserContext struct {
	UserID string `json:"userId,omitempty"` // 为空表示匿名用户

	// PreferredCategories 按偏好程度排序，首个为最偏好类别
	PreferredCategories []string `json:"preferredCategories"`

	// SubscribedCreators 是已订阅创作者
	SubscribedCreators []string `json:"subscribedCreators"`

	// PreferredTags 是显式偏好标签（可选），会与近期互动内容的标签合并
	PreferredTags []string `json:"preferredTags,omitempty"`

	// RecentInteractions 是近期互动窗口，只在本次调用中使用
	RecentInteractions []Interaction `json:"recentInteractions" validate:"dive"`
}

// TopCategory 返回最偏好的类别，没有时返回空串。
func (u *UserContext) TopCategory() string {
	if u == nil || len(u.PreferredCategories) == 0 {
		return ""
	}
	return u.PreferredCategories[0]
}

// IsSubscribed 检查是否订阅了创作者。
func (u *UserContext) IsSubscribed(creatorID string) bool {
	if u == nil || creatorID == "" {
		return false
	}
	for _, c := range u.SubscribedCreators {
		if c == creatorID {
			return true
		}
	}
	return false
}

// RecommendContext 承载一次推荐调用的用户/信号/时间，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	// User 是本次调用的用户上下文
	User *UserContext

	// Signals 是本次调用的信号快照（不可变）
	Signals SignalStore

	// Now 是本次调用的参考时间，相同 Now 下结果可复现
	Now time.Time

	// Limit 是最终返回数量上限
	Limit int

	// Strategies 是请求级策略覆盖；为空时使用排序节点自身配置
	Strategies []WeightedStrategy

	// Labels 是请求级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// OnDataQuality 接收数据质量告警（可选），由服务层记录日志/指标
	OnDataQuality func(DataQualityIssue)
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// DataQualityIssue 是一次非致命的数据质量问题：某个策略在某条内容上得 0 分。
type DataQualityIssue struct {
	ContentID string
	Strategy  Strategy
	Err       error
}

// ReportDataQuality 上报数据质量问题；未设置回调时忽略。
func (rctx *RecommendContext) ReportDataQuality(issue DataQualityIssue) {
	if rctx == nil || rctx.OnDataQuality == nil {
		return
	}
	rctx.OnDataQuality(issue)
}
