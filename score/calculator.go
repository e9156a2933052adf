// Package score 实现排序策略的打分器：Trending、ContentBased、Collaborative、EngagementQuality。
//
// 每个打分器都是全函数：对任意输入都不会 panic；遇到缺失或异常数据时返回 0
// 和一个 DATA_QUALITY 错误，由调用方记录告警后按 0 分继续。
package score

import (
	"fmt"
	"time"

	"github.com/rushteam/feedrank/core"
)

// Input 是一次排序调用中所有打分器共享的输入。
// 它只在单次调用内使用，不可跨 goroutine 共享。
type Input struct {
	Signals core.SignalStore
	User    *core.UserContext
	Now     time.Time

	memo map[string]any
}

// NewInput 创建打分输入。
func NewInput(signals core.SignalStore, user *core.UserContext, now time.Time) *Input {
	if user == nil {
		user = &core.UserContext{}
	}
	return &Input{Signals: signals, User: user, Now: now}
}

// cached 按 key 缓存本次调用内的预计算结果（例如相似用户、偏好标签集合）。
func (in *Input) cached(key string, build func() any) any {
	if in.memo == nil {
		in.memo = make(map[string]any)
	}
	if v, ok := in.memo[key]; ok {
		return v
	}
	v := build()
	in.memo[key] = v
	return v
}

// Calculator 是单个排序策略的打分器。
type Calculator interface {
	// Strategy 返回打分器对应的策略名
	Strategy() core.Strategy

	// Score 计算内容在本次调用中的未加权分数
	Score(in *Input, contentID string) (float64, error)
}

// Calculators 是策略名到打分器的映射。
type Calculators map[core.Strategy]Calculator

// DefaultCalculators 返回四个内置打分器的默认配置。
func DefaultCalculators() Calculators {
	return Calculators{
		core.StrategyTrending:          NewTrending(),
		core.StrategyContentBased:      NewContentBased(),
		core.StrategyCollaborative:     NewCollaborative(),
		core.StrategyEngagementQuality: NewEngagementQuality(),
	}
}

// With 返回替换（或新增）一个打分器后的副本。
func (c Calculators) With(calc Calculator) Calculators {
	out := make(Calculators, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[calc.Strategy()] = calc
	return out
}

// lookup 读取内容及计数，统一处理不存在与计数非法两种脏数据。
func lookup(in *Input, strategy core.Strategy, contentID string) (*core.ContentItem, error) {
	if in == nil || in.Signals == nil {
		return nil, core.DataQuality(core.ModuleScore, fmt.Sprintf("score: %s has no signals", strategy))
	}
	item, err := in.Signals.GetContent(contentID)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleScore, core.ErrorCodeDataQuality,
			fmt.Sprintf("score: %s cannot read %q", strategy, contentID), err)
	}
	if !item.Metrics.Valid() {
		return nil, core.DataQuality(core.ModuleScore,
			fmt.Sprintf("score: %s got negative metrics on %q", strategy, contentID))
	}
	return item, nil
}
