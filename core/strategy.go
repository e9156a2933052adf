package core

import "fmt"

// Strategy 是排序策略名称，每个策略对应一个打分器。
type Strategy string

const (
	StrategyTrending          Strategy = "Trending"          // 热度 + 时间衰减
	StrategyContentBased      Strategy = "ContentBased"      // 类别/创作者/标签匹配
	StrategyCollaborative     Strategy = "Collaborative"     // 相似用户的评价
	StrategyEngagementQuality Strategy = "EngagementQuality" // 互动率质量分
)

// Strategies 返回全部内置策略，顺序固定。
func Strategies() []Strategy {
	return []Strategy{
		StrategyTrending,
		StrategyContentBased,
		StrategyCollaborative,
		StrategyEngagementQuality,
	}
}

// ParseStrategy 将名称解析为 Strategy，大小写敏感。
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range Strategies() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", NewDomainError(ModuleRank, ErrorCodeInvalidArgument, fmt.Sprintf("rank: unknown strategy %q", name))
}

// WeightedStrategy 是一个带权重的策略。
// 聚合时不做归一化，权重之和由调用方保证。
type WeightedStrategy struct {
	Name   Strategy `json:"name" yaml:"name" validate:"required,oneof=Trending ContentBased Collaborative EngagementQuality"`
	Weight float64  `json:"weight" yaml:"weight"`
}

// DefaultStrategies 是个性化推荐的默认组合：协同 0.4、内容 0.4、热度 0.2。
func DefaultStrategies() []WeightedStrategy {
	return []WeightedStrategy{
		{Name: StrategyCollaborative, Weight: 0.4},
		{Name: StrategyContentBased, Weight: 0.4},
		{Name: StrategyTrending, Weight: 0.2},
	}
}
