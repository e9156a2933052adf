// Package feedrank 是一个内容排序引擎：对调用方给出的候选内容，按多个策略加权打分、
// 排序，并在截断到 limit 时保证类别/创作者多样性。
//
// 设计要点：
// - Pipeline-first: 排序逻辑通过 Node 串联（Rank → Filter → ReRank → PostProcess）
// - Snapshot-per-call: 每次调用基于不可变的信号快照，相同输入与 now 结果可复现
// - Labels-first: labels 全链路透传（viral / diversity / fallback），便于 explain
package feedrank

import (
	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/service"
)

// 轻量 facade：便于直接 import "feedrank" 使用核心抽象。
type (
	Pipeline         = pipeline.Pipeline
	Node             = pipeline.Node
	Kind             = pipeline.Kind
	Recommender      = service.Recommender
	Request          = service.Request
	Result           = service.Result
	ContentItem      = core.ContentItem
	UserContext      = core.UserContext
	WeightedStrategy = core.WeightedStrategy
)

const (
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// New 创建排序服务，等价于 service.New。
func New(opts ...service.Option) (*Recommender, error) {
	return service.New(opts...)
}
