package pipeline

import (
	"context"

	"github.com/rushteam/feedrank/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点、按阶段裁剪）。
type Kind string

const (
	KindFilter      Kind = "filter"      // 过滤阶段：剔除不符合约束的候选
	KindRank        Kind = "rank"        // 排序阶段：对候选打分并排序
	KindReRank      Kind = "rerank"      // 重排阶段：在排序结果上做多样性/截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：最终结果修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 candidates -> 输出 candidates"的形态，方便 Rank 打分、Filter 剔除、ReRank 重排等操作。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.ScoredCandidate,
	) ([]*core.ScoredCandidate, error)
}
