package core

// 排序相关默认值，各组件在对应字段为零值时使用。
const (
	DefaultHalfLifeHours             = 24.0
	DefaultMaxPerCategoryBeforeRelax = 5
	DefaultMaxPerCreatorBeforeRelax  = 10

	// DefaultMaxCandidates 是单次调用允许的候选上限，超出视为非法参数
	DefaultMaxCandidates = 5000
)
