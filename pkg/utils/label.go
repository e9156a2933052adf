package utils

import "strconv"

// Label 是排序链路中的一等公民：可解释、可追踪、可透传。
// Value 与 Source 的语义由业务自定义；这里只提供标准化的合并规则。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // rank / filter / rerank / fallback ...
}

// 常用 Source 取值。
const (
	SourceRank     = "rank"
	SourceFilter   = "filter"
	SourceRerank   = "rerank"
	SourceFallback = "fallback"
)

// BoolLabel 构造一个 "true"/"false" 值的 Label。
func BoolLabel(v bool, source string) Label {
	return Label{Value: strconv.FormatBool(v), Source: source}
}

// MergeLabel 用于合并同名 Label，遵循"保留历史、可追踪"的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
