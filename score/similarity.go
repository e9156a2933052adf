package score

import (
	"math"
	"sort"
)

// cosineSimilarity 计算两个稀疏向量的余弦相似度。
// 按 key 排序后累加，保证相同输入得到逐位相同的结果。
func cosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for _, k := range sortedKeys(a) {
		valA := a[k]
		normA += valA * valA
		if valB, ok := b[k]; ok {
			dot += valA * valB
		}
	}
	for _, k := range sortedKeys(b) {
		valB := b[k]
		normB += valB * valB
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// overlapRatio 计算 |a ∩ b| / max(|a ∪ b|, 1)。
func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union < 1 {
		union = 1
	}
	return float64(inter) / float64(union)
}

func toSet(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, s := range list {
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
