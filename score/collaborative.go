package score

import (
	"sort"

	"github.com/rushteam/feedrank/core"
)

// Collaborative 是基于用户的协同过滤打分器（User-CF）。
//
// 核心思想："兴趣相似的用户，喜欢相似的内容"
//
// 算法流程：
//  1. 当前用户近期互动 → 权重向量（同一内容多次互动累加）
//  2. 与当前用户至少有 MinOverlap 个共同互动内容的其他用户为近邻
//  3. 近邻相似度 = 两个权重向量的余弦相似度，取 TopK（MaxNeighbors）
//  4. 内容得分 = Σ sim·w(近邻, 内容) / Σ sim，再以 s/(1+s) 压缩到 [0, 1)
//
// 没有近邻或近邻都没互动过该内容时得 0，不惩罚。
type Collaborative struct {
	// MinOverlap 是成为近邻所需的最少共同互动内容数，默认 1
	MinOverlap int

	// MaxNeighbors 是参与打分的近邻上限，默认 50
	MaxNeighbors int
}

// NewCollaborative 创建默认配置的协同过滤打分器。
func NewCollaborative() *Collaborative {
	return &Collaborative{MinOverlap: 1, MaxNeighbors: 50}
}

func (c *Collaborative) Strategy() core.Strategy { return core.StrategyCollaborative }

type neighbor struct {
	userID     string
	similarity float64
	vector     map[string]float64
}

type neighborhood struct {
	neighbors []neighbor
	simSum    float64
}

func (c *Collaborative) Score(in *Input, contentID string) (float64, error) {
	if _, err := lookup(in, core.StrategyCollaborative, contentID); err != nil {
		return 0, err
	}
	nb := c.neighborhood(in)
	if len(nb.neighbors) == 0 || nb.simSum <= 0 {
		return 0, nil
	}

	var num float64
	for _, n := range nb.neighbors {
		if w, ok := n.vector[contentID]; ok {
			num += n.similarity * w
		}
	}
	if num <= 0 {
		return 0, nil
	}
	raw := num / nb.simSum
	return raw / (1 + raw), nil
}

func (c *Collaborative) neighborhood(in *Input) *neighborhood {
	return in.cached("collaborative.neighborhood", func() any {
		return c.buildNeighborhood(in)
	}).(*neighborhood)
}

func (c *Collaborative) buildNeighborhood(in *Input) *neighborhood {
	target := interactionVector(in.User.RecentInteractions)
	if len(target) == 0 {
		return &neighborhood{}
	}

	minOverlap := c.MinOverlap
	if minOverlap <= 0 {
		minOverlap = 1
	}
	maxNeighbors := c.MaxNeighbors
	if maxNeighbors <= 0 {
		maxNeighbors = 50
	}

	peers := in.Signals.PeerInteractions()
	neighbors := make([]neighbor, 0, len(peers))
	for _, userID := range sortedKeys(peers) {
		if in.User.UserID != "" && userID == in.User.UserID {
			continue // 跳过自己
		}
		vec := interactionVector(peers[userID])
		common := 0
		for k := range target {
			if _, ok := vec[k]; ok {
				common++
			}
		}
		if common < minOverlap {
			continue
		}
		sim := cosineSimilarity(target, vec)
		if sim > 0 { // 只保留正相似度
			neighbors = append(neighbors, neighbor{userID: userID, similarity: sim, vector: vec})
		}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].similarity != neighbors[j].similarity {
			return neighbors[i].similarity > neighbors[j].similarity
		}
		return neighbors[i].userID < neighbors[j].userID
	})
	if len(neighbors) > maxNeighbors {
		neighbors = neighbors[:maxNeighbors]
	}

	nb := &neighborhood{neighbors: neighbors}
	for _, n := range neighbors {
		nb.simSum += n.similarity
	}
	return nb
}

// interactionVector 将互动列表转为 contentID -> 累计权重。
func interactionVector(list []core.Interaction) map[string]float64 {
	vec := make(map[string]float64, len(list))
	for _, it := range list {
		if it.ContentID == "" {
			continue
		}
		vec[it.ContentID] += it.EffectiveWeight()
	}
	return vec
}
