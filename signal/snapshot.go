// Package signal 提供一次排序调用的信号快照，以及从存储加载/回写信号的适配层。
package signal

import (
	"fmt"

	"github.com/rushteam/feedrank/core"
)

// Snapshot 是 core.SignalStore 的内存实现：调用方传入的数据构造一次，之后只读。
// 构造时复制输入，调用方之后修改原切片不会影响快照。
type Snapshot struct {
	contents map[string]*core.ContentItem
	order    []string
	peers    map[string][]core.Interaction
}

var _ core.SignalStore = (*Snapshot)(nil)

// NewSnapshot 基于候选内容和其他用户的互动历史构造快照。
// 重复 ID 只保留首次出现；空 ID 被跳过（由服务层在入口处校验）。
func NewSnapshot(items []core.ContentItem, peers map[string][]core.Interaction) *Snapshot {
	s := &Snapshot{
		contents: make(map[string]*core.ContentItem, len(items)),
		order:    make([]string, 0, len(items)),
		peers:    make(map[string][]core.Interaction, len(peers)),
	}
	for i := range items {
		it := items[i]
		if it.ID == "" {
			continue
		}
		if _, ok := s.contents[it.ID]; ok {
			continue
		}
		if it.Tags == nil {
			it.Tags = []string{}
		} else {
			it.Tags = append([]string(nil), it.Tags...)
		}
		s.contents[it.ID] = &it
		s.order = append(s.order, it.ID)
	}
	for userID, list := range peers {
		if userID == "" || len(list) == 0 {
			continue
		}
		s.peers[userID] = append([]core.Interaction(nil), list...)
	}
	return s
}

// GetMetrics 返回内容的互动计数。
func (s *Snapshot) GetMetrics(contentID string) (core.Metrics, error) {
	it, err := s.GetContent(contentID)
	if err != nil {
		return core.Metrics{}, err
	}
	return it.Metrics, nil
}

// GetContent 返回内容。返回值与快照共享，调用方不得修改。
func (s *Snapshot) GetContent(contentID string) (*core.ContentItem, error) {
	if s == nil {
		return nil, notFound(contentID)
	}
	it, ok := s.contents[contentID]
	if !ok {
		return nil, notFound(contentID)
	}
	return it, nil
}

// PeerInteractions 返回其他用户的互动历史。
func (s *Snapshot) PeerInteractions() map[string][]core.Interaction {
	if s == nil {
		return nil
	}
	return s.peers
}

// Contents 按构造顺序返回快照中的内容（已去重）。
func (s *Snapshot) Contents() []*core.ContentItem {
	if s == nil {
		return nil
	}
	out := make([]*core.ContentItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.contents[id])
	}
	return out
}

// Len 返回快照中的内容数量。
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func notFound(contentID string) error {
	return core.NewDomainError(core.ModuleSignal, core.ErrorCodeNotFound, fmt.Sprintf("signal: content %q not found", contentID))
}
