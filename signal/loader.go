package signal

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/feedrank/core"
)

// Loader 从文档存储加载候选内容与协同信号，组装成 Snapshot。
// 它是排序核心之外的适配层：排序核心本身不做 I/O。
type Loader struct {
	Store core.KeyValueStore

	// KeyPrefix 是所有 key 的前缀（可选），例如 "feed:"
	KeyPrefix string

	// MaxPeers 是参与协同过滤的最大相似用户数，默认 200
	MaxPeers int

	// MaxConcurrent 是并发读取倒排的上限，默认 8
	MaxConcurrent int
}

// NewLoader 创建一个 Loader。
func NewLoader(s core.KeyValueStore, keyPrefix string) *Loader {
	return &Loader{Store: s, KeyPrefix: keyPrefix}
}

func (l *Loader) keys() keys { return keys{prefix: l.KeyPrefix} }

// LoadContents 按 ID 批量读取内容，返回顺序与 ids 一致；不存在的 ID 在 missing 中返回。
func (l *Loader) LoadContents(ctx context.Context, ids []string) (items []core.ContentItem, missing []string, err error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	k := l.keys()
	storeKeys := make([]string, 0, len(ids))
	for _, id := range ids {
		storeKeys = append(storeKeys, k.content(id))
	}
	raw, err := l.Store.BatchGet(ctx, storeKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("batch get contents: %w", err)
	}

	items = make([]core.ContentItem, 0, len(ids))
	for _, id := range ids {
		data, ok := raw[k.content(id)]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var it core.ContentItem
		if err := json.Unmarshal(data, &it); err != nil {
			return nil, nil, fmt.Errorf("decode content %s: %w", id, err)
		}
		if it.ID == "" {
			it.ID = id
		}
		items = append(items, it)
	}
	return items, missing, nil
}

// LoadUserHistory 读取用户的互动历史，不存在时返回空。
func (l *Loader) LoadUserHistory(ctx context.Context, userID string) ([]core.Interaction, error) {
	if userID == "" {
		return nil, nil
	}
	data, err := l.Store.Get(ctx, l.keys().userHistory(userID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get history %s: %w", userID, err)
	}
	var list []core.Interaction
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", userID, err)
	}
	return list, nil
}

// LoadPeers 找出与用户近期互动有交集的其他用户，并读取他们的互动历史。
// 相似用户按共同互动数降序、userID 升序截断到 MaxPeers，保证结果可复现。
func (l *Loader) LoadPeers(ctx context.Context, userID string, recent []core.Interaction) (map[string][]core.Interaction, error) {
	targets := uniqueTargets(recent)
	if len(targets) == 0 {
		return map[string][]core.Interaction{}, nil
	}

	k := l.keys()
	users := make([]map[string][]byte, len(targets))

	limit := l.MaxConcurrent
	if limit <= 0 {
		limit = 8
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, cid := range targets {
		eg.Go(func() error {
			m, err := l.Store.HGetAll(egCtx, k.contentUsers(cid))
			if err != nil && !core.IsStoreNotFound(err) {
				return fmt.Errorf("get users of %s: %w", cid, err)
			}
			users[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	overlap := make(map[string]int)
	for _, m := range users {
		for uid := range m {
			if uid == userID || uid == "" {
				continue
			}
			overlap[uid]++
		}
	}
	peerIDs := make([]string, 0, len(overlap))
	for uid := range overlap {
		peerIDs = append(peerIDs, uid)
	}
	sort.Slice(peerIDs, func(i, j int) bool {
		if overlap[peerIDs[i]] != overlap[peerIDs[j]] {
			return overlap[peerIDs[i]] > overlap[peerIDs[j]]
		}
		return peerIDs[i] < peerIDs[j]
	})
	maxPeers := l.MaxPeers
	if maxPeers <= 0 {
		maxPeers = 200
	}
	if len(peerIDs) > maxPeers {
		peerIDs = peerIDs[:maxPeers]
	}
	if len(peerIDs) == 0 {
		return map[string][]core.Interaction{}, nil
	}

	historyKeys := make([]string, 0, len(peerIDs))
	for _, uid := range peerIDs {
		historyKeys = append(historyKeys, k.userHistory(uid))
	}
	raw, err := l.Store.BatchGet(ctx, historyKeys)
	if err != nil {
		return nil, fmt.Errorf("batch get peer histories: %w", err)
	}
	peers := make(map[string][]core.Interaction, len(peerIDs))
	for _, uid := range peerIDs {
		data, ok := raw[k.userHistory(uid)]
		if !ok {
			continue
		}
		var list []core.Interaction
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode history %s: %w", uid, err)
		}
		peers[uid] = list
	}
	return peers, nil
}

// Trending 返回爆款榜前 n 个内容 ID。
func (l *Loader) Trending(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := l.Store.ZRange(ctx, l.keys().trending(), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("read trending: %w", err)
	}
	return ids, nil
}

// Load 读取候选内容与协同信号并构造快照。不存在的候选被跳过并在 missing 中返回。
func (l *Loader) Load(ctx context.Context, uctx *core.UserContext, ids []string) (snap *Snapshot, items []core.ContentItem, missing []string, err error) {
	items, missing, err = l.LoadContents(ctx, ids)
	if err != nil {
		return nil, nil, nil, err
	}
	var peers map[string][]core.Interaction
	if uctx != nil {
		peers, err = l.LoadPeers(ctx, uctx.UserID, uctx.RecentInteractions)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return NewSnapshot(items, peers), items, missing, nil
}

func uniqueTargets(list []core.Interaction) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, in := range list {
		if in.ContentID == "" {
			continue
		}
		if _, ok := seen[in.ContentID]; ok {
			continue
		}
		seen[in.ContentID] = struct{}{}
		out = append(out, in.ContentID)
	}
	return out
}
