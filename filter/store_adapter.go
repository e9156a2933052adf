package filter

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rushteam/feedrank/core"
)

// StoreAdapter 从 core.Store 读取 JSON 编码的 ID 名单（["a","b"]）。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetList 读取名单，key 不存在时返回空名单。
func (a *StoreAdapter) GetList(ctx context.Context, key string) ([]string, error) {
	if a == nil || a.store == nil || key == "" {
		return nil, nil
	}
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", key, err)
	}
	return ids, nil
}

// PutList 写入名单。
func (a *StoreAdapter) PutList(ctx context.Context, key string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data)
}
