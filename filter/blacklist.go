package filter

import (
	"context"

	"github.com/rushteam/feedrank/core"
)

// BlacklistFilter 过滤被屏蔽的内容与创作者。
//
// 名单来源：
//   - ContentIDs / CreatorIDs：静态配置
//   - Store + ContentKey / CreatorKey：全局名单，每次请求读取一次
//   - Store + UserKeyPrefix：用户级屏蔽创作者，key 为 {UserKeyPrefix}:{UserID}
type BlacklistFilter struct {
	ContentIDs []string
	CreatorIDs []string

	Store         *StoreAdapter
	ContentKey    string
	CreatorKey    string
	UserKeyPrefix string
}

// NewBlacklistFilter 创建静态名单过滤器。
func NewBlacklistFilter(contentIDs, creatorIDs []string) *BlacklistFilter {
	return &BlacklistFilter{ContentIDs: contentIDs, CreatorIDs: creatorIDs}
}

// NewStoreBlacklistFilter 创建读取存储名单的过滤器。key 布局：
//   - {keyPrefix}blocklist:contents
//   - {keyPrefix}blocklist:creators
//   - {keyPrefix}blocklist:user:{userID}
func NewStoreBlacklistFilter(lists *StoreAdapter, keyPrefix string) *BlacklistFilter {
	return &BlacklistFilter{
		Store:         lists,
		ContentKey:    keyPrefix + "blocklist:contents",
		CreatorKey:    keyPrefix + "blocklist:creators",
		UserKeyPrefix: keyPrefix + "blocklist:user",
	}
}

// UserKey 返回用户级屏蔽名单的 key；未配置 UserKeyPrefix 时为空。
func (f *BlacklistFilter) UserKey(userID string) string {
	if f.UserKeyPrefix == "" || userID == "" {
		return ""
	}
	return f.UserKeyPrefix + ":" + userID
}

func (f *BlacklistFilter) Name() string { return "filter.blacklist" }

func (f *BlacklistFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	bound, err := f.Bind(ctx, rctx)
	if err != nil {
		return false, err
	}
	return bound.ShouldFilter(ctx, rctx, c)
}

// Bind 合并静态名单与存储名单。
func (f *BlacklistFilter) Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	b := &boundBlacklist{
		contents: toSet(f.ContentIDs),
		creators: toSet(f.CreatorIDs),
	}
	if f.Store == nil {
		return b, nil
	}

	ids, err := f.Store.GetList(ctx, f.ContentKey)
	if err != nil {
		return nil, err
	}
	addAll(b.contents, ids)

	ids, err = f.Store.GetList(ctx, f.CreatorKey)
	if err != nil {
		return nil, err
	}
	addAll(b.creators, ids)

	if rctx != nil && rctx.User != nil {
		ids, err = f.Store.GetList(ctx, f.UserKey(rctx.User.UserID))
		if err != nil {
			return nil, err
		}
		addAll(b.creators, ids)
	}
	return b, nil
}

type boundBlacklist struct {
	contents map[string]bool
	creators map[string]bool
}

func (b *boundBlacklist) Name() string { return "filter.blacklist" }

func (b *boundBlacklist) ShouldFilter(_ context.Context, _ *core.RecommendContext, c *core.ScoredCandidate) (bool, error) {
	if c == nil || c.Item == nil {
		return true, nil
	}
	return b.contents[c.Item.ID] || (c.Item.CreatorID != "" && b.creators[c.Item.CreatorID]), nil
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	addAll(s, ids)
	return s
}

func addAll(s map[string]bool, ids []string) {
	for _, id := range ids {
		if id != "" {
			s[id] = true
		}
	}
}
