package signal

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rushteam/feedrank/core"
)

// Recorder 把互动事件回写到文档存储：
//   - 内容计数 +1（只增不减）
//   - 追加到用户互动历史（保留最近 MaxHistory 条）
//   - 在内容 → 用户倒排中记录该用户
//   - 达到爆款阈值时写入爆款榜
//
// 读改写在进程内串行；多实例部署时计数可能丢失更新，由存储侧的计数器替代。
type Recorder struct {
	Store     core.KeyValueStore
	KeyPrefix string

	// MaxHistory 是用户历史保留条数，默认 100
	MaxHistory int

	// Viral 是爆款阈值，零值时使用 core.DefaultViralThresholds
	Viral *core.ViralThresholds

	mu sync.Mutex
}

// NewRecorder 创建一个 Recorder。
func NewRecorder(s core.KeyValueStore, keyPrefix string) *Recorder {
	return &Recorder{Store: s, KeyPrefix: keyPrefix}
}

// RecordResult 是一次回写后的内容状态。
type RecordResult struct {
	Metrics core.Metrics `json:"metrics"`
	Viral   bool         `json:"viral"`
}

// Record 记录一次互动。内容不存在时返回 NOT_FOUND。
func (r *Recorder) Record(ctx context.Context, userID string, in core.Interaction) (RecordResult, error) {
	if in.ContentID == "" {
		return RecordResult{}, core.InvalidArgument(core.ModuleSignal, "signal: interaction contentId is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keys{prefix: r.KeyPrefix}

	data, err := r.Store.Get(ctx, k.content(in.ContentID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return RecordResult{}, notFound(in.ContentID)
		}
		return RecordResult{}, fmt.Errorf("get content %s: %w", in.ContentID, err)
	}
	var item core.ContentItem
	if err := json.Unmarshal(data, &item); err != nil {
		return RecordResult{}, fmt.Errorf("decode content %s: %w", in.ContentID, err)
	}
	item.Metrics = item.Metrics.Add(in.Type)
	if data, err = json.Marshal(&item); err != nil {
		return RecordResult{}, fmt.Errorf("encode content %s: %w", in.ContentID, err)
	}
	if err := r.Store.Set(ctx, k.content(in.ContentID), data); err != nil {
		return RecordResult{}, fmt.Errorf("set content %s: %w", in.ContentID, err)
	}

	if userID != "" {
		if err := r.appendHistory(ctx, k, userID, in); err != nil {
			return RecordResult{}, err
		}
		if err := r.addUserWeight(ctx, k, userID, in); err != nil {
			return RecordResult{}, err
		}
	}

	thresholds := core.DefaultViralThresholds()
	if r.Viral != nil {
		thresholds = *r.Viral
	}
	res := RecordResult{Metrics: item.Metrics, Viral: thresholds.IsViral(item.Metrics)}
	if res.Viral {
		if err := r.Store.ZAdd(ctx, k.trending(), item.Metrics.EngagementScore(), in.ContentID); err != nil {
			return RecordResult{}, fmt.Errorf("promote %s: %w", in.ContentID, err)
		}
	}
	return res, nil
}

// Publish 写入（或覆盖）一条内容文档。
func (r *Recorder) Publish(ctx context.Context, item core.ContentItem) error {
	if item.ID == "" {
		return core.InvalidArgument(core.ModuleSignal, "signal: content id is required")
	}
	if !item.Metrics.Valid() {
		return core.InvalidArgument(core.ModuleSignal, "signal: metrics must be non-negative")
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	data, err := json.Marshal(&item)
	if err != nil {
		return fmt.Errorf("encode content %s: %w", item.ID, err)
	}
	return r.Store.Set(ctx, keys{prefix: r.KeyPrefix}.content(item.ID), data)
}

// addUserWeight 把本次互动权重累加到内容的互动用户 Hash。
func (r *Recorder) addUserWeight(ctx context.Context, k keys, userID string, in core.Interaction) error {
	key := k.contentUsers(in.ContentID)
	users, err := r.Store.HGetAll(ctx, key)
	if err != nil && !core.IsStoreNotFound(err) {
		return fmt.Errorf("get users of %s: %w", in.ContentID, err)
	}
	total := in.EffectiveWeight()
	if prev, ok := users[userID]; ok {
		w, err := strconv.ParseFloat(string(prev), 64)
		if err != nil {
			return fmt.Errorf("decode weight of %s on %s: %w", userID, in.ContentID, err)
		}
		total += w
	}
	if err := r.Store.HSet(ctx, key, userID, []byte(strconv.FormatFloat(total, 'f', -1, 64))); err != nil {
		return fmt.Errorf("index user %s on %s: %w", userID, in.ContentID, err)
	}
	return nil
}

func (r *Recorder) appendHistory(ctx context.Context, k keys, userID string, in core.Interaction) error {
	var list []core.Interaction
	data, err := r.Store.Get(ctx, k.userHistory(userID))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode history %s: %w", userID, err)
		}
	case core.IsStoreNotFound(err):
	default:
		return fmt.Errorf("get history %s: %w", userID, err)
	}

	list = append(list, in)
	maxSize := r.MaxHistory
	if maxSize <= 0 {
		maxSize = 100
	}
	if len(list) > maxSize {
		list = list[len(list)-maxSize:]
	}
	if data, err = json.Marshal(list); err != nil {
		return fmt.Errorf("encode history %s: %w", userID, err)
	}
	return r.Store.Set(ctx, k.userHistory(userID), data)
}
