package store

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/feedrank/core"
)

// BreakerOptions 是熔断参数，零值使用默认值。
type BreakerOptions struct {
	// MaxRequests 是半开状态允许通过的请求数，默认 3
	MaxRequests uint32

	// Interval 是闭合状态下清零计数的周期，默认 1 分钟
	Interval time.Duration

	// Timeout 是打开状态持续多久后转为半开，默认 30 秒
	Timeout time.Duration

	// MinRequests 与 FailureRatio 决定何时打开：请求数 >= MinRequests 且失败率 >= FailureRatio。
	// 默认 10 与 0.6
	MinRequests  uint32
	FailureRatio float64

	// OnStateChange 在状态变化时回调（可选），用于日志与指标
	OnStateChange func(name string, from, to gobreaker.State)
}

// BreakerStore 给 KeyValueStore 加熔断：后端连续失败时快速返回错误，
// 避免每个排序请求都等待超时。key 不存在不计为失败。
type BreakerStore struct {
	next core.KeyValueStore
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore 包装 next。
func NewBreakerStore(next core.KeyValueStore, opts BreakerOptions) *BreakerStore {
	if opts.MaxRequests == 0 {
		opts.MaxRequests = 3
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MinRequests == 0 {
		opts.MinRequests = 10
	}
	if opts.FailureRatio <= 0 {
		opts.FailureRatio = 0.6
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= opts.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= opts.FailureRatio
		},
		OnStateChange: opts.OnStateChange,
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsStoreNotFound(err)
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

var _ core.KeyValueStore = (*BreakerStore)(nil)

// State 返回当前熔断状态。
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func (b *BreakerStore) Name() string { return b.next.Name() }

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	return call(b, func() ([]byte, error) { return b.next.Get(ctx, key) })
}

func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return exec(b, func() error { return b.next.Set(ctx, key, value, ttl...) })
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	return exec(b, func() error { return b.next.Delete(ctx, key) })
}

func (b *BreakerStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	return call(b, func() (map[string][]byte, error) { return b.next.BatchGet(ctx, keys) })
}

func (b *BreakerStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return exec(b, func() error { return b.next.ZAdd(ctx, key, score, member) })
}

func (b *BreakerStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return call(b, func() ([]string, error) { return b.next.ZRange(ctx, key, start, stop) })
}

func (b *BreakerStore) HSet(ctx context.Context, key, field string, value []byte) error {
	return exec(b, func() error { return b.next.HSet(ctx, key, field, value) })
}

func (b *BreakerStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	return call(b, func() (map[string][]byte, error) { return b.next.HGetAll(ctx, key) })
}

// Close 不经过熔断，总是关闭底层存储。
func (b *BreakerStore) Close() error { return b.next.Close() }

func call[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

func exec(b *BreakerStore, fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) { return nil, fn() })
	return err
}
