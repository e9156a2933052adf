package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/feedrank/core"
)

func testGetSet(t *testing.T, s core.KeyValueStore) {
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get(missing) error = %v, want not found", err)
	}
	value := []byte("v1")
	if err := s.Set(ctx, "k", value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'x'
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Errorf("Get() = %q, %v; want v1 (stored value must be copied)", got, err)
	}

	batch, _ := s.BatchGet(ctx, []string{"k", "missing"})
	if len(batch) != 1 || string(batch["k"]) != "v1" {
		t.Errorf("BatchGet() = %v", batch)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Errorf("Get(deleted) error = %v, want not found", err)
	}
}

// testKeyValueStore 是所有 KeyValueStore 实现共享的行为用例。
func testKeyValueStore(t *testing.T, open func(t *testing.T) core.KeyValueStore) {
	cases := []struct {
		name string
		fn   func(*testing.T, core.KeyValueStore)
	}{
		{"get_set", testGetSet},
		{"zrange", testZRange},
		{"hash", testHash},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			tc.fn(t, s)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	testKeyValueStore(t, func(*testing.T) core.KeyValueStore { return NewMemoryStore() })
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	s.mu.Lock()
	past := time.Now().Add(-time.Second)
	s.data["expired"] = &entry{value: []byte("v"), ttl: &past}
	s.mu.Unlock()

	if _, err := s.Get(ctx, "expired"); !core.IsStoreNotFound(err) {
		t.Errorf("Get(expired) error = %v, want not found", err)
	}
	if err := s.Set(ctx, "live", []byte("v"), 60); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := s.Get(ctx, "live"); err != nil {
		t.Errorf("Get(live) error = %v", err)
	}
}

func testZRange(t *testing.T, s core.KeyValueStore) {
	ctx := context.Background()

	for member, score := range map[string]float64{"a": 1, "b": 3, "c": 3, "d": 2} {
		_ = s.ZAdd(ctx, "z", score, member)
	}
	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"all", 0, -1, []string{"b", "c", "d", "a"}},
		{"top2", 0, 1, []string{"b", "c"}},
		{"stop beyond", 2, 100, []string{"d", "a"}},
		{"empty range", 5, 6, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ZRange(ctx, "z", tt.start, tt.stop)
			if err != nil {
				t.Fatalf("ZRange() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ZRange() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ZRange() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
	if got, _ := s.ZRange(ctx, "missing", 0, -1); len(got) != 0 {
		t.Errorf("ZRange(missing) = %v, want empty", got)
	}
}

func testHash(t *testing.T, s core.KeyValueStore) {
	ctx := context.Background()

	_ = s.HSet(ctx, "h", "u1", []byte("1"))
	_ = s.HSet(ctx, "h", "u2", []byte("2"))
	_ = s.HSet(ctx, "h", "u1", []byte("3"))
	got, err := s.HGetAll(ctx, "h")
	if err != nil {
		t.Fatalf("HGetAll() error = %v", err)
	}
	if len(got) != 2 || string(got["u1"]) != "3" {
		t.Errorf("HGetAll() = %v", got)
	}
	if empty, _ := s.HGetAll(ctx, "missing"); len(empty) != 0 {
		t.Errorf("HGetAll(missing) = %v, want empty", empty)
	}
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
