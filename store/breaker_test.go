package store

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/feedrank/core"
)

// flakyStore 在 down 为 true 时所有读写都失败。
type flakyStore struct {
	*MemoryStore
	down  bool
	calls int
}

var errDown = errors.New("backend down")

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.calls++
	if f.down {
		return nil, errDown
	}
	return f.MemoryStore.Get(ctx, key)
}

func TestBreakerStore(t *testing.T) {
	ctx := context.Background()
	backend := &flakyStore{MemoryStore: NewMemoryStore()}
	var transitions []gobreaker.State
	s := NewBreakerStore(backend, BreakerOptions{
		MinRequests:   4,
		FailureRatio:  0.5,
		Timeout:       time.Hour,
		OnStateChange: func(_ string, _, to gobreaker.State) { transitions = append(transitions, to) },
	})
	defer s.Close()

	// key 不存在不算失败
	for i := 0; i < 10; i++ {
		if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
			t.Fatalf("Get(missing) error = %v", err)
		}
	}
	if s.State() != gobreaker.StateClosed {
		t.Fatalf("State() = %v after not-found reads, want closed", s.State())
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get(ctx, "k"); err != nil || string(v) != "v" {
		t.Fatalf("Get() = %q, %v", v, err)
	}

	backend.down = true
	for i := 0; i < 20; i++ {
		_, _ = s.Get(ctx, "k")
	}
	if s.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", s.State())
	}
	calls := backend.calls
	if _, err := s.Get(ctx, "k"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Get() while open error = %v, want ErrOpenState", err)
	}
	if backend.calls != calls {
		t.Errorf("backend called while breaker open")
	}
	if len(transitions) == 0 || transitions[len(transitions)-1] != gobreaker.StateOpen {
		t.Errorf("transitions = %v", transitions)
	}
	if s.Name() != "memory" {
		t.Errorf("Name() = %q", s.Name())
	}
}
