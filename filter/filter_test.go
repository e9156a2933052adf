package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/store"
)

func candidate(id, creator string, m core.Metrics, publishedAt int64) *core.ScoredCandidate {
	return core.NewScoredCandidate(&core.ContentItem{
		ID:          id,
		CreatorID:   creator,
		Metrics:     m,
		PublishedAt: publishedAt,
	})
}

func ids(items []*core.ScoredCandidate) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBlacklistFilter(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	adapter := NewStoreAdapter(kv)
	if err := adapter.PutList(ctx, "bl:content", []string{"c"}); err != nil {
		t.Fatal(err)
	}
	if err := adapter.PutList(ctx, "bl:user:u1", []string{"carol"}); err != nil {
		t.Fatal(err)
	}

	f := NewBlacklistFilter([]string{"a"}, []string{"bob"})
	f.Store = adapter
	f.ContentKey = "bl:content"
	f.CreatorKey = "bl:creator" // 不存在，视为空名单
	f.UserKeyPrefix = "bl:user"

	node := &FilterNode{Filters: []Filter{f}}
	rctx := &core.RecommendContext{User: &core.UserContext{UserID: "u1"}}
	items := []*core.ScoredCandidate{
		candidate("a", "x", core.Metrics{}, 0),
		candidate("b", "bob", core.Metrics{}, 0),
		candidate("c", "x", core.Metrics{}, 0),
		candidate("d", "carol", core.Metrics{}, 0),
		candidate("e", "", core.Metrics{}, 0),
	}
	out, err := node.Process(ctx, rctx, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := ids(out); !equal(got, []string{"e"}) {
		t.Errorf("Process() = %v, want [e]", got)
	}
	if rctx.Labels["filtered"].Value != "4" {
		t.Errorf("filtered label = %q, want 4", rctx.Labels["filtered"].Value)
	}
}

func TestNewStoreBlacklistFilter(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	lists := NewStoreAdapter(kv)
	f := NewStoreBlacklistFilter(lists, "p:")
	if f.UserKey("u1") != "p:blocklist:user:u1" || f.UserKey("") != "" {
		t.Errorf("UserKey() = %q / %q", f.UserKey("u1"), f.UserKey(""))
	}
	if err := lists.PutList(ctx, f.CreatorKey, []string{"bob"}); err != nil {
		t.Fatal(err)
	}
	node := &FilterNode{Filters: []Filter{f}}
	out, err := node.Process(ctx, &core.RecommendContext{User: &core.UserContext{}}, []*core.ScoredCandidate{
		candidate("a", "bob", core.Metrics{}, 0),
		candidate("b", "amy", core.Metrics{}, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(out); !equal(got, []string{"b"}) {
		t.Errorf("Process() = %v, want [b]", got)
	}
}

func TestQualityFilter(t *testing.T) {
	tests := []struct {
		level   QualityLevel
		metrics core.Metrics
		drop    bool
	}{
		{QualityHigh, core.Metrics{Views: 10000}, false},
		{QualityHigh, core.Metrics{Views: 1000, Likes: 5}, true},
		{QualityMedium, core.Metrics{Views: 1000, Likes: 5}, false},
		{QualityLow, core.Metrics{Views: 100}, true},
		{QualityLow, core.Metrics{Views: 1000, Likes: 2}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			f, err := NewQualityFilter(tt.level)
			if err != nil {
				t.Fatal(err)
			}
			got, _ := f.ShouldFilter(context.Background(), nil, candidate("a", "", tt.metrics, 0))
			if got != tt.drop {
				t.Errorf("ShouldFilter(%+v) = %v, want %v", tt.metrics, got, tt.drop)
			}
		})
	}
	if _, err := NewQualityFilter("great"); !core.IsInvalidArgument(err) {
		t.Errorf("NewQualityFilter(unknown) error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestAgeFilter(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rctx := &core.RecommendContext{Now: now}
	f, err := NewAgeFilter(AgeWeek)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		published time.Time
		drop      bool
	}{
		{"fresh", now.Add(-time.Hour), false},
		{"edge", now.Add(-7 * 24 * time.Hour), false},
		{"old", now.Add(-8 * 24 * time.Hour), true},
		{"future", now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := f.ShouldFilter(context.Background(), rctx, candidate("a", "", core.Metrics{}, tt.published.UnixMilli()))
			if got != tt.drop {
				t.Errorf("ShouldFilter() = %v, want %v", got, tt.drop)
			}
		})
	}
	if _, err := NewAgeFilter("year"); !core.IsInvalidArgument(err) {
		t.Errorf("NewAgeFilter(unknown) error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestExprFilter(t *testing.T) {
	f, err := NewExprFilter(`item.metrics.views >= 100`)
	if err != nil {
		t.Fatal(err)
	}
	if f.Expr() != `item.metrics.views >= 100` {
		t.Errorf("Expr() = %q", f.Expr())
	}
	node := &FilterNode{Filters: []Filter{f}}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, []*core.ScoredCandidate{
		candidate("a", "", core.Metrics{Views: 50}, 0),
		candidate("b", "", core.Metrics{Views: 500}, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(out); !equal(got, []string{"b"}) {
		t.Errorf("Process() = %v, want [b]", got)
	}
	if _, err := NewExprFilter(`item.views >`); !core.IsInvalidArgument(err) {
		t.Errorf("NewExprFilter(bad) error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestSeenFilter(t *testing.T) {
	rctx := &core.RecommendContext{User: &core.UserContext{
		RecentInteractions: []core.Interaction{
			{ContentID: "a", Type: core.InteractionView},
			{ContentID: "b", Type: core.InteractionLike},
		},
	}}
	items := func() []*core.ScoredCandidate {
		return []*core.ScoredCandidate{
			candidate("a", "", core.Metrics{}, 0),
			candidate("b", "", core.Metrics{}, 0),
			candidate("c", "", core.Metrics{}, 0),
		}
	}
	tests := []struct {
		name  string
		types []core.InteractionType
		want  []string
	}{
		{"any type", nil, []string{"c"}},
		{"likes only", []core.InteractionType{core.InteractionLike}, []string{"a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &FilterNode{Filters: []Filter{&SeenFilter{Types: tt.types}}}
			out, err := node.Process(context.Background(), rctx, items())
			if err != nil {
				t.Fatal(err)
			}
			if got := ids(out); !equal(got, tt.want) {
				t.Errorf("Process() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterNode_SkipsFailingFilter(t *testing.T) {
	failing := failingFilter{}
	dropB := Func{FilterName: "drop_b", Fn: func(_ *core.RecommendContext, c *core.ScoredCandidate) bool {
		return c.ID() == "b"
	}}
	rctx := &core.RecommendContext{}
	node := &FilterNode{Filters: []Filter{failing, dropB}}
	out, err := node.Process(context.Background(), rctx, []*core.ScoredCandidate{
		candidate("a", "", core.Metrics{}, 0),
		candidate("b", "", core.Metrics{}, 0),
		nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(out); !equal(got, []string{"a"}) {
		t.Errorf("Process() = %v, want [a]", got)
	}
	if rctx.Labels["filter_error"].Value != "failing" {
		t.Errorf("filter_error label = %+v", rctx.Labels["filter_error"])
	}
}

type failingFilter struct{}

func (failingFilter) Name() string { return "failing" }

func (failingFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.ScoredCandidate) (bool, error) {
	return false, errors.New("boom")
}
