package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/rank"
	"github.com/rushteam/feedrank/rerank"
	"github.com/rushteam/feedrank/signal"
	"github.com/rushteam/feedrank/store"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestRecommender(t *testing.T, opts ...Option) *Recommender {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func resultIDs(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID)
	}
	return out
}

func sameIDs(a, b []string) bool {
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

func TestRecommend_EndToEnd(t *testing.T) {
	r := newTestRecommender(t)
	m := core.Metrics{Views: 1000, Likes: 100, Comments: 10, Shares: 5}
	req := Request{
		Context: core.UserContext{PreferredCategories: []string{"gaming"}},
		Candidates: []core.ContentItem{
			{ID: "b", Category: "music", Metrics: m, PublishedAt: testNow.Add(-2 * time.Hour).UnixMilli()},
			{ID: "a", Category: "gaming", Metrics: m, PublishedAt: testNow.Add(-time.Hour).UnixMilli()},
		},
		Limit: 2,
	}
	got, err := r.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if ids := resultIDs(got); !sameIDs(ids, []string{"a", "b"}) {
		t.Errorf("Recommend() = %v, want [a b]", ids)
	}
	if got[0].Breakdown[string(core.StrategyContentBased)] <= got[1].Breakdown[string(core.StrategyContentBased)] {
		t.Errorf("category match should raise ContentBased: %v vs %v", got[0].Breakdown, got[1].Breakdown)
	}

	again, _ := r.Recommend(context.Background(), req)
	for i := range got {
		if got[i].ID != again[i].ID || got[i].Score != again[i].Score {
			t.Fatalf("Recommend() is not deterministic: %v vs %v", got, again)
		}
	}
}

func TestRecommend_Empty(t *testing.T) {
	r := newTestRecommender(t)
	got, err := r.Recommend(context.Background(), Request{Limit: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Recommend(empty) = %v, want empty non-nil slice", got)
	}
}

func TestRecommend_ZeroSignalKeepsInputOrder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRecommender(t, WithRegisterer(reg))
	var cands []core.ContentItem
	for _, id := range []string{"z", "y", "x", "w"} {
		cands = append(cands, core.ContentItem{ID: id, Category: "misc", PublishedAt: testNow.UnixMilli()})
	}
	got, err := r.Recommend(context.Background(), Request{
		Context:    core.UserContext{PreferredCategories: []string{"gaming"}},
		Candidates: cands,
		Limit:      3,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if ids := resultIDs(got); !sameIDs(ids, []string{"z", "y", "x"}) {
		t.Errorf("Recommend() = %v, want [z y x]", ids)
	}
	if got[0].Labels["fallback"] != "true" {
		t.Errorf("labels = %v, want fallback", got[0].Labels)
	}
	if v := testutil.ToFloat64(r.metrics.fallbacks); v != 1 {
		t.Errorf("fallback counter = %v, want 1", v)
	}
	if v := testutil.ToFloat64(r.metrics.requests.WithLabelValues(outcomeFallback)); v != 1 {
		t.Errorf("fallback outcome = %v, want 1", v)
	}
}

func TestRecommend_InvalidArgument(t *testing.T) {
	r := newTestRecommender(t, WithMaxCandidates(2))
	item := core.ContentItem{ID: "a"}
	tests := []struct {
		name string
		req  Request
	}{
		{"zero limit", Request{Candidates: []core.ContentItem{item}, Limit: 0}},
		{"negative limit", Request{Candidates: []core.ContentItem{item}, Limit: -1}},
		{"empty id", Request{Candidates: []core.ContentItem{{}}, Limit: 1}},
		{"unknown strategy", Request{Candidates: []core.ContentItem{item}, Limit: 1,
			Strategies: []core.WeightedStrategy{{Name: "Random", Weight: 1}}}},
		{"negative weight", Request{Candidates: []core.ContentItem{item}, Limit: 1,
			Strategies: []core.WeightedStrategy{{Name: core.StrategyTrending, Weight: -0.5}}}},
		{"too many candidates", Request{Candidates: []core.ContentItem{item, item, item}, Limit: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Recommend(context.Background(), tt.req); !core.IsInvalidArgument(err) {
				t.Errorf("Recommend() error = %v, want INVALID_ARGUMENT", err)
			}
		})
	}
	if v := testutil.ToFloat64(r.metrics.requests.WithLabelValues(outcomeInvalid)); v != float64(len(tests)) {
		t.Errorf("invalid outcome = %v, want %d", v, len(tests))
	}
}

func TestRecommend_NegativeMetricsIsDataQuality(t *testing.T) {
	r := newTestRecommender(t)
	got, err := r.Recommend(context.Background(), Request{
		Candidates: []core.ContentItem{
			{ID: "bad", Metrics: core.Metrics{Views: -5}},
			{ID: "ok", Metrics: core.Metrics{Views: 100, Likes: 10}},
		},
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if ids := resultIDs(got); len(ids) != 2 || ids[0] != "ok" {
		t.Errorf("Recommend() = %v, want ok first", ids)
	}
	if v := testutil.ToFloat64(r.metrics.dataQuality.WithLabelValues(string(core.StrategyTrending))); v < 1 {
		t.Errorf("data quality counter = %v, want >= 1", v)
	}
}

func TestRecommend_BoundedDiverseNoDuplicates(t *testing.T) {
	r := newTestRecommender(t)
	var cands []core.ContentItem
	for i := 0; i < 30; i++ {
		cands = append(cands, core.ContentItem{
			ID:          fmt.Sprintf("c%02d", i),
			CreatorID:   fmt.Sprintf("creator%d", i%7),
			Category:    fmt.Sprintf("cat%d", i%3),
			Metrics:     core.Metrics{Views: int64(1000 + i*100), Likes: int64(10 + i)},
			PublishedAt: testNow.Add(-time.Duration(i) * time.Hour).UnixMilli(),
		})
	}
	cands = append(cands, cands[0])

	for _, limit := range []int{1, 5, 12, 50} {
		got, err := r.Recommend(context.Background(), Request{Candidates: cands, Limit: limit})
		if err != nil {
			t.Fatalf("Recommend(limit=%d) error = %v", limit, err)
		}
		if len(got) > limit || len(got) > 30 {
			t.Errorf("limit %d: got %d results", limit, len(got))
		}
		seen := map[string]bool{}
		perCategory := map[string]int{}
		for _, res := range got {
			if seen[res.ID] {
				t.Errorf("limit %d: duplicate %s", limit, res.ID)
			}
			seen[res.ID] = true
			if res.Labels["diversity"] == "" {
				perCategory[categoryOf(cands, res.ID)]++
			}
		}
		for cat, n := range perCategory {
			if n > 5 {
				t.Errorf("limit %d: %d items from %s before relax", limit, n, cat)
			}
		}
	}
}

func categoryOf(items []core.ContentItem, id string) string {
	for _, it := range items {
		if it.ID == id {
			return it.Category
		}
	}
	return ""
}

func TestRecommend_CustomPipeline(t *testing.T) {
	agg := rank.NewAggregator()
	agg.Strategies = []core.WeightedStrategy{{Name: core.StrategyEngagementQuality, Weight: 1}}
	p := &pipeline.Pipeline{Nodes: []pipeline.Node{
		agg,
		&filter.FilterNode{Filters: []filter.Filter{filter.NewBlacklistFilter([]string{"best"}, nil)}},
		&rerank.TopNNode{N: 1},
	}}
	r := newTestRecommender(t, WithPipeline(p))
	got, err := r.Recommend(context.Background(), Request{
		Candidates: []core.ContentItem{
			{ID: "low", Metrics: core.Metrics{Views: 1000, Likes: 1}},
			{ID: "best", Metrics: core.Metrics{Views: 1000, Likes: 9}},
			{ID: "mid", Metrics: core.Metrics{Views: 1000, Likes: 4}},
		},
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if ids := resultIDs(got); !sameIDs(ids, []string{"mid"}) {
		t.Errorf("Recommend() = %v, want [mid]", ids)
	}

	if _, err := New(WithPipeline(&pipeline.Pipeline{Nodes: []pipeline.Node{&rerank.TopNNode{}}})); err == nil {
		t.Error("New() with pipeline lacking rank node should fail")
	}
	if _, err := New(WithPipeline(&pipeline.Pipeline{Nodes: []pipeline.Node{agg, agg}})); err == nil {
		t.Error("New() with two rank nodes should fail")
	}
}

func TestRecommendBatch(t *testing.T) {
	r := newTestRecommender(t, WithMaxConcurrency(2))
	reqs := make([]Request, 5)
	for i := range reqs {
		reqs[i] = Request{
			Candidates: []core.ContentItem{
				{ID: "a", Metrics: core.Metrics{Views: 10, Likes: int64(i)}},
				{ID: "b", Metrics: core.Metrics{Views: 10, Likes: 2}},
			},
			Limit: 1,
		}
	}
	got, err := r.RecommendBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("RecommendBatch() error = %v", err)
	}
	if len(got) != len(reqs) {
		t.Fatalf("RecommendBatch() = %d results, want %d", len(got), len(reqs))
	}
	for i, res := range got {
		single, _ := r.Recommend(context.Background(), reqs[i])
		if !sameIDs(resultIDs(res), resultIDs(single)) {
			t.Errorf("request %d: batch %v != single %v", i, resultIDs(res), resultIDs(single))
		}
	}

	reqs[3].Limit = 0
	if _, err := r.RecommendBatch(context.Background(), reqs); !core.IsInvalidArgument(err) {
		t.Errorf("RecommendBatch() error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestRecommendStored(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	rec := signal.NewRecorder(kv, "")
	rec.Viral = &core.ViralThresholds{Likes: 1, Shares: 1}

	for _, it := range []core.ContentItem{
		{ID: "a", Category: "gaming", PublishedAt: testNow.Add(-time.Hour).UnixMilli()},
		{ID: "b", Category: "music", PublishedAt: testNow.Add(-time.Hour).UnixMilli()},
		{ID: "c", Category: "news", PublishedAt: testNow.Add(-time.Hour).UnixMilli()},
	} {
		if err := rec.Publish(ctx, it); err != nil {
			t.Fatal(err)
		}
	}
	record := func(user, id string, typ core.InteractionType) {
		t.Helper()
		if _, err := rec.Record(ctx, user, core.Interaction{ContentID: id, Type: typ}); err != nil {
			t.Fatal(err)
		}
	}
	record("me", "a", core.InteractionLike)
	record("peer", "a", core.InteractionLike)
	record("peer", "c", core.InteractionShare)
	record("other", "b", core.InteractionLike)

	r := newTestRecommender(t)
	loader := signal.NewLoader(kv, "")
	got, err := r.RecommendStored(ctx, loader, StoredRequest{
		Context:     core.UserContext{UserID: "me"},
		LoadHistory: true,
		Limit:       3,
		Strategies:  []core.WeightedStrategy{{Name: core.StrategyCollaborative, Weight: 1}},
	})
	if err != nil {
		t.Fatalf("RecommendStored() error = %v", err)
	}
	if len(got) == 0 || got[0].ID != "c" {
		t.Errorf("RecommendStored() = %v, want c first (liked by similar user)", resultIDs(got))
	}

	got, err = r.RecommendStored(ctx, loader, StoredRequest{ContentIDs: []string{"b", "missing"}, Limit: 5})
	if err != nil {
		t.Fatalf("RecommendStored() error = %v", err)
	}
	if ids := resultIDs(got); !sameIDs(ids, []string{"b"}) {
		t.Errorf("RecommendStored(ids) = %v, want [b]", ids)
	}
}

func TestRecommend_TrendingOnlyUsesRecency(t *testing.T) {
	r := newTestRecommender(t)
	cands := []core.ContentItem{
		{ID: "z", Category: "misc", PublishedAt: testNow.Add(-3 * time.Hour).UnixMilli()},
		{ID: "y", Category: "misc", PublishedAt: testNow.Add(-time.Hour).UnixMilli()},
		{ID: "x", Category: "misc", PublishedAt: testNow.Add(-2 * time.Hour).UnixMilli()},
	}
	tests := []struct {
		name       string
		strategies []core.WeightedStrategy
		want       []string
		fallback   bool
	}{
		{"default blend", nil, []string{"z", "y", "x"}, true},
		{"trending only", []core.WeightedStrategy{{Name: core.StrategyTrending, Weight: 1}}, []string{"y", "x", "z"}, false},
		{"trending with zero-weight others", []core.WeightedStrategy{
			{Name: core.StrategyTrending, Weight: 1},
			{Name: core.StrategyContentBased, Weight: 0},
		}, []string{"y", "x", "z"}, false},
		{"explicit blend", []core.WeightedStrategy{
			{Name: core.StrategyTrending, Weight: 0.5},
			{Name: core.StrategyContentBased, Weight: 0.5},
		}, []string{"z", "y", "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Recommend(context.Background(), Request{Candidates: cands, Limit: 3, Strategies: tt.strategies})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if ids := resultIDs(got); !sameIDs(ids, tt.want) {
				t.Errorf("Recommend() = %v, want %v", ids, tt.want)
			}
			if fb := got[0].Labels["fallback"] == "true"; fb != tt.fallback {
				t.Errorf("fallback = %v, want %v", fb, tt.fallback)
			}
		})
	}
}

func TestRecommend_Search(t *testing.T) {
	r := newTestRecommender(t)
	m := core.Metrics{Views: 1000, Likes: 50}
	cands := []core.ContentItem{
		{ID: "a", Category: "gaming", Tags: []string{"walkthrough"}, Metrics: m},
		{ID: "b", Category: "music", Tags: []string{"album"}, Metrics: m},
		{ID: "c", Category: "gaming", Tags: []string{"beginner"}, Metrics: m},
		{ID: "d", Category: "education", Tags: []string{"tutorial"}, Metrics: m},
	}
	tests := []struct {
		name   string
		search Search
		want   []string
	}{
		{"query with exclusion", Search{Query: "gaming -beginner"}, []string{"a"}},
		{"category", Search{Category: "music"}, []string{"b"}},
		{"tutorial intent", Search{Query: "tutorial"}, []string{"d"}},
		{"category and query disagree", Search{Category: "music", Query: "gaming"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Recommend(context.Background(), Request{Candidates: cands, Limit: 10, Search: tt.search})
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if ids := resultIDs(got); !sameIDs(ids, tt.want) {
				t.Errorf("Recommend() = %v, want %v", ids, tt.want)
			}
		})
	}

	long := Search{Query: string(make([]byte, 300))}
	if _, err := r.Recommend(context.Background(), Request{Candidates: cands, Limit: 1, Search: long}); !core.IsInvalidArgument(err) {
		t.Errorf("Recommend(long query) error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestRecommend_WithFiltersOnCustomPipeline(t *testing.T) {
	agg := rank.NewAggregator()
	agg.Strategies = []core.WeightedStrategy{{Name: core.StrategyEngagementQuality, Weight: 1}}
	p := &pipeline.Pipeline{Nodes: []pipeline.Node{agg, &rerank.TopNNode{N: 2}}}
	r := newTestRecommender(t, WithPipeline(p), WithFilters(filter.NewBlacklistFilter([]string{"best"}, nil)))

	got, err := r.Recommend(context.Background(), Request{
		Candidates: []core.ContentItem{
			{ID: "low", Metrics: core.Metrics{Views: 1000, Likes: 1}},
			{ID: "best", Metrics: core.Metrics{Views: 1000, Likes: 9}},
			{ID: "mid", Metrics: core.Metrics{Views: 1000, Likes: 4}},
		},
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if ids := resultIDs(got); !sameIDs(ids, []string{"mid", "low"}) {
		t.Errorf("Recommend() = %v, want [mid low]", ids)
	}
	if len(p.Nodes) != 2 {
		t.Errorf("caller pipeline modified: %d nodes", len(p.Nodes))
	}
}
