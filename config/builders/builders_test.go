package builders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/feedrank/config"
	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/rank"
	"github.com/rushteam/feedrank/rerank"
	"github.com/rushteam/feedrank/score"
)

func TestRegisteredTypes(t *testing.T) {
	got := config.SupportedTypes()
	want := []string{"filter", "rank.weighted", "rerank.diversity", "rerank.topn"}
	if len(got) != len(want) {
		t.Fatalf("SupportedTypes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SupportedTypes() = %v, want %v", got, want)
		}
	}
}

func TestBuildWeightedNode(t *testing.T) {
	node, err := BuildWeightedNode(map[string]any{
		"strategies": []any{
			map[string]any{"name": "Trending", "weight": 0.7},
			map[string]any{"name": "EngagementQuality", "weight": 1},
		},
		"max_neighbors": 10,
	})
	if err != nil {
		t.Fatalf("BuildWeightedNode() error = %v", err)
	}
	agg := node.(*rank.Aggregator)
	if len(agg.Strategies) != 2 || agg.Strategies[1].Weight != 1 {
		t.Errorf("strategies = %+v", agg.Strategies)
	}
	cf, ok := agg.Calculators[core.StrategyCollaborative].(*score.Collaborative)
	if !ok || cf.MaxNeighbors != 10 {
		t.Errorf("collaborative calculator = %+v", agg.Calculators[core.StrategyCollaborative])
	}

	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{"unknown strategy", map[string]any{"strategies": []any{map[string]any{"name": "Random", "weight": 1}}}},
		{"negative weight", map[string]any{"strategies": []any{map[string]any{"name": "Trending", "weight": -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildWeightedNode(tt.cfg); !core.IsInvalidArgument(err) {
				t.Errorf("BuildWeightedNode() error = %v, want INVALID_ARGUMENT", err)
			}
		})
	}
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		cfg     map[string]any
		want    string
		wantErr bool
	}{
		{map[string]any{"type": "blacklist", "content_ids": []any{"a"}}, "filter.blacklist", false},
		{map[string]any{"type": "quality", "level": "high"}, "filter.quality", false},
		{map[string]any{"type": "quality", "level": "extreme"}, "", true},
		{map[string]any{"type": "age", "window": "today"}, "filter.age", false},
		{map[string]any{"type": "expr", "expr": `item.category != "nsfw"`}, "filter.expr", false},
		{map[string]any{"type": "expr", "expr": `item.category !=`}, "", true},
		{map[string]any{"type": "seen", "types": []any{"like"}}, "filter.seen", false},
		{map[string]any{"type": "category", "categories": []any{"gaming"}}, "filter.category", false},
		{map[string]any{"type": "category", "category": "music"}, "filter.category", false},
		{map[string]any{"type": "category"}, "", true},
		{map[string]any{"type": "query", "query": `"step by step" guide`}, "filter.query", false},
		{map[string]any{"type": "query", "query": "  "}, "", true},
		{map[string]any{"type": "random"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.cfg["type"].(string), func(t *testing.T) {
			f, err := BuildFilter(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && f.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", f.Name(), tt.want)
			}
		})
	}

	if _, err := BuildFilterNode(map[string]any{}); err == nil {
		t.Error("BuildFilterNode() without filters should fail")
	}
	node, err := BuildFilterNode(map[string]any{"filters": []any{map[string]any{"type": "seen"}}})
	if err != nil {
		t.Fatal(err)
	}
	if fn := node.(*filter.FilterNode); len(fn.Filters) != 1 {
		t.Errorf("filters = %v", fn.Filters)
	}
}

func TestBuildDiversityNode(t *testing.T) {
	node, err := BuildDiversityNode(map[string]any{
		"max_per_category":     3,
		"always_include_score": 0.9,
		"lenient":              true,
		"relax":                false,
	})
	if err != nil {
		t.Fatal(err)
	}
	d := node.(*rerank.DiversityFilter)
	if d.MaxPerCategoryBeforeRelax != 3 || d.MaxPerCreatorBeforeRelax != 10 {
		t.Errorf("caps = %d/%d, want 3/10", d.MaxPerCategoryBeforeRelax, d.MaxPerCreatorBeforeRelax)
	}
	if d.AlwaysIncludeScore != 0.9 || !d.Lenient || !d.DisableRelax {
		t.Errorf("options = %+v", d)
	}
	if _, err := BuildDiversityNode(map[string]any{"max_per_creator": 0}); err == nil {
		t.Error("BuildDiversityNode() with zero cap should fail")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	yaml := `
pipeline:
  name: feed
  nodes:
    - type: rank.weighted
      config:
        strategies:
          - {name: Collaborative, weight: 0.4}
          - {name: ContentBased, weight: 0.4}
          - {name: Trending, weight: 0.2}
    - type: filter
      config:
        filters:
          - {type: seen}
    - type: rerank.diversity
      config:
        max_per_category: 5
    - type: rerank.topn
      config:
        n: 20
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	kinds := []pipeline.Kind{pipeline.KindRank, pipeline.KindFilter, pipeline.KindReRank, pipeline.KindReRank}
	if len(p.Nodes) != len(kinds) {
		t.Fatalf("nodes = %d, want %d", len(p.Nodes), len(kinds))
	}
	for i, k := range kinds {
		if p.Nodes[i].Kind() != k {
			t.Errorf("node %d kind = %s, want %s", i, p.Nodes[i].Kind(), k)
		}
	}
}

func TestValidatePipelineConfig(t *testing.T) {
	tests := []struct {
		name  string
		nodes []pipeline.NodeConfig
	}{
		{"no rank", []pipeline.NodeConfig{{Type: "filter"}}},
		{"two ranks", []pipeline.NodeConfig{{Type: "rank.weighted"}, {Type: "rank.weighted"}}},
		{"unknown type", []pipeline.NodeConfig{{Type: "rank.weighted"}, {Type: "rank.dnn"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &pipeline.Config{}
			cfg.Pipeline.Nodes = tt.nodes
			if err := config.ValidatePipelineConfig(cfg); err == nil {
				t.Error("ValidatePipelineConfig() expected error")
			}
		})
	}
}
