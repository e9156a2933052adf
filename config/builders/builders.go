// Package builders 注册内置 Node 的配置构建器。
package builders

import (
	"fmt"

	"github.com/rushteam/feedrank/config"
	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/pipeline"
	"github.com/rushteam/feedrank/pkg/conv"
	"github.com/rushteam/feedrank/rank"
	"github.com/rushteam/feedrank/rerank"
	"github.com/rushteam/feedrank/score"
)

func init() {
	config.Register("rank.weighted", BuildWeightedNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("rerank.topn", BuildTopNNode)
}

// BuildWeightedNode 构建加权聚合节点。
//
//	config:
//	  strategies:
//	    - {name: Collaborative, weight: 0.4}
//	    - {name: ContentBased, weight: 0.4}
//	    - {name: Trending, weight: 0.2}
//	  half_life_hours: 24
//	  max_neighbors: 50
//	  min_overlap: 1
func BuildWeightedNode(cfg map[string]any) (pipeline.Node, error) {
	agg := rank.NewAggregator()

	for _, sc := range conv.ConfigGetMaps(cfg, "strategies") {
		name, err := core.ParseStrategy(conv.ConfigGet(sc, "name", ""))
		if err != nil {
			return nil, err
		}
		agg.Strategies = append(agg.Strategies, core.WeightedStrategy{
			Name:   name,
			Weight: conv.ConfigGetFloat64(sc, "weight", 0),
		})
	}

	calcs := score.DefaultCalculators()
	if h := conv.ConfigGetFloat64(cfg, "half_life_hours", 0); h > 0 {
		calcs = calcs.With(score.NewTrending(score.WithHalfLife(h)))
	}
	if n, m := conv.ConfigGetInt(cfg, "max_neighbors", 0), conv.ConfigGetInt(cfg, "min_overlap", 0); n > 0 || m > 0 {
		cf := score.NewCollaborative()
		if n > 0 {
			cf.MaxNeighbors = n
		}
		if m > 0 {
			cf.MinOverlap = m
		}
		calcs = calcs.With(cf)
	}
	agg.Calculators = calcs

	if len(agg.Strategies) > 0 {
		if err := agg.ValidateStrategies(agg.Strategies); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// BuildFilterNode 构建过滤节点。
//
//	config:
//	  filters:
//	    - {type: blacklist, content_ids: [a], creator_ids: [c]}
//	    - {type: quality, level: medium}
//	    - {type: age, window: week}
//	    - {type: expr, expr: 'item.category != "nsfw"'}
//	    - {type: seen}
//	    - {type: category, categories: [gaming, music]}
//	    - {type: query, query: 'how to -beginner'}
func BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	specs := conv.ConfigGetMaps(cfg, "filters")
	if specs == nil {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(specs))
	for _, fc := range specs {
		f, err := BuildFilter(fc)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return &filter.FilterNode{Filters: filters}, nil
}

// BuildFilter 按 type 构建单个过滤器。
func BuildFilter(fc map[string]any) (filter.Filter, error) {
	switch t := conv.ConfigGet(fc, "type", ""); t {
	case "blacklist":
		return filter.NewBlacklistFilter(
			conv.ConfigGetStrings(fc, "content_ids"),
			conv.ConfigGetStrings(fc, "creator_ids"),
		), nil
	case "quality":
		return filter.NewQualityFilter(filter.QualityLevel(conv.ConfigGet(fc, "level", "")))
	case "age":
		return filter.NewAgeFilter(filter.AgeWindow(conv.ConfigGet(fc, "window", "")))
	case "category":
		categories := conv.ConfigGetStrings(fc, "categories")
		if c := conv.ConfigGet(fc, "category", ""); c != "" {
			categories = append(categories, c)
		}
		return filter.NewCategoryFilter(categories...)
	case "query":
		return filter.NewQueryFilter(conv.ConfigGet(fc, "query", ""))
	case "expr":
		return filter.NewExprFilter(conv.ConfigGet(fc, "expr", ""))
	case "seen":
		types := conv.ConvertSlice(conv.ConfigGetStrings(fc, "types"), func(s string) (core.InteractionType, bool) {
			return core.InteractionType(s), s != ""
		})
		return &filter.SeenFilter{Types: types}, nil
	default:
		return nil, fmt.Errorf("unknown filter type: %q", t)
	}
}

// BuildDiversityNode 构建多样性重排节点。
func BuildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	d := rerank.NewDiversityFilter()
	d.MaxPerCategoryBeforeRelax = conv.ConfigGetInt(cfg, "max_per_category", d.MaxPerCategoryBeforeRelax)
	d.MaxPerCreatorBeforeRelax = conv.ConfigGetInt(cfg, "max_per_creator", d.MaxPerCreatorBeforeRelax)
	d.AlwaysIncludeScore = conv.ConfigGetFloat64(cfg, "always_include_score", 0)
	d.Lenient = conv.ConfigGet(cfg, "lenient", false)
	d.DisableRelax = !conv.ConfigGet(cfg, "relax", true)
	d.Limit = conv.ConfigGetInt(cfg, "limit", 0)
	if d.MaxPerCategoryBeforeRelax <= 0 || d.MaxPerCreatorBeforeRelax <= 0 {
		return nil, fmt.Errorf("diversity caps must be positive")
	}
	return d, nil
}

// BuildTopNNode 构建 Top-N 截断节点。
func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}
