// Package config 维护配置驱动的 Node 注册表。
//
// 使用配置驱动时，需在入口处 import _ "github.com/rushteam/feedrank/config/builders"
// 以触发内置 Node（rank.weighted、filter、rerank.diversity、rerank.topn）的 init 注册。
package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rushteam/feedrank/pipeline"
)

// NodeBuilder 与 pipeline.NodeBuilder 一致：根据 config 构建 Node。
type NodeBuilder = pipeline.NodeBuilder

var (
	defaultBuilders   = make(map[string]NodeBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑，建议在 init 中调用。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的 Node 类型列表（排序）。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回包含所有已注册 Node 类型的 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 校验配置中的 node 类型均已注册，且恰好包含一个排序节点。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil pipeline config")
	}
	supported := SupportedTypes()
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	ranks := 0
	for _, nc := range cfg.Pipeline.Nodes {
		if _, ok := defaultBuilders[nc.Type]; !ok {
			return fmt.Errorf("unsupported node type %q (supported: %v)", nc.Type, supported)
		}
		if nc.Type == "rank.weighted" {
			ranks++
		}
	}
	if ranks != 1 {
		return fmt.Errorf("pipeline %q must contain exactly one rank.weighted node, got %d", cfg.Pipeline.Name, ranks)
	}
	return nil
}

// Load 从 YAML/JSON 文件加载、校验并构建 Pipeline。
func Load(path string) (*pipeline.Pipeline, error) {
	var (
		cfg *pipeline.Config
		err error
	)
	if strings.HasSuffix(path, ".json") {
		cfg, err = pipeline.LoadFromJSON(path)
	} else {
		cfg, err = pipeline.LoadFromYAML(path)
	}
	if err != nil {
		return nil, err
	}
	if err := ValidatePipelineConfig(cfg); err != nil {
		return nil, err
	}
	return cfg.BuildPipeline(DefaultFactory())
}
