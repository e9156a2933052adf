package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
)

// Request 是一次排序请求。
type Request struct {
	// Context 是用户上下文
	Context core.UserContext `json:"context"`

	// Candidates 是待排序的候选，按 ID 去重（首次出现优先）
	Candidates []core.ContentItem `json:"candidates" validate:"dive"`

	// Limit 是返回数量上限，必须 > 0
	Limit int `json:"limit" validate:"gt=0"`

	// Strategies 为空时使用默认组合
	Strategies []core.WeightedStrategy `json:"strategies,omitempty" validate:"dive"`

	// Peers 是其他用户的互动历史（userID -> 互动），供协同过滤使用
	Peers map[string][]core.Interaction `json:"peers,omitempty" validate:"dive,dive"`

	// Now 是参考时间（epoch 毫秒），0 表示使用服务时钟
	Now int64 `json:"now,omitempty" validate:"gte=0"`

	Search
}

// Search 是可选的检索条件，在打分前过滤候选。
type Search struct {
	// Query 支持多词、-排除词与 "短语"，并按关键词推断意图
	Query string `json:"query,omitempty" validate:"max=256"`

	// Category 非空时只保留该分类
	Category string `json:"category,omitempty"`
}

func (s Search) filters() ([]filter.Filter, error) {
	var out []filter.Filter
	if s.Category != "" {
		f, err := filter.NewCategoryFilter(s.Category)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if strings.TrimSpace(s.Query) != "" {
		f, err := filter.NewQueryFilter(s.Query)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// StoredRequest 是基于存储数据的排序请求：候选与协同信号从存储中读取。
type StoredRequest struct {
	Context core.UserContext `json:"context"`

	// ContentIDs 为空时取爆款榜前 TrendingDepth 个
	ContentIDs []string `json:"contentIds,omitempty" validate:"dive,required"`

	// TrendingDepth 默认 limit 的 5 倍
	TrendingDepth int `json:"trendingDepth,omitempty" validate:"gte=0"`

	// LoadHistory 为 true 且 RecentInteractions 为空时，从存储读取用户近期互动
	LoadHistory bool `json:"loadHistory,omitempty"`

	Limit      int                     `json:"limit" validate:"gt=0"`
	Strategies []core.WeightedStrategy `json:"strategies,omitempty" validate:"dive"`
	Now        int64                   `json:"now,omitempty" validate:"gte=0"`

	Search
}

// Result 是一条排序结果。Breakdown 为各策略的未加权分。
type Result struct {
	ID        string             `json:"id"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown"`
	Labels    map[string]string  `json:"labels,omitempty"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateStruct 校验请求结构，失败时返回 INVALID_ARGUMENT。
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidArgument, "service: invalid request", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return core.InvalidArgument(core.ModuleService, "service: invalid request: "+strings.Join(msgs, "; "))
}
