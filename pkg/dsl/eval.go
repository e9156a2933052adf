// Package dsl 提供基于 CEL (Common Expression Language) 的候选过滤表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/feedrank/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("score", cel.DoubleType),
			cel.Variable("breakdown", cel.MapType(cel.StringType, cel.DoubleType)),
			cel.Variable("label", cel.MapType(cel.StringType, cel.StringType)),
			cel.Variable("user", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的表达式，可被并发复用。
//
// 可用变量：
//   - item: id / creator_id / category / tags / published_at / metrics.{views,likes,comments,shares}
//   - score: 聚合分
//   - breakdown: 策略名 → 未加权分，如 breakdown["Trending"]
//   - label: 候选 Label 的 value
//   - user: user_id / preferred_categories / subscribed_creators / preferred_tags
//
// 示例：
//   - `item.category != "nsfw" && score > 0.1`
//   - `item.metrics.views >= 100`
//   - `"viral" in label`
//   - `item.creator_id in user.subscribed_creators`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；表达式必须返回 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", expr, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Match 对候选求值。
func (p *Program) Match(c *core.ScoredCandidate, user *core.UserContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(c, user))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Evaluate 编译并执行一次表达式，空表达式视为 true。
// 需要反复求值时应先 Compile。
func Evaluate(expr string, c *core.ScoredCandidate, user *core.UserContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(c, user)
}

func buildInput(c *core.ScoredCandidate, user *core.UserContext) map[string]any {
	item := map[string]any{}
	breakdown := map[string]float64{}
	labels := map[string]string{}
	var score float64

	if c != nil {
		score = c.Score
		for k, v := range c.Breakdown {
			breakdown[string(k)] = v
		}
		for k, v := range c.Labels {
			labels[k] = v.Value
		}
		if it := c.Item; it != nil {
			tags := it.Tags
			if tags == nil {
				tags = []string{}
			}
			item = map[string]any{
				"id":           it.ID,
				"creator_id":   it.CreatorID,
				"category":     it.Category,
				"tags":         tags,
				"published_at": it.PublishedAt,
				"metrics": map[string]int64{
					"views":    it.Metrics.Views,
					"likes":    it.Metrics.Likes,
					"comments": it.Metrics.Comments,
					"shares":   it.Metrics.Shares,
				},
			}
		}
	}

	u := map[string]any{
		"user_id":              "",
		"preferred_categories": []string{},
		"subscribed_creators":  []string{},
		"preferred_tags":       []string{},
	}
	if user != nil {
		u["user_id"] = user.UserID
		u["preferred_categories"] = orEmpty(user.PreferredCategories)
		u["subscribed_creators"] = orEmpty(user.SubscribedCreators)
		u["preferred_tags"] = orEmpty(user.PreferredTags)
	}

	return map[string]any{
		"item":      item,
		"score":     score,
		"breakdown": breakdown,
		"label":     labels,
		"user":      u,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
