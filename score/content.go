package score

import (
	"github.com/rushteam/feedrank/core"
)

// ContentBased 是基于内容的打分器（Content-Based）。
//
// 核心思想："用户喜欢具有某些特征的内容，推荐具有相似特征的其他内容"
//
//	score = CategoryWeight · [类别 == 最偏好类别]
//	      + CreatorWeight  · [创作者已订阅]
//	      + TagWeight      · |tags ∩ preferredTags| / max(|tags ∪ preferredTags|, 1)
//
// preferredTags = UserContext.PreferredTags ∪ 近期互动内容的标签（仅限快照中存在的内容）。
type ContentBased struct {
	CategoryWeight float64
	CreatorWeight  float64
	TagWeight      float64
}

// NewContentBased 创建默认权重（0.4 / 0.3 / 0.3）的内容打分器。
func NewContentBased() *ContentBased {
	return &ContentBased{CategoryWeight: 0.4, CreatorWeight: 0.3, TagWeight: 0.3}
}

func (c *ContentBased) Strategy() core.Strategy { return core.StrategyContentBased }

func (c *ContentBased) Score(in *Input, contentID string) (float64, error) {
	item, err := lookup(in, core.StrategyContentBased, contentID)
	if err != nil {
		return 0, err
	}

	var s float64
	if top := in.User.TopCategory(); top != "" && item.Category == top {
		s += c.CategoryWeight
	}
	if in.User.IsSubscribed(item.CreatorID) {
		s += c.CreatorWeight
	}
	s += c.TagWeight * overlapRatio(toSet(item.Tags), preferredTags(in))
	return s, nil
}

func preferredTags(in *Input) map[string]struct{} {
	return in.cached("content.preferred_tags", func() any {
		tags := toSet(in.User.PreferredTags)
		for _, it := range in.User.RecentInteractions {
			content, err := in.Signals.GetContent(it.ContentID)
			if err != nil {
				continue
			}
			for _, t := range content.Tags {
				if t != "" {
					tags[t] = struct{}{}
				}
			}
		}
		return tags
	}).(map[string]struct{})
}
