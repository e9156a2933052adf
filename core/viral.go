package core

// ViralThresholds 是内容进入爆款榜的阈值，任一计数达到即视为爆款。
type ViralThresholds struct {
	Views    int64 `json:"views" yaml:"views"`
	Likes    int64 `json:"likes" yaml:"likes"`
	Comments int64 `json:"comments" yaml:"comments"`
	Shares   int64 `json:"shares" yaml:"shares"`
}

// DefaultViralThresholds 返回默认阈值：views 10000、likes 500、comments 100、shares 50。
func DefaultViralThresholds() ViralThresholds {
	return ViralThresholds{Views: 10000, Likes: 500, Comments: 100, Shares: 50}
}

// IsViral 判断计数是否达到任一阈值。阈值为 0 的维度不参与判断。
func (t ViralThresholds) IsViral(m Metrics) bool {
	return (t.Views > 0 && m.Views >= t.Views) ||
		(t.Likes > 0 && m.Likes >= t.Likes) ||
		(t.Comments > 0 && m.Comments >= t.Comments) ||
		(t.Shares > 0 && m.Shares >= t.Shares)
}

// EngagementScore 是线性互动热度：views + 3·likes + 5·comments + 10·shares。
// 用于爆款榜排序，不参与排序打分。
func (m Metrics) EngagementScore() float64 {
	return float64(m.Views) + 3*float64(m.Likes) + 5*float64(m.Comments) + 10*float64(m.Shares)
}
