package signal

// 存储 key 约定：
//   - {prefix}content:{id}                 内容文档（JSON）
//   - {prefix}interactions:user:{userID}    用户互动历史（JSON 数组，按时间追加）
//   - {prefix}interactions:content:{id}     Hash：userID -> 累计权重
//   - {prefix}trending                      有序集合：爆款内容 -> 热度
type keys struct {
	prefix string
}

func (k keys) content(id string) string      { return k.prefix + "content:" + id }
func (k keys) userHistory(id string) string  { return k.prefix + "interactions:user:" + id }
func (k keys) contentUsers(id string) string { return k.prefix + "interactions:content:" + id }
func (k keys) trending() string              { return k.prefix + "trending" }
