package auth

import "sync"

// StaticDirectory 配置驱动的用户目录实现
// 身份数据归外部协作方所有,这里只维护任务指派规则 admin
// 需要的「租户 → 最早特权用户」映射
type StaticDirectory struct {
	mu     sync.RWMutex
	admins map[string]string
}

// NewStaticDirectory 创建静态用户目录
func NewStaticDirectory(admins map[string]string) *StaticDirectory {
	if admins == nil {
		admins = make(map[string]string)
	}
	return &StaticDirectory{admins: admins}
}

// EarliestAdmin 实现 engine.UserDirectory
func (d *StaticDirectory) EarliestAdmin(tenantID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.admins[tenantID], nil
}

// SetAdmin 设置租户的特权用户(配置热更新路径使用)
func (d *StaticDirectory) SetAdmin(tenantID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.admins[tenantID] = userID
}
