package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWatcherConfig 写配置文件并返回路径
func writeWatcherConfig(t *testing.T, dir, admin string) string {
	t.Helper()

	path := filepath.Join(dir, "config.yaml")
	content := `
env: development
auth:
  admins:
    tnt-001: ` + admin + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestWatcherReload 测试重载后回调收到新配置、GetConfig 同步更新
func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := writeWatcherConfig(t, dir, "user-admin")

	cfg, err := Load(path)
	require.NoError(t, err)

	// 不启动文件监听,直接驱动重载路径,避免测试依赖文件系统事件时序
	watcher := NewConfigWatcher(cfg, path)
	require.NoError(t, watcher.viper.ReadInConfig())

	var received *Config
	watcher.OnConfigChange(func(updated *Config) {
		received = updated
	})

	// 改写管理员名单后重载
	writeWatcherConfig(t, dir, "user-new-admin")
	require.NoError(t, watcher.viper.ReadInConfig())
	watcher.reload()

	require.NotNil(t, received)
	assert.Equal(t, "user-new-admin", received.Auth.Admins["tnt-001"])
	assert.Equal(t, "user-new-admin", watcher.GetConfig().Auth.Admins["tnt-001"])
}

// TestWatcherReloadAfterStop 测试停止后不再重载、不再触发回调
func TestWatcherReloadAfterStop(t *testing.T) {
	dir := t.TempDir()
	path := writeWatcherConfig(t, dir, "user-admin")

	cfg, err := Load(path)
	require.NoError(t, err)

	watcher := NewConfigWatcher(cfg, path)
	require.NoError(t, watcher.viper.ReadInConfig())

	invoked := false
	watcher.OnConfigChange(func(*Config) {
		invoked = true
	})

	watcher.Stop()
	writeWatcherConfig(t, dir, "user-new-admin")
	require.NoError(t, watcher.viper.ReadInConfig())
	watcher.reload()

	assert.False(t, invoked)
	assert.Equal(t, "user-admin", watcher.GetConfig().Auth.Admins["tnt-001"])
}

// TestWatcherStartMissingFile 测试监听缺失文件时报错
func TestWatcherStartMissingFile(t *testing.T) {
	watcher := NewConfigWatcher(Default(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, watcher.Start())
}
