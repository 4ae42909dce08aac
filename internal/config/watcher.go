package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigWatcher 监听配置文件变更并热更新运行配置
// 主要服务于 auth.admins 租户管理员名单:调整管理员无需重启进程
type ConfigWatcher struct {
	mu        sync.RWMutex
	config    *Config
	viper     *viper.Viper
	callbacks []func(*Config)
	stopped   bool
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string) *ConfigWatcher {
	v := viper.New()
	v.SetConfigFile(configPath)

	return &ConfigWatcher{
		config: cfg,
		viper:  v,
	}
}

// OnConfigChange 注册配置变更回调,回调在新配置生效后调用
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.reload()
	})

	return nil
}

// reload 重新解析配置文件并通知回调
// 解析失败时保留旧配置,不中断服务
func (w *ConfigWatcher) reload() {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	var newCfg Config
	if err := w.viper.Unmarshal(&newCfg); err != nil {
		logrus.WithError(err).Warn("failed to reload config, keeping previous config")
		return
	}

	w.mu.Lock()
	w.config = &newCfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	// 回调在锁外执行,避免回调内读取配置时死锁
	for _, callback := range callbacks {
		callback(&newCfg)
	}
}

// Stop 停止配置监听
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
