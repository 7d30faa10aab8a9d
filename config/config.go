package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config 配置管理器
type Config[T any] struct {
	v        *viper.Viper
	value    *T
	mu       sync.RWMutex
	watchers []func(old, new T)

	path       string
	optional   bool
	watch      bool
	dotenv     []string
	debounce   time.Duration
	logger     zerolog.Logger
	fileLoaded bool
}

// Option 配置选项
type Option[T any] func(*Config[T])

// WithDefaults 设置默认值
//
// viper 只会为已知 key 读取环境变量，需要被环境变量覆盖的 key 都应在这里给出默认值。
func WithDefaults[T any](defaults map[string]any) Option[T] {
	return func(c *Config[T]) {
		for k, v := range defaults {
			c.v.SetDefault(k, v)
		}
	}
}

// WithEnv 绑定环境变量，例如 prefix=GATEWAY 时 server.addr 对应 GATEWAY_SERVER_ADDR
func WithEnv[T any](prefix string) Option[T] {
	return func(c *Config[T]) {
		c.v.SetEnvPrefix(prefix)
		c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		c.v.AutomaticEnv()
	}
}

// WithEnvAliases 为 key 额外绑定环境变量名，按顺序取第一个非空值
//
// 需与 WithEnv 一起使用；prefix 推导出的名字需要显式写在 names 中。
func WithEnvAliases[T any](aliases map[string][]string) Option[T] {
	return func(c *Config[T]) {
		for key, names := range aliases {
			if len(names) == 0 {
				continue
			}
			_ = c.v.BindEnv(append([]string{key}, names...)...)
		}
	}
}

// WithDotEnv 在读取配置前加载 .env 文件，已存在的环境变量不会被覆盖
//
// 文件不存在时忽略。不传参数时加载当前目录的 .env。
func WithDotEnv[T any](files ...string) Option[T] {
	return func(c *Config[T]) {
		if len(files) == 0 {
			files = []string{".env"}
		}
		c.dotenv = append(c.dotenv, files...)
	}
}

// WithOptionalFile 允许配置文件缺失，此时只使用默认值与环境变量
func WithOptionalFile[T any]() Option[T] {
	return func(c *Config[T]) { c.optional = true }
}

// WithoutWatch 关闭文件监控（一次性命令使用）
func WithoutWatch[T any]() Option[T] {
	return func(c *Config[T]) { c.watch = false }
}

// WithDebounce 设置文件变更的防抖间隔，默认 100ms
func WithDebounce[T any](d time.Duration) Option[T] {
	return func(c *Config[T]) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithLogger 设置日志，用于记录重载失败与回调 panic
func WithLogger[T any](l zerolog.Logger) Option[T] {
	return func(c *Config[T]) { c.logger = l }
}

// Load 加载配置文件并自动监控变更
func Load[T any](path string, opts ...Option[T]) (*Config[T], error) {
	v := viper.New()

	c := &Config[T]{
		v:        v,
		path:     strings.TrimSpace(path),
		watch:    true,
		debounce: 100 * time.Millisecond,
		logger:   zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.loadDotEnv(); err != nil {
		return nil, err
	}

	if c.path != "" {
		v.SetConfigFile(c.path)
	}
	if err := c.readFile(); err != nil {
		return nil, err
	}

	var val T
	if err := v.Unmarshal(&val); err != nil {
		return nil, err
	}
	c.value = &val

	if c.watch && c.fileLoaded {
		c.startWatch()
	}
	return c, nil
}

func (c *Config[T]) loadDotEnv() error {
	for _, f := range c.dotenv {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		c.logger.Debug().Str("file", f).Msg("loaded dotenv file")
	}
	return nil
}

// readFile 读取配置文件；可选文件缺失时返回 nil
func (c *Config[T]) readFile() error {
	if c.path == "" {
		if c.optional {
			return nil
		}
		return errors.New("config: empty config path")
	}
	if _, err := os.Stat(c.path); err != nil && c.optional && errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug().Str("file", c.path).Msg("config file not found, using defaults and env")
		return nil
	}
	if err := c.v.ReadInConfig(); err != nil {
		return err
	}
	c.fileLoaded = true
	return nil
}

// Path 返回配置文件路径
func (c *Config[T]) Path() string { return c.path }

// Get 获取当前配置（并发安全，返回深拷贝）
func (c *Config[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(*c.value)
}

// OnChange 注册配置变更回调
func (c *Config[T]) OnChange(callback func(old, new T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, callback)
}

// Reload 立即重新读取配置，有变化时触发回调
func (c *Config[T]) Reload() error {
	oldConfig := c.Get()

	newConfig, watchers, err := c.reloadConfig()
	if err != nil {
		return err
	}
	c.notify(oldConfig, newConfig, watchers)
	return nil
}

// Changed 比较两个值是否不同
func Changed[T any](old, new T) bool {
	return !reflect.DeepEqual(old, new)
}

// deepCopy 通过 JSON 序列化实现深拷贝
func deepCopy[T any](src T) T {
	var dst T
	data, _ := json.Marshal(src)
	_ = json.Unmarshal(data, &dst)
	return dst
}

func (c *Config[T]) startWatch() {
	var (
		debounceTimer *time.Timer
		debounceMu    sync.Mutex
	)

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(c.debounce, c.handleConfigChange)
		debounceMu.Unlock()
	})

	c.v.WatchConfig()
}

func (c *Config[T]) handleConfigChange() {
	if err := c.Reload(); err != nil {
		c.logger.Warn().Err(err).Str("file", c.path).Msg("config reload failed, keeping previous value")
	}
}

func (c *Config[T]) notify(oldConfig, newConfig T, watchers []func(old, new T)) {
	if reflect.DeepEqual(oldConfig, newConfig) {
		return
	}

	for _, cb := range watchers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error().Interface("panic", r).Msg("config change callback panicked")
				}
			}()
			cb(oldConfig, newConfig)
		}()
	}
}

// reloadConfig 重新加载配置，返回新配置和回调列表
func (c *Config[T]) reloadConfig() (T, []func(old, new T), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if err := c.readFile(); err != nil {
		return zero, nil, err
	}

	var val T
	if err := c.v.Unmarshal(&val); err != nil {
		return zero, nil, err
	}
	c.value = &val

	watchers := make([]func(old, new T), len(c.watchers))
	copy(watchers, c.watchers)

	return deepCopy(val), watchers, nil
}
