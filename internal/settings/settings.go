// Package settings defines the gateway's configuration document and turns it
// into the llm provider table.
package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lgc202/llm-gateway/config"
	"github.com/lgc202/llm-gateway/internal/tempkb"
	"github.com/lgc202/llm-gateway/llm"
	"github.com/lgc202/llm-gateway/version"
)

// EnvPrefix 环境变量前缀，例如 GATEWAY_SERVER_ADDR
const EnvPrefix = "GATEWAY"

type Settings struct {
	Server          ServerSettings              `mapstructure:"server" json:"server" yaml:"server"`
	Log             LogSettings                 `mapstructure:"log" json:"log" yaml:"log"`
	Timeout         time.Duration               `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	ProbeTimeout    time.Duration               `mapstructure:"probe_timeout" json:"probe_timeout" yaml:"probe_timeout"`
	DefaultProvider string                      `mapstructure:"default_provider" json:"default_provider" yaml:"default_provider"`
	Providers       map[string]ProviderSettings `mapstructure:"providers" json:"providers" yaml:"providers"`
	Knowledge       KnowledgeSettings           `mapstructure:"knowledge" json:"knowledge" yaml:"knowledge"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr"`

	// AllowOrigins 为空时允许任意来源
	AllowOrigins []string `mapstructure:"allow_origins" json:"allow_origins" yaml:"allow_origins"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

type ProviderSettings struct {
	Endpoint  string  `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	APIKey    string  `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
	Model     string  `mapstructure:"model" json:"model" yaml:"model"`
	Style     string  `mapstructure:"style" json:"style" yaml:"style"`
	ProbePath string  `mapstructure:"probe_path" json:"probe_path" yaml:"probe_path"`
	Preflight bool    `mapstructure:"preflight" json:"preflight" yaml:"preflight"`
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`

	// Disabled 用于关闭内置 provider
	Disabled bool `mapstructure:"disabled" json:"disabled" yaml:"disabled"`
}

type KnowledgeSettings struct {
	Endpoint string        `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`

	// TempDataset 网页问答临时知识库使用的数据集名称
	TempDataset string `mapstructure:"temp_dataset" json:"temp_dataset" yaml:"temp_dataset"`
}

// builtinProviders 是未提供配置文件时的默认 provider 表
var builtinProviders = map[string]ProviderSettings{
	"ollama": {
		Endpoint: "http://host.docker.internal:11434/api/generate",
		Model:    "qwen2.5:32b",
		Style:    string(llm.StyleNativeOllama),
	},
	"gpt4": {
		Endpoint: "https://api.openai.com/v1",
		Model:    "chatgpt-4o-latest",
		Style:    string(llm.StyleOpenAIChat),
	},
	"deepseek-v3": {
		Endpoint: "https://api.deepseek.com/v1",
		Model:    "deepseek-chat",
		Style:    string(llm.StyleOpenAIChat),
	},
	"deepseek-r1": {
		Endpoint: "https://api.deepseek.com/v1",
		Model:    "deepseek-reasoner",
		Style:    string(llm.StyleOpenAIChat),
	},
	"macstudio-qwen": {
		Endpoint:  "http://172.19.9.158:9997/v1",
		Model:     "qwen2.5-32B-MLX",
		Style:     string(llm.StyleOpenAIChat),
		Preflight: true,
	},
}

// legacyKeyEnv 兼容旧部署中的环境变量名
var legacyKeyEnv = map[string]string{
	"gpt4":           "OPENAI_API_KEY",
	"deepseek-v3":    "DEEPSEEK_API_KEY",
	"deepseek-r1":    "DEEPSEEK_API_KEY",
	"macstudio-qwen": "MACSTUDIO_API_KEY",
}

// Defaults 返回全部 key 的默认值。viper 只为已知 key 读取环境变量。
func Defaults() map[string]any {
	d := map[string]any{
		"server.addr":            ":8000",
		"server.allow_origins":   []string{},
		"log.level":              "info",
		"log.format":             "console",
		"timeout":                "30s",
		"probe_timeout":          "5s",
		"default_provider":       "ollama",
		"knowledge.endpoint":     "http://localhost:9380",
		"knowledge.api_key":      "",
		"knowledge.timeout":      "30s",
		"knowledge.temp_dataset": tempkb.DefaultDatasetName,
	}
	for id, p := range builtinProviders {
		prefix := "providers." + id + "."
		d[prefix+"endpoint"] = p.Endpoint
		d[prefix+"api_key"] = p.APIKey
		d[prefix+"model"] = p.Model
		d[prefix+"style"] = p.Style
		d[prefix+"probe_path"] = p.ProbePath
		d[prefix+"preflight"] = p.Preflight
		d[prefix+"rate_limit"] = p.RateLimit
		d[prefix+"disabled"] = p.Disabled
	}
	return d
}

func envAliases() map[string][]string {
	out := make(map[string][]string, len(legacyKeyEnv))
	for id, legacy := range legacyKeyEnv {
		key := "providers." + id + ".api_key"
		out[key] = []string{envName(key), legacy}
	}
	out["knowledge.api_key"] = []string{envName("knowledge.api_key"), "RAGFLOW_API_KEY"}
	return out
}

func envName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + "_" + strings.ToUpper(r.Replace(key))
}

// Load 读取配置：默认值 < 配置文件 < .env < 环境变量。path 为空或文件不存在时只用默认值与环境变量。
func Load(path string, logger zerolog.Logger, watch bool) (*config.Config[Settings], error) {
	opts := []config.Option[Settings]{
		config.WithDefaults[Settings](Defaults()),
		config.WithEnv[Settings](EnvPrefix),
		config.WithEnvAliases[Settings](envAliases()),
		config.WithDotEnv[Settings](),
		config.WithOptionalFile[Settings](),
		config.WithLogger[Settings](logger),
	}
	if !watch {
		opts = append(opts, config.WithoutWatch[Settings]())
	}
	c, err := config.Load[Settings](path, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Get().Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 检查 provider 表与全局参数
func (s Settings) Validate() error {
	var errs []error
	if s.Timeout <= 0 {
		errs = append(errs, errors.New("settings: timeout must be positive"))
	}
	if s.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("settings: probe_timeout must be positive"))
	}
	if _, err := llm.NewRegistry(s.Profiles()...); err != nil {
		errs = append(errs, err)
	}
	if s.DefaultProvider != "" {
		p, ok := s.Providers[s.DefaultProvider]
		if !ok || p.Disabled {
			errs = append(errs, fmt.Errorf("settings: default_provider %q is not configured", s.DefaultProvider))
		}
	}
	return errors.Join(errs...)
}

// Profiles 将未禁用的 provider 配置转换为 llm.Profile，按 id 排序
func (s Settings) Profiles() []llm.Profile {
	ids := make([]string, 0, len(s.Providers))
	for id, p := range s.Providers {
		if !p.Disabled {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	out := make([]llm.Profile, 0, len(ids))
	for _, id := range ids {
		p := s.Providers[id]
		out = append(out, llm.Profile{
			ID:        id,
			Endpoint:  strings.TrimSpace(p.Endpoint),
			APIKey:    strings.TrimSpace(p.APIKey),
			Model:     strings.TrimSpace(p.Model),
			Style:     llm.Style(strings.TrimSpace(p.Style)),
			ProbePath: strings.TrimSpace(p.ProbePath),
			Preflight: p.Preflight,
			RateLimit: p.RateLimit,
		})
	}
	return out
}

// NewGateway 以当前配置构建新的 llm.Gateway
func (s Settings) NewGateway(logger zerolog.Logger, opts ...llm.Option) (*llm.Gateway, error) {
	reg, err := llm.NewRegistry(s.Profiles()...)
	if err != nil {
		return nil, err
	}
	all := []llm.Option{
		llm.WithTimeout(s.Timeout),
		llm.WithProbeTimeout(s.ProbeTimeout),
		llm.WithUserAgent(version.Get().UserAgent()),
		llm.WithLogger(logger.With().Str("component", "llm").Logger()),
	}
	return llm.New(reg, append(all, opts...)...)
}

// ProvidersChanged 判断 provider 相关配置是否变化，用于热加载
func ProvidersChanged(old, new Settings) bool {
	return config.Changed(old.Providers, new.Providers) ||
		old.Timeout != new.Timeout ||
		old.ProbeTimeout != new.ProbeTimeout ||
		old.DefaultProvider != new.DefaultProvider
}
