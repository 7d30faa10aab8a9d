package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Server struct {
		Addr string `mapstructure:"addr" json:"addr"`
	} `mapstructure:"server" json:"server"`
	Timeout   time.Duration           `mapstructure:"timeout" json:"timeout"`
	Providers map[string]testProvider `mapstructure:"providers" json:"providers"`
}

type testProvider struct {
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	APIKey   string `mapstructure:"api_key" json:"api_key"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_FileDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gateway.yaml", `
server:
  addr: ":9000"
providers:
  gpt4:
    endpoint: https://api.openai.com/v1
`)
	t.Setenv("CFGTEST_PROVIDERS_GPT4_API_KEY", "sk-from-env")

	c, err := Load[testConfig](path,
		WithDefaults[testConfig](map[string]any{
			"timeout":                 "30s",
			"providers.gpt4.api_key":  "",
			"providers.gpt4.endpoint": "",
			"server.addr":             ":8000",
		}),
		WithEnv[testConfig]("CFGTEST"),
		WithoutWatch[testConfig](),
	)
	require.NoError(t, err)

	got := c.Get()
	assert.Equal(t, ":9000", got.Server.Addr)
	assert.Equal(t, 30*time.Second, got.Timeout)
	assert.Equal(t, "https://api.openai.com/v1", got.Providers["gpt4"].Endpoint)
	assert.Equal(t, "sk-from-env", got.Providers["gpt4"].APIKey)
	assert.Equal(t, path, c.Path())
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load[testConfig](missing, WithoutWatch[testConfig]())
	assert.Error(t, err)

	c, err := Load[testConfig](missing,
		WithOptionalFile[testConfig](),
		WithDefaults[testConfig](map[string]any{"server.addr": ":8000"}),
	)
	require.NoError(t, err)
	assert.Equal(t, ":8000", c.Get().Server.Addr)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "CFGDOT_SERVER_ADDR=:7777\n")
	t.Cleanup(func() { _ = os.Unsetenv("CFGDOT_SERVER_ADDR") })

	c, err := Load[testConfig]("",
		WithOptionalFile[testConfig](),
		WithDotEnv[testConfig](envFile, filepath.Join(dir, "missing.env")),
		WithDefaults[testConfig](map[string]any{"server.addr": ":8000"}),
		WithEnv[testConfig]("CFGDOT"),
	)
	require.NoError(t, err)
	assert.Equal(t, ":7777", c.Get().Server.Addr)
}

func TestGet_ReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "providers:\n  a:\n    endpoint: http://a\n")

	c, err := Load[testConfig](path, WithoutWatch[testConfig]())
	require.NoError(t, err)

	got := c.Get()
	got.Providers["a"] = testProvider{Endpoint: "mutated"}
	assert.Equal(t, "http://a", c.Get().Providers["a"].Endpoint)
}

func TestReload_NotifiesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "server:\n  addr: \":1\"\n")

	c, err := Load[testConfig](path, WithoutWatch[testConfig]())
	require.NoError(t, err)

	var calls int32
	var oldAddr, newAddr string
	c.OnChange(func(old, new testConfig) {
		atomic.AddInt32(&calls, 1)
		oldAddr, newAddr = old.Server.Addr, new.Server.Addr
	})
	c.OnChange(func(_, _ testConfig) { panic("boom") })

	require.NoError(t, c.Reload())
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls), "unchanged file must not notify")

	writeFile(t, dir, "c.yaml", "server:\n  addr: \":2\"\n")
	require.NoError(t, c.Reload())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, ":1", oldAddr)
	assert.Equal(t, ":2", newAddr)
	assert.Equal(t, ":2", c.Get().Server.Addr)
}

func TestReload_InvalidFileKeepsValue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "server:\n  addr: \":1\"\n")

	c, err := Load[testConfig](path, WithoutWatch[testConfig]())
	require.NoError(t, err)

	writeFile(t, dir, "c.yaml", "server: [unclosed\n")
	assert.Error(t, c.Reload())
	assert.Equal(t, ":1", c.Get().Server.Addr)
}

func TestWatch_FileChangeTriggersCallback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.yaml", "server:\n  addr: \":1\"\n")

	c, err := Load[testConfig](path, WithDebounce[testConfig](10*time.Millisecond))
	require.NoError(t, err)

	changed := make(chan string, 1)
	c.OnChange(func(_, new testConfig) {
		select {
		case changed <- new.Server.Addr:
		default:
		}
	})

	writeFile(t, dir, "c.yaml", "server:\n  addr: \":3\"\n")
	select {
	case addr := <-changed:
		assert.Equal(t, ":3", addr)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}

func TestChanged(t *testing.T) {
	assert.False(t, Changed(map[string]int{"a": 1}, map[string]int{"a": 1}))
	assert.True(t, Changed("a", "b"))
}

func TestLoad_EnvAliases(t *testing.T) {
	t.Setenv("LEGACY_OPENAI_KEY", "sk-legacy")

	c, err := Load[testConfig]("",
		WithOptionalFile[testConfig](),
		WithDefaults[testConfig](map[string]any{"providers.gpt4.api_key": ""}),
		WithEnv[testConfig]("CFGALIAS"),
		WithEnvAliases[testConfig](map[string][]string{
			"providers.gpt4.api_key": {"CFGALIAS_PROVIDERS_GPT4_API_KEY", "LEGACY_OPENAI_KEY"},
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "sk-legacy", c.Get().Providers["gpt4"].APIKey)

	t.Setenv("CFGALIAS_PROVIDERS_GPT4_API_KEY", "sk-new")
	require.NoError(t, c.Reload())
	assert.Equal(t, "sk-new", c.Get().Providers["gpt4"].APIKey)
}
