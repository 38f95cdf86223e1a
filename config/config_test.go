package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/quant/logging"
)

const sampleTOML = `
version = "1.2.0"

[log]
service = "pricer"
level = "debug"

[cache]
enabled = false
life_window = "30s"

[pricing]
default_steps = 200
default_simulations = 5000
round_digits = 6
workers = 4
seed = 42
batch_concurrency = 2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricer.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), m.Get())
}

func TestLoad_File(t *testing.T) {
	m, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "pricer", cfg.Log.Service)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.LifeWindow)
	assert.Equal(t, 64, cfg.Cache.Shards, "unset keys keep defaults")
	assert.Equal(t, PricingConfig{
		DefaultSteps:       200,
		DefaultSimulations: 5000,
		RoundDigits:        6,
		Workers:            4,
		Seed:               42,
		BatchConcurrency:   2,
	}, cfg.Pricing)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_PRICING_DEFAULT_STEPS", "250")
	t.Setenv("APP_LOG_LEVEL", "warn")

	m, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, 250, m.Get().Pricing.DefaultSteps)
	assert.Equal(t, "warn", m.Get().Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[pricing]\ndefault_steps = 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DefaultSteps")

	_, err = Load(writeConfig(t, "[pricing]\ndefault_steps = 3000000000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DefaultSteps")

	_, err = Load(writeConfig(t, "[log]\nlevel = \"loud\"\n"))
	assert.Error(t, err)
}

func TestManager_Reload(t *testing.T) {
	path := writeConfig(t, sampleTOML)
	m, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() { logging.SetLevel("info") })

	var got *Config
	m.RegisterReloadHook(func(c *Config) { got = c })
	m.RegisterReloadHook(nil)

	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"error\"\n[pricing]\ndefault_steps = 64\n"), 0o600))
	require.NoError(t, m.reload())

	require.NotNil(t, got)
	assert.Equal(t, 64, got.Pricing.DefaultSteps)
	assert.Same(t, got, m.Get())
	assert.Equal(t, logging.ParseLevel("error"), logging.Level())

	// 校验失败时保留旧配置.
	require.NoError(t, os.WriteFile(path, []byte("[pricing]\nworkers = 0\n"), 0o600))
	assert.Error(t, m.reload())
	assert.Equal(t, 64, m.Get().Pricing.DefaultSteps)
}

func TestManager_Watch(t *testing.T) {
	path := writeConfig(t, sampleTOML)
	m, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() { logging.SetLevel("info") })

	reloaded := make(chan *Config, 4)
	m.RegisterReloadHook(func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	m.Watch()

	require.NoError(t, os.WriteFile(path, []byte("[pricing]\ndefault_steps = 77\n"), 0o600))

	select {
	case c := <-reloaded:
		assert.Equal(t, 77, c.Pricing.DefaultSteps)
	case <-time.After(10 * time.Second):
		t.Fatal("config change was not picked up")
	}
	assert.Equal(t, 77, m.Get().Pricing.DefaultSteps)
}

func TestPrintWithMask(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintWithMask(&buf, Default()))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	pricing := out["pricing"].(map[string]any)
	assert.Equal(t, 500.0, pricing["default_steps"])
	assert.Equal(t, "quant", out["log"].(map[string]any)["service"])

	buf.Reset()
	require.NoError(t, PrintWithMask(&buf, map[string]any{"sink": map[string]any{"api_token": "t0p", "url": "file:///tmp"}}))
	assert.Contains(t, buf.String(), `"api_token": "******"`)
	assert.Contains(t, buf.String(), `"url": "file:///tmp"`)

	assert.Error(t, PrintWithMask(&buf, func() {}))
}

func TestLogConfig_Logging(t *testing.T) {
	lc := LogConfig{Service: "quant", Level: "warn", File: "/tmp/q.log", Console: true, MaxSize: 5}
	assert.Equal(t, logging.Config{
		Service: "quant",
		Module:  "engine",
		Level:   "warn",
		File:    "/tmp/q.log",
		Console: true,
		MaxSize: 5,
	}, lc.Logging("engine"))
}

func TestMask(t *testing.T) {
	m := map[string]any{
		"log": map[string]any{"auth_token": "abc", "level": "info"},
		"sinks": []any{
			map[string]any{"password": "p", "name": "n"},
		},
		"api_key": "k",
	}
	mask(m)
	assert.Equal(t, "******", m["api_key"])
	assert.Equal(t, "******", m["log"].(map[string]any)["auth_token"])
	assert.Equal(t, "info", m["log"].(map[string]any)["level"])
	assert.Equal(t, "******", m["sinks"].([]any)[0].(map[string]any)["password"])
	assert.Equal(t, "n", m["sinks"].([]any)[0].(map[string]any)["name"])
}
