package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/someip/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "someip.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
someip:
  log:
    level: debug
  pipeline:
    workers: 8
  flow:
    ttl: 30s
  classifier:
    udp_ports: [30490, 40000]
  reporters:
    - name: console
      config:
        format: json
    - name: kafka
      config:
        brokers: ["localhost:9092"]
        topic: someip-verdicts
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 1024, cfg.Pipeline.BufferSize)
	assert.Equal(t, 30*time.Second, cfg.Flow.TTL)
	assert.Equal(t, time.Minute, cfg.Flow.CleanupInterval)
	assert.Equal(t, []int{30490, 40000}, cfg.Classifier.UDPPorts)
	assert.Empty(t, cfg.Classifier.TCPPorts)
	require.Len(t, cfg.Reporters, 2)
	assert.Equal(t, "console", cfg.Reporters[0].Name)
	assert.Equal(t, "json", cfg.Reporters[0].Config["format"])
	assert.Equal(t, "someip-verdicts", cfg.Reporters[1].Config["topic"])
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.File.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9091", cfg.Metrics.Listen)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Flow.TTL)
	assert.True(t, cfg.Source.Prefilter)
	assert.Equal(t, LiveConfig{SnapLen: 65535, BufferSizeMB: 16, TimeoutMs: 100}, cfg.Source.Live)
	assert.Empty(t, cfg.Reporters)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SOMEIP_LOG_LEVEL", "warn")
	t.Setenv("SOMEIP_PIPELINE_WORKERS", "2")

	cfg, err := Load(writeConfig(t, "someip:\n  log:\n    level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"level", "log:\n    level: loud", "log.level"},
		{"workers", "pipeline:\n    workers: 0", "pipeline.workers"},
		{"buffer", "pipeline:\n    buffer_size: -1", "pipeline.buffer_size"},
		{"ttl", "flow:\n    ttl: 0s", "flow.ttl"},
		{"port", "classifier:\n    tcp_ports: [70000]", "port 70000"},
		{"live", "source:\n    live:\n      timeout_ms: 0", "source.live"},
		{"reporter", "reporters:\n    - config: {}", "reporters[0].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "someip:\n  "+tt.yaml+"\n"))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestYAML(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "someip:\n"))
	assert.Contains(t, string(out), "ttl: 5m0s")

	var back map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Contains(t, back["someip"], "pipeline")
}

func TestClassifierParserConfig(t *testing.T) {
	c := ClassifierConfig{UDPPorts: []int{1}, TCPPorts: []int{2}}
	assert.Equal(t, map[string]any{"udp_ports": []int{1}, "tcp_ports": []int{2}}, c.ParserConfig())
}
