package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/soloagency/internal/config"
	"github.com/ShayCichocki/soloagency/internal/orchestrator"
)

func TestPipelineConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.Policy = "partial"
	cfg.Synthesis.Structured = true

	pc := pipelineConfig(cfg)
	require.NoError(t, pc.Validate())
	assert.Equal(t, cfg.Defaults.Specialist, pc.DefaultSpecialist)
	assert.Equal(t, orchestrator.PolicyPartial, pc.Dispatch.Policy)
	assert.Equal(t, cfg.Dispatch.Concurrency, pc.Dispatch.Concurrency)
	assert.Equal(t, cfg.Classifier.MaxTokens, pc.Classifier.MaxTokens)
	assert.True(t, pc.Synthesis.Structured)
	assert.Equal(t, cfg.Shaping.WordBudget, pc.WordBudget)
	assert.Equal(t, cfg.Timeouts.Completion, pc.Timeout)
}

func TestCreateCompleterMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := config.Default()
	_, err := createCompleter(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrNoAPIKey)

	cfg.Provider.Name = "gemini"
	_, err = createCompleter(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrNoAPIKey)
}

func TestSetConfigKeyKeepsEnvSecretsOffDisk(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-REDACTED")
	path := filepath.Join(t.TempDir(), "config.yaml")

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	require.NoError(t, setConfigKey("dispatch.concurrency", "2"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-ant-")

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Dispatch.Concurrency)

	assert.Error(t, setConfigKey("dispatch.concurrency", "0"))
	assert.Error(t, setConfigKey("no.such.key", "1"))
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{72 * time.Hour, "3d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAge(tt.d), tt.d.String())
	}
}
