package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("HEYGEN_API_KEY", "heygen-key")
	t.Setenv("VIZARD_API_KEY", "vizard-key")
	t.Setenv("CREATOMATE_API_KEY", "creatomate-key")
	t.Setenv("FALLBACK_BANNER_URL", "https://cdn.example.com/fallback.png")
	t.Setenv("LOGO_URL", "https://cdn.example.com/logo.png")
}

func TestNewFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "./output", cfg.Pipeline.AssetCacheDir)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.StageTimeout)
	assert.Equal(t, "openai/gpt-3.5-turbo", cfg.LLM.Model)
	assert.Empty(t, cfg.Scheduler.CronExpr)
}

func TestNewFromEnv_MissingRequiredKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HEYGEN_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEYGEN_API_KEY")
}

func TestNewFromEnv_SchedulerAppIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTOMATION_CRON", "0 0 9 * * *")
	t.Setenv("AUTOMATION_APP_IDS", " 1245620, 1962700 ,")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0 0 9 * * *", cfg.Scheduler.CronExpr)
	assert.Equal(t, []string{"1245620", "1962700"}, cfg.Scheduler.AppIDs)
}

func TestNewFromEnv_Options(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewFromEnv(func(c *Config) {
		c.Server.Addr = ":0"
	})
	require.NoError(t, err)
	assert.Equal(t, ":0", cfg.Server.Addr)
}
