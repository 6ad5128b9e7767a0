package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONVERT_API_KEY", "convert-key")
	t.Setenv("LLM_API_KEY", "llm-key")
}

func TestNewFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Convert.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.Convert.MaxWait)
	assert.Equal(t, "openai/gpt-3.5-turbo", cfg.LLM.Model)
	assert.Equal(t, "./data", cfg.Store.DataDir)
	assert.Equal(t, "@every 1m", cfg.Store.SyncCron)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, language.Chinese, cfg.Translate.TargetLanguage)
	assert.Equal(t, 3000, cfg.Translate.MaxChunkChars)
	assert.Equal(t, time.Second, cfg.Stream.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Stream.MaxWait)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONVERT_POLL_INTERVAL", "2s")
	t.Setenv("TRANSLATE_TARGET_LANGUAGE", "fr")
	t.Setenv("TRANSLATE_MAX_CHUNK_CHARS", "1500")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Convert.PollInterval)
	assert.Equal(t, language.French, cfg.Translate.TargetLanguage)
	assert.Equal(t, 1500, cfg.Translate.MaxChunkChars)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
}

func TestNewFromEnv_InvalidLanguageFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRANSLATE_TARGET_LANGUAGE", "not-a-language-tag!!")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, language.Chinese, cfg.Translate.TargetLanguage)
}

func TestNewFromEnv_RequiresConvertKey(t *testing.T) {
	t.Setenv("CONVERT_API_KEY", "")
	t.Setenv("LLM_API_KEY", "llm-key")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONVERT_API_KEY")
}

func TestNewFromEnv_RequiresLLMKey(t *testing.T) {
	t.Setenv("CONVERT_API_KEY", "convert-key")
	t.Setenv("LLM_API_KEY", "")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")
}

func TestStoreConfig_SQLitePath(t *testing.T) {
	cfg := StoreConfig{DataDir: "/var/lib/readitdeep"}
	assert.Equal(t, "/var/lib/readitdeep/readitdeep.db", cfg.SQLitePath())
}
