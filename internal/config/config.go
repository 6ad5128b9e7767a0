package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults; a .env file
// is loaded by cmd/main.go before this package reads the environment.
//
// Environment Variables:
//
// Conversion service:
// - CONVERT_API_KEY: API key for the document conversion service (required)
// - CONVERT_API_URL: conversion API base URL
// - CONVERT_POLL_INTERVAL: poll interval while waiting for conversion (default: 5s)
// - CONVERT_MAX_WAIT: maximum wait for a conversion batch (default: 10m)
//
// LLM provider:
// - LLM_API_KEY: API key for the completion provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: model name (default: openai/gpt-3.5-turbo)
// - LLM_MAX_TOKENS, LLM_TEMPERATURE, LLM_TIMEOUT
//
// Embedding provider:
// - EMBEDDING_API_URL, EMBEDDING_API_KEY, EMBEDDING_MODEL
//
// Stores:
// - DATA_DIR: root for uploaded files, re-hosted assets and the SQLite db (default: ./data)
// - DATABASE_URL: Postgres DSN; when set the durable store uses Postgres instead of SQLite
// - REDIS_ADDR: Redis address; when set the transient store uses Redis instead of process memory
// - STORE_SYNC_CRON: cron expression for the durable resync sweep (default: @every 1m)
//
// Server:
// - LISTEN_ADDR: HTTP listen address (default: :8080)
// - LOG_FILE: optional log file path; stdout when empty
//
// Translation:
// - TRANSLATE_TARGET_LANGUAGE: BCP 47 tag (default: zh)
// - TRANSLATE_MAX_CHUNK_CHARS: chunk size bound (default: 3000)
//
// Progress streaming:
// - STREAM_POLL_INTERVAL: status poll interval (default: 1s)
// - STREAM_MAX_WAIT: stream timeout with no terminal status (default: 5m)
//
// Quota:
// - QUOTA_API_URL: completion-notification endpoint; disabled when empty
type Config struct {
	Convert   ConvertConfig   `json:"convert"`
	LLM       LLMConfig       `json:"llm"`
	Embedding EmbeddingConfig `json:"embedding"`
	Store     StoreConfig     `json:"store"`
	Server    ServerConfig    `json:"server"`
	Translate TranslateConfig `json:"translate"`
	Stream    StreamConfig    `json:"stream"`
	Quota     QuotaConfig     `json:"quota"`
}

// ConvertConfig holds the configuration for the external conversion service.
type ConvertConfig struct {
	APIKey       string        `json:"api_key"`
	APIURL       string        `json:"api_url"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxWait      time.Duration `json:"max_wait"`
}

// LLMConfig holds the configuration for the completion provider.
// Supports any OpenAI-compatible provider (OpenRouter, OpenAI, etc.).
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// EmbeddingConfig holds the configuration for the embedding provider.
type EmbeddingConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url"`
	Model  string `json:"model"`
}

// StoreConfig selects the transient and durable store backends.
type StoreConfig struct {
	DataDir     string `json:"data_dir"`
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr"`
	SyncCron    string `json:"sync_cron"`
}

// SQLitePath returns the default durable store location under DataDir.
func (c StoreConfig) SQLitePath() string {
	return c.DataDir + "/readitdeep.db"
}

type ServerConfig struct {
	ListenAddr string `json:"listen_addr"`
	LogFile    string `json:"log_file"`
}

type TranslateConfig struct {
	TargetLanguage language.Tag `json:"target_language"`
	MaxChunkChars  int          `json:"max_chunk_chars"`
}

type StreamConfig struct {
	PollInterval time.Duration `json:"poll_interval"`
	MaxWait      time.Duration `json:"max_wait"`
}

type QuotaConfig struct {
	APIURL string `json:"api_url"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Convert: ConvertConfig{
			APIKey:       getEnvString("CONVERT_API_KEY", ""),
			APIURL:       getEnvString("CONVERT_API_URL", "https://mineru.net/api/v4"),
			PollInterval: getEnvDuration("CONVERT_POLL_INTERVAL", 5*time.Second),
			MaxWait:      getEnvDuration("CONVERT_MAX_WAIT", 10*time.Minute),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 60),
		},
		Embedding: EmbeddingConfig{
			APIKey: getEnvString("EMBEDDING_API_KEY", ""),
			APIURL: getEnvString("EMBEDDING_API_URL", ""),
			Model:  getEnvString("EMBEDDING_MODEL", ""),
		},
		Store: StoreConfig{
			DataDir:     getEnvString("DATA_DIR", "./data"),
			DatabaseURL: getEnvString("DATABASE_URL", ""),
			RedisAddr:   getEnvString("REDIS_ADDR", ""),
			SyncCron:    getEnvString("STORE_SYNC_CRON", "@every 1m"),
		},
		Server: ServerConfig{
			ListenAddr: getEnvString("LISTEN_ADDR", ":8080"),
			LogFile:    getEnvString("LOG_FILE", ""),
		},
		Translate: TranslateConfig{
			TargetLanguage: parseLanguage(getEnvString("TRANSLATE_TARGET_LANGUAGE", "zh")),
			MaxChunkChars:  getEnvInt("TRANSLATE_MAX_CHUNK_CHARS", 3000),
		},
		Stream: StreamConfig{
			PollInterval: getEnvDuration("STREAM_POLL_INTERVAL", time.Second),
			MaxWait:      getEnvDuration("STREAM_MAX_WAIT", 5*time.Minute),
		},
		Quota: QuotaConfig{
			APIURL: getEnvString("QUOTA_API_URL", ""),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Convert.APIKey == "" {
		return fmt.Errorf("CONVERT_API_KEY is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	return nil
}

func parseLanguage(raw string) language.Tag {
	tag, err := language.Parse(raw)
	if err != nil {
		return language.Chinese
	}
	return tag
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment variables with default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
