package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/oMygpt/readitdeep/internal/config"
	"github.com/oMygpt/readitdeep/internal/convert"
	"github.com/oMygpt/readitdeep/internal/httpapi"
	"github.com/oMygpt/readitdeep/internal/llm"
	"github.com/oMygpt/readitdeep/internal/pipeline"
	"github.com/oMygpt/readitdeep/internal/progress"
	"github.com/oMygpt/readitdeep/internal/quota"
	"github.com/oMygpt/readitdeep/internal/store"
	"github.com/oMygpt/readitdeep/internal/translate"
	"github.com/oMygpt/readitdeep/pkg/icron"
	"github.com/oMygpt/readitdeep/pkg/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	if cfg.Server.LogFile != "" {
		fileLogger, err := log.NewFileLogger(cfg.Server.LogFile, log.LevelInfo)
		if err != nil {
			log.Fatal("Failed to open log file: %v", err)
		}
		defer fileLogger.Close()
		log.SetGlobal(fileLogger.Logger)
	}

	// Transient store: authoritative while jobs run.
	var transient store.Transient
	if cfg.Store.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to Redis at %s: %v", cfg.Store.RedisAddr, err)
		}
		transient = store.NewRedisStore(rdb)
		log.Info("Using Redis transient store at %s", cfg.Store.RedisAddr)
	} else {
		transient = store.NewMemoryStore()
	}

	// Durable store: write-behind mirror plus restart recovery.
	var durable store.Durable
	if cfg.Store.DatabaseURL != "" {
		durable, err = store.NewPostgresStore(context.Background(), cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to open Postgres store: %v", err)
		}
		log.Info("Using Postgres durable store")
	} else {
		durable, err = store.NewSQLiteStore(cfg.Store.SQLitePath())
		if err != nil {
			log.Fatal("Failed to open SQLite store: %v", err)
		}
		log.Info("Using SQLite durable store at %s", cfg.Store.SQLitePath())
	}
	defer durable.Close()

	dual := store.NewDual(transient, durable)

	next, err := icron.NextRun(cfg.Store.SyncCron, time.Now())
	if err != nil {
		log.Fatal("Invalid STORE_SYNC_CRON: %v", err)
	}
	log.Info("Durable resync scheduled (%s), first run at %s", cfg.Store.SyncCron, next.Format(time.RFC3339))

	c := cron.New()
	if _, err := c.AddFunc(cfg.Store.SyncCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := dual.Sync(ctx); err != nil {
			log.Error("Durable resync failed: %v", err)
		}
	}); err != nil {
		log.Fatal("Failed to schedule durable resync: %v", err)
	}
	c.Start()
	defer c.Stop()

	converter, err := convert.NewClient(cfg.Convert.APIURL, cfg.Convert.APIKey)
	if err != nil {
		log.Fatal("Failed to create conversion client: %v", err)
	}

	completer, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create LLM client: %v", err)
	}

	var embedder llm.Embedder
	if cfg.Embedding.APIURL != "" {
		embedder, err = llm.NewEmbeddingClient(cfg.Embedding.APIURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
		if err != nil {
			log.Fatal("Failed to create embedding client: %v", err)
		}
	}

	var notifier quota.Notifier = quota.NopNotifier{}
	if cfg.Quota.APIURL != "" {
		notifier = quota.NewHTTPNotifier(cfg.Quota.APIURL)
	}

	orchestrator := pipeline.NewOrchestrator(
		dual, converter, completer, embedder, notifier,
		cfg.Store.DataDir, cfg.Convert.PollInterval, cfg.Convert.MaxWait,
	)
	translator := translate.NewTranslator(dual, completer, cfg.Translate.MaxChunkChars)
	publisher := progress.NewPublisher(dual, cfg.Stream.PollInterval, cfg.Stream.MaxWait)

	server := httpapi.NewServer(
		orchestrator, translator, publisher, dual, cfg.Store.DataDir,
		httpapi.WithDefaultLanguage(cfg.Translate.TargetLanguage),
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.ListenAddr)
		errCh <- server.ListenAndServe(cfg.Server.ListenAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error: %v", err)
		}
	case sig := <-stop:
		log.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown: %v", err)
	}

	// Let detached runs and mirror writes drain before closing the stores.
	orchestrator.Wait()
	translator.Wait()
	dual.Wait()
	if err := dual.Sync(shutdownCtx); err != nil {
		log.Error("Final resync failed: %v", err)
	}
}
