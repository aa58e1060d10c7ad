// Package main provides the txt2sql HTTP server entry point.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/internal/api"
	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/classify"
	"github.com/saudata/txt2sql/internal/compose"
	"github.com/saudata/txt2sql/internal/config"
	"github.com/saudata/txt2sql/internal/executor"
	"github.com/saudata/txt2sql/internal/history"
	"github.com/saudata/txt2sql/internal/llm"
	"github.com/saudata/txt2sql/internal/pipeline"
	"github.com/saudata/txt2sql/internal/selector"
	"github.com/saudata/txt2sql/internal/session"
	"github.com/saudata/txt2sql/internal/sqlgen"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config/txt2sql.yaml", "Path to YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is optional; environment overrides are read by config.Load.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Database.DSN == "" {
		log.Fatal().Msg("database.dsn (or TXT2SQL_DATABASE_DSN) is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatal().Err(err).Msg("Database unreachable")
	}
	pingCancel()

	holder, err := loadCatalog(ctx, db, cfg.DescriptionsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load schema catalog")
	}

	// Reload curated descriptions when the YAML file changes; the schema
	// itself is re-read from the database on the same event.
	watcher, err := catalog.NewWatcher(cfg.DescriptionsPath, func() {
		if h, err := loadCatalog(ctx, db, cfg.DescriptionsPath); err != nil {
			log.Warn().Err(err).Msg("Catalog reload failed, keeping previous snapshot")
		} else {
			holder.Swap(h.Current())
			log.Info().Msg("Catalog reloaded")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Description watcher unavailable")
	} else if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start description watcher")
	} else {
		defer watcher.Stop()
	}

	sessions := session.NewStore(cfg.Session.TTL, cfg.Session.MaxTurns)
	defer sessions.Stop()

	llmClient := llm.NewOllamaClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout)
	exec := executor.New(db, cfg.Database.QueryTimeout, cfg.Database.RowLimit)

	var recorder pipeline.TurnRecorder
	if cfg.History.Path != "" {
		archive, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.History.Path).Msg("Turn archive unavailable")
		} else {
			defer archive.Close()
			recorder = archive
		}
	}

	orch := pipeline.New(pipeline.Config{
		Classifier:    classify.New(llmClient, cfg.Pipeline.HistoryWindow),
		Selector:      selector.New(cfg.Pipeline.TopKTables, cfg.Pipeline.MinTableScore),
		Generator:     sqlgen.New(llmClient, cfg.Pipeline.HistoryWindow, cfg.Pipeline.PromptBudget),
		Executor:      exec,
		Composer:      compose.New(llmClient, cfg.Pipeline.HistoryWindow),
		Sessions:      sessions,
		Catalogs:      holder,
		Recorder:      recorder,
		MaxAttempts:   cfg.Pipeline.MaxAttempts,
		HistoryWindow: cfg.Pipeline.HistoryWindow,
	})

	svc := api.NewService(orch, sessions, holder, dbPinger{db}, llmClient)

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Server.ListenAddr).
			Str("version", Version).
			Int("tables", holder.Current().Len()).
			Msg("Starting txt2sql server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-sigCh
	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// loadCatalog reads schema metadata from the database, merges curated
// descriptions, and wraps the snapshot in a holder.
func loadCatalog(ctx context.Context, db *sql.DB, descriptionsPath string) (*catalog.Holder, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tables, err := catalog.LoadPostgres(loadCtx, db)
	if err != nil {
		return nil, err
	}
	docs, err := catalog.LoadDescriptions(descriptionsPath)
	if err != nil {
		log.Warn().Err(err).Str("path", descriptionsPath).Msg("Failed to load table descriptions")
	}
	tables = catalog.ApplyDescriptions(tables, docs)
	return catalog.NewHolder(catalog.New(tables)), nil
}

// dbPinger adapts *sql.DB to the api.Pinger interface.
type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
