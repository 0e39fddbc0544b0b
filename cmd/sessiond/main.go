// Package main provides the sessiond daemon entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/talentscout/sessiond/internal/config"
	"github.com/talentscout/sessiond/internal/db/postgres"
	"github.com/talentscout/sessiond/internal/db/sqlite"
	"github.com/talentscout/sessiond/internal/observer"
	"github.com/talentscout/sessiond/internal/storage"
	"github.com/talentscout/sessiond/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	port := flag.Int("port", 0, "Observer API port (default: from settings)")
	dbPath := flag.String("db", "", "Local records database path (default: ~/.sessiond/records.db)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sessiond", Version)
		return
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	// A .env next to the binary can carry SESSIOND_* overrides.
	_ = godotenv.Load()

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load settings, using defaults")
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.ObserverPort = *port
	}

	localPath := config.DBPath()
	if *dbPath != "" {
		localPath = *dbPath
	}

	localStore, err := sqlite.NewStore(sqlite.Config{
		Path:     localPath,
		MaxConns: cfg.MaxConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local records database")
	}
	defer localStore.Close()

	var remote storage.RecordStore
	if cfg.RemoteDSN != "" {
		remoteStore, err := postgres.NewStore(postgres.Config{
			DSN:      cfg.RemoteDSN,
			LogLevel: logger.Silent,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Remote database unreachable, running local-only")
		} else {
			defer remoteStore.Close()
			remote = postgres.NewRecordStore(remoteStore)
		}
	}

	records := storage.NewHybrid(sqlite.NewRecordStore(localStore), remote)

	guard, err := watcher.NewGuard(localPath, func() {
		if err := localStore.Reopen(); err != nil {
			log.Error().Err(err).Msg("Failed to recreate local records database")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create records guard")
	}
	if err := guard.Start(); err != nil {
		log.Warn().Err(err).Msg("Records guard not running")
	}
	defer guard.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	svc := observer.NewService(Version, records, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(ctx, fmt.Sprintf(":%d", cfg.ObserverPort))
	})

	log.Info().
		Str("version", Version).
		Str("backend", cfg.BackendURL).
		Bool("remote", remote != nil).
		Msg("sessiond started")

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Daemon exited with error")
	}
}
