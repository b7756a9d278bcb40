package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Syn1ak/notes-api-autotest/internal/config"
	"github.com/Syn1ak/notes-api-autotest/internal/database"
	"github.com/Syn1ak/notes-api-autotest/internal/logger"
	"github.com/Syn1ak/notes-api-autotest/internal/server"
	"github.com/Syn1ak/notes-api-autotest/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

type repository interface {
	store.Repository
	io.Closer
}

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		hclog.Default().Error("invalid configuration, the server hasn't been started", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log hclog.Logger) error {
	repo, err := openRepository(ctx, cfg, log.Named("database"))
	if err != nil {
		return err
	}
	defer repo.Close()

	notes := store.NewNoteStore(repo, log.Named("store"))
	return server.CreateAndStartServer(ctx, cfg, notes, log)
}

func openRepository(ctx context.Context, cfg *config.Config, log hclog.Logger) (repository, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, notes are lost on restart")
		return database.NewMemory(), nil
	case config.StoragePostgres:
		db, err := database.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}
