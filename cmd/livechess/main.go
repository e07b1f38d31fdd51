package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/devharu/livechess/internal/archive"
	appcfg "github.com/devharu/livechess/internal/config"
	"github.com/devharu/livechess/internal/gateway"
	"github.com/devharu/livechess/internal/msgcat"
	"github.com/devharu/livechess/internal/obslog"
	"github.com/devharu/livechess/internal/play"
	"github.com/devharu/livechess/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	store, err := session.NewStoreFromURL(cfg.RedisURL, time.Duration(cfg.SessionTTLSec)*time.Second)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}
	defer func() { _ = store.Close() }()

	manager := session.NewManager(store)
	coord := play.NewCoordinator(store)

	// PGN archive is optional; sessions work without a database.
	if cfg.DatabaseURL != "" {
		repo, rerr := archive.NewRepository(cfg.DatabaseURL)
		if rerr != nil {
			log.Fatalf("archive init error: %v", rerr)
		}
		defer func() { _ = repo.Close() }()
		coord.AttachArchive(repo)
	}

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	srv := gateway.NewServer(manager, coord, cat)
	httpSrv := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     srv.Router(),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if serveErr := httpSrv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(serveErr))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
