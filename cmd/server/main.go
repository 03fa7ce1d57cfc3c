package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "signdesk/internal/adapters/http"
	"signdesk/internal/adapters/memory"
	pg "signdesk/internal/adapters/postgres"
	"signdesk/internal/adapters/s3store"
	"signdesk/internal/config"
	"signdesk/internal/ports"
	"signdesk/internal/render"
	"signdesk/internal/services/documents"
	"signdesk/internal/workers/bakerunner"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire repositories to services (ports)
	var (
		repo  ports.DocumentRepository
		jobs  ports.JobRepository
		ready func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL, int32(cfg.BakeWorkers+8))
		if err != nil {
			log.Error("db connect error", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if cfg.Migrate {
			if err := db.Migrate(ctx); err != nil {
				log.Error("migration failed", "error", err)
				os.Exit(1)
			}
			log.Info("migrations applied")
		}
		repo, jobs, ready = db, db, db.Ping
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		store := memory.New()
		repo, jobs = store, store
	}

	var artifacts ports.ArtifactStore
	if cfg.ArtifactBucket != "" {
		artifacts, err = s3store.New(ctx, s3store.Options{
			Bucket:    cfg.ArtifactBucket,
			Region:    cfg.ArtifactRegion,
			Endpoint:  cfg.ArtifactEndpoint,
			AccessKey: cfg.ArtifactAccessKey,
			SecretKey: cfg.ArtifactSecretKey,
		})
		if err != nil {
			log.Error("artifact store error", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("ARTIFACT_BUCKET not set, keeping artifacts in memory")
		artifacts = memory.NewArtifacts()
	}

	fonts, err := render.LoadFonts()
	if err != nil {
		log.Error("font load error", "error", err)
		os.Exit(1)
	}
	baker := render.NewBaker(fonts, float64(cfg.RenderDPI), 0, log)
	docs := documents.New(repo, artifacts, baker, documents.Options{
		Log:         log,
		SaveRetries: cfg.SaveRetries,
		ArtifactTTL: cfg.ArtifactURLTTL,
	})

	// Optional background bake workers
	var workers sync.WaitGroup
	if cfg.BakeWorkers > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			bakerunner.Run(ctx, jobs, docs, bakerunner.Options{
				Concurrency:  cfg.BakeWorkers,
				PollInterval: cfg.BakePollInterval,
				MaxRetries:   2,
				Retryable:    documents.Transient,
				Log:          log,
			})
		}()
		log.Info("bake workers started", "workers", cfg.BakeWorkers)
	}

	srv := httpadapter.New(docs, jobs, httpadapter.Options{
		Log:            log,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ready:          ready,
	})
	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Error("listen error", "addr", cfg.ListenAddr, "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(ln) }()
	log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	cancel()
	workers.Wait()
}
