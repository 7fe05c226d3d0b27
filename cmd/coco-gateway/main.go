package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coco-ai/coco-gateway/internal/dotenv"
	"github.com/coco-ai/coco-gateway/pkg/gateway/blob"
	"github.com/coco-ai/coco-gateway/pkg/gateway/chatstore"
	"github.com/coco-ai/coco-gateway/pkg/gateway/config"
	"github.com/coco-ai/coco-gateway/pkg/gateway/docstore"
	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
	"github.com/coco-ai/coco-gateway/pkg/gateway/jobs"
	"github.com/coco-ai/coco-gateway/pkg/gateway/lifecycle"
	"github.com/coco-ai/coco-gateway/pkg/gateway/metrics"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
	"github.com/coco-ai/coco-gateway/pkg/gateway/server"
	"github.com/coco-ai/coco-gateway/pkg/gateway/sessions"
)

// gateway is the assembled process: the HTTP handler plus the pieces the
// shutdown sequence needs.
type gateway struct {
	handler   http.Handler
	lifecycle *lifecycle.Lifecycle
	tracker   *sessions.Tracker
	pipeline  *jobs.Pipeline
	closers   []func()
}

func (g *gateway) close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
}

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	buildGateway func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gateway, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:   config.LoadFromEnv,
		buildGateway: buildGateway,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gateway, error) {
	g := &gateway{
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   sessions.NewTracker(),
	}

	var docs docstore.Store
	if cfg.DatabaseURL != "" {
		if err := docstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate document store: %w", err)
		}
		pg, err := docstore.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect document store: %w", err)
		}
		g.closers = append(g.closers, pg.Close)
		docs = pg
	} else {
		logger.Warn("COCO_DATABASE_URL not set, using in-memory document store")
		docs = docstore.NewMemory()
	}

	chats, err := chatstore.New(chatstore.Dependencies{
		Docs: docs,
		Collections: chatstore.Collections{
			Users:    cfg.UsersCollection,
			Chats:    cfg.ChatsCollection,
			Messages: cfg.MessagesCollection,
			Sessions: cfg.SessionsCollection,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("chat store: %w", err)
	}

	var sessionService runtime.SessionService
	if cfg.SessionBackend == config.SessionBackendVertex {
		sessionService, err = runtime.NewStoreSessionService(docs, "runtime_sessions")
		if err != nil {
			return nil, fmt.Errorf("session service: %w", err)
		}
	} else {
		sessionService = runtime.NewMemorySessionService()
	}

	directory, err := sessions.NewDirectory(chats, sessionService, cfg.AppName, logger)
	if err != nil {
		return nil, fmt.Errorf("session directory: %w", err)
	}

	google, err := runtime.NewGoogleRuntime(ctx, runtime.GoogleConfig{
		Project:          cfg.Project,
		Location:         cfg.Location,
		LiveModel:        cfg.LiveModelID,
		ImageModel:       cfg.ImageModelID,
		ImageGenLocation: cfg.ImageGenLocation,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("google runtime: %w", err)
	}

	gcs, err := blob.NewGCS(ctx, cfg.ArtifactBucket)
	if err != nil {
		return nil, fmt.Errorf("artifact storage: %w", err)
	}
	g.closers = append(g.closers, func() { _ = gcs.Close() })

	publisher, err := blob.NewPublisher(gcs, logger)
	if err != nil {
		return nil, fmt.Errorf("artifact publisher: %w", err)
	}

	jobStore, err := jobs.NewStore(docs, cfg.JobsCollection)
	if err != nil {
		return nil, fmt.Errorf("job store: %w", err)
	}

	m := metrics.New("coco")
	g.pipeline, err = jobs.NewPipeline(jobs.Dependencies{
		Store:     jobStore,
		Generator: google,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("image pipeline: %w", err)
	}

	verifier, err := identity.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w", err)
	}

	srv, err := server.New(server.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Verifier:  verifier,
		Chats:     chats,
		Directory: directory,
		Runner:    google,
		Images:    g.pipeline,
		Tracker:   g.tracker,
		Lifecycle: g.lifecycle,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	g.handler = srv.Handler()
	return g, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.buildGateway == nil {
		return errors.New("missing buildGateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	g, err := deps.buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer g.close()

	httpSrv := buildHTTPServer(cfg, g.handler)

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"session_backend", cfg.SessionBackend,
		"live_model", cfg.LiveModelID,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	// Drain: stop accepting sessions, warn the established ones, then give
	// them the grace period before forcing the rest closed.
	g.lifecycle.SetDraining(true)
	warned := g.tracker.WarnAll("gateway is shutting down")
	logger.Info("draining live sessions", "active", g.tracker.Count(), "warned", warned)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !g.tracker.Wait(waitCtx) {
		logger.Warn("grace period expired, cancelling live sessions", "remaining", g.tracker.Count())
		g.tracker.CancelAll()
	}

	if g.pipeline != nil {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer drainCancel()
		if err := g.pipeline.Drain(drainCtx); err != nil {
			logger.Warn("image jobs still in flight at shutdown", "error", err)
		}
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "coco-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "coco-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
