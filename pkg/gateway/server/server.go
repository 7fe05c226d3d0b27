// Package server assembles the gateway's HTTP surface: routes plus the
// middleware chain.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coco-ai/coco-gateway/pkg/gateway/config"
	"github.com/coco-ai/coco-gateway/pkg/gateway/handlers"
	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
	"github.com/coco-ai/coco-gateway/pkg/gateway/lifecycle"
	"github.com/coco-ai/coco-gateway/pkg/gateway/metrics"
	"github.com/coco-ai/coco-gateway/pkg/gateway/mw"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
	"github.com/coco-ai/coco-gateway/pkg/gateway/sessions"
	"github.com/coco-ai/coco-gateway/pkg/gateway/tools"
)

// Dependencies carries the wired components the routes need.
type Dependencies struct {
	Config    config.Config
	Logger    *slog.Logger
	Verifier  identity.Verifier
	Chats     handlers.ChatGate
	Directory *sessions.Directory
	Runner    runtime.Runner
	Images    tools.ImageSubmitter
	Tracker   *sessions.Tracker
	Lifecycle *lifecycle.Lifecycle
	Metrics   *metrics.Metrics
}

type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	mux     *http.ServeMux
	metrics *metrics.Metrics
}

func New(deps Dependencies) (*Server, error) {
	if deps.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if deps.Chats == nil {
		return nil, fmt.Errorf("chat store is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("session directory is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if deps.Images == nil {
		return nil, fmt.Errorf("image submitter is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		mux:     http.NewServeMux(),
		metrics: deps.Metrics,
	}

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: deps.Config, Lifecycle: deps.Lifecycle})
	if deps.Metrics != nil {
		s.mux.Handle("/metrics", deps.Metrics.Handler())
	}
	s.mux.Handle("/ws", handlers.WSHandler{
		Config:    deps.Config,
		Logger:    deps.Logger,
		Verifier:  deps.Verifier,
		Chats:     deps.Chats,
		Directory: deps.Directory,
		Runner:    deps.Runner,
		Images:    deps.Images,
		Tracker:   deps.Tracker,
		Lifecycle: deps.Lifecycle,
		Metrics:   deps.Metrics,
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})

	return s, nil
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
