package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/coco-ai/coco-gateway/pkg/gateway/config"
	"github.com/coco-ai/coco-gateway/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		SessionBackend string   `json:"session_backend"`
		Store          string   `json:"store"`
		Draining       bool     `json:"draining,omitempty"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Lifecycle.IsDraining() {
		issues = append(issues, "gateway is draining")
	}

	switch h.Config.SessionBackend {
	case config.SessionBackendVertex, config.SessionBackendMemory:
	default:
		issues = append(issues, "invalid session backend")
	}
	if h.Config.JWTSecret == "" {
		issues = append(issues, "jwt secret not configured")
	}
	if h.Config.SessionBackend == config.SessionBackendVertex && h.Config.Project == "" {
		issues = append(issues, "google cloud project not configured")
	}
	if h.Config.ArtifactBucket == "" {
		issues = append(issues, "artifact bucket not configured")
	}
	if h.Config.WSMaxMessageBytes <= 0 {
		issues = append(issues, "ws max message bytes must be > 0")
	}
	if h.Config.WSPingInterval <= 0 || h.Config.WSWriteTimeout <= 0 {
		issues = append(issues, "ws timeouts must be > 0")
	}
	if h.Config.RelayDrainTimeout <= 0 {
		issues = append(issues, "relay drain timeout must be > 0")
	}

	store := "postgres"
	if h.Config.DatabaseURL == "" {
		store = "memory"
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		SessionBackend: string(h.Config.SessionBackend),
		Store:          store,
		Draining:       h.Lifecycle.IsDraining(),
		Issues:         issues,
	})
}
