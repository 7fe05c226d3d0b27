// Package handlers holds the HTTP surface of the gateway: the live
// WebSocket endpoint plus health, readiness, and fallback handlers.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coco-ai/coco-gateway/pkg/gateway/config"
	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
	"github.com/coco-ai/coco-gateway/pkg/gateway/lifecycle"
	"github.com/coco-ai/coco-gateway/pkg/gateway/metrics"
	"github.com/coco-ai/coco-gateway/pkg/gateway/mw"
	"github.com/coco-ai/coco-gateway/pkg/gateway/relay"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
	"github.com/coco-ai/coco-gateway/pkg/gateway/sessions"
	"github.com/coco-ai/coco-gateway/pkg/gateway/tools"
	"github.com/coco-ai/coco-gateway/pkg/gateway/transcript"
)

const (
	responseModeAudio = "audio"
	responseModeText  = "text"
)

// ChatGate is the chat bookkeeping the WebSocket handler performs before a
// relay starts. *chatstore.Store satisfies it.
type ChatGate interface {
	EnsureUser(ctx context.Context, userID identity.UserID) error
	EnsureChat(ctx context.Context, ownerID identity.UserID, chatID string) (isNew bool, err error)
	tools.Titler
	transcript.Saver
}

// WSHandler handles /ws live sessions.
type WSHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Verifier  identity.Verifier
	Chats     ChatGate
	Directory *sessions.Directory
	Runner    runtime.Runner
	Images    tools.ImageSubmitter
	Tracker   *sessions.Tracker
	Lifecycle *lifecycle.Lifecycle
	Metrics   *metrics.Metrics
}

func (h WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		http.Error(w, "gateway is draining", http.StatusServiceUnavailable)
		return
	}
	if !h.originAllowed(r) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return
	}

	reqID, _ := mw.RequestIDFrom(r.Context())
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("request_id", reqID)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Parameter and token checks happen on the upgraded socket so the
	// client receives a close code instead of a failed handshake.
	query := r.URL.Query()
	token := strings.TrimSpace(query.Get("token"))
	chatID := strings.TrimSpace(query.Get("chat_id"))
	if token == "" || chatID == "" {
		h.closeWith(conn, websocket.ClosePolicyViolation, "missing required parameters")
		return
	}
	responseMode := responseModeAudio
	if strings.TrimSpace(query.Get("response_mode")) == responseModeText {
		responseMode = responseModeText
	}

	ctx := r.Context()
	userID, err := h.Verifier.Verify(ctx, token)
	if err != nil {
		logger.Warn("token rejected", "error", err)
		h.closeWith(conn, websocket.ClosePolicyViolation, "invalid authentication token")
		return
	}
	logger = logger.With("user_id", string(userID), "chat_id", chatID)

	if err := h.Chats.EnsureUser(ctx, userID); err != nil {
		logger.Error("ensure user failed", "error", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "failed to initialize chat")
		return
	}
	isNew, err := h.Chats.EnsureChat(ctx, userID, chatID)
	if err != nil {
		logger.Error("ensure chat failed", "error", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "failed to initialize chat")
		return
	}

	session, err := h.Directory.Resolve(ctx, userID, chatID, isNew)
	if err != nil {
		logger.Error("session resolution failed", "error", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "failed to create session")
		return
	}

	toolbox, err := tools.New(userID, chatID, tools.Dependencies{
		Images: h.Images,
		Titles: h.Chats,
		Logger: logger,
	})
	if err != nil {
		logger.Error("toolbox setup failed", "error", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "failed to create session")
		return
	}

	recorder, err := transcript.NewRecorder(h.Chats, h.Config.RecorderQueueSize, logger)
	if err != nil {
		logger.Error("recorder setup failed", "error", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "failed to create session")
		return
	}

	runCfg := runtime.RunConfig{
		ResponseModality:    "AUDIO",
		SystemInstruction:   tools.SystemInstruction,
		Toolbox:             toolbox,
		InputTranscription:  true,
		OutputTranscription: responseMode == responseModeAudio,
	}
	if responseMode == responseModeText {
		runCfg.ResponseModality = "TEXT"
	}

	rl, err := relay.New(relay.Dependencies{
		Conn:      conn,
		Runner:    h.Runner,
		Session:   session,
		RunConfig: runCfg,
		Recorder:  recorder,
		ChatID:    chatID,
		Logger:    logger,
		Config: relay.Config{
			MaxMessageBytes: h.Config.WSMaxMessageBytes,
			PingInterval:    h.Config.WSPingInterval,
			WriteTimeout:    h.Config.WSWriteTimeout,
			ReadTimeout:     h.Config.WSReadTimeout,
			DrainTimeout:    h.Config.RelayDrainTimeout,
			InputQueueSize:  h.Config.OutboundQueueSize,
		},
	})
	if err != nil {
		logger.Error("relay setup failed", "error", err)
		h.closeWith(conn, websocket.CloseInternalServerErr, "failed to create session")
		return
	}

	unregister := h.Tracker.Register(session.ID, sessions.Handle{
		Cancel: rl.Cancel,
		Warn:   rl.Warn,
	})
	defer unregister()

	h.Metrics.RecordSessionStart()
	started := time.Now()
	status := "ok"
	if err := rl.Run(ctx); err != nil {
		status = "error"
		logger.Warn("live session ended with error", "error", err)
	}
	h.Metrics.RecordSessionEnd(responseMode, status, time.Since(started))
}

func (h WSHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h WSHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(h.Config.WSWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = conn.Close()
}
