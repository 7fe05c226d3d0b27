package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SessionBackend selects where agent-runtime sessions are resolved.
type SessionBackend string

const (
	SessionBackendVertex SessionBackend = "vertexai"
	SessionBackendMemory SessionBackend = "memory"
)

type Config struct {
	Addr string

	// Identity gate.
	JWTSecret string

	// Agent runtime.
	AppName        string
	LiveModelID    string
	SessionBackend SessionBackend

	// Google Cloud.
	Project  string
	Location string

	// Image generation.
	ImageModelID     string
	ImageGenLocation string

	// Blob storage.
	ArtifactBucket string

	// Document store. Empty DatabaseURL means the in-memory store (local dev).
	DatabaseURL string

	// Document-store collection names.
	UsersCollection    string
	ChatsCollection    string
	MessagesCollection string
	SessionsCollection string
	JobsCollection     string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket relay.
	WSMaxMessageBytes int64
	WSPingInterval    time.Duration
	WSWriteTimeout    time.Duration
	WSReadTimeout     time.Duration
	RelayDrainTimeout time.Duration
	OutboundQueueSize int
	RecorderQueueSize int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("COCO_ADDR", ":8080"),
		JWTSecret:           strings.TrimSpace(os.Getenv("COCO_JWT_SECRET")),
		AppName:             envOr("COCO_APP_NAME", "coco-bidi-streaming"),
		LiveModelID:         envOr("COCO_LIVE_MODEL_ID", "gemini-live-2.5-flash-preview-native-audio-09-2025"),
		SessionBackend:      SessionBackend(envOr("COCO_SESSION_BACKEND", string(SessionBackendVertex))),
		Project:             strings.TrimSpace(os.Getenv("COCO_GOOGLE_CLOUD_PROJECT")),
		Location:            envOr("COCO_GOOGLE_CLOUD_LOCATION", "asia-northeast1"),
		ImageModelID:        envOr("COCO_IMAGE_MODEL_ID", "gemini-3-pro-image-preview"),
		ImageGenLocation:    envOr("COCO_IMAGE_GEN_LOCATION", "global"),
		ArtifactBucket:      strings.TrimSpace(os.Getenv("COCO_ARTIFACT_BUCKET")),
		DatabaseURL:         strings.TrimSpace(os.Getenv("COCO_DATABASE_URL")),
		UsersCollection:     envOr("COCO_USERS_COLLECTION", "users"),
		ChatsCollection:     envOr("COCO_CHATS_COLLECTION", "chats"),
		MessagesCollection:  envOr("COCO_MESSAGES_COLLECTION", "messages"),
		SessionsCollection:  envOr("COCO_SESSIONS_COLLECTION", "sessions"),
		JobsCollection:      envOr("COCO_JOBS_COLLECTION", "image_jobs"),
		CORSAllowedOrigins:  make(map[string]struct{}),
		WSMaxMessageBytes:   envInt64Or("COCO_WS_MAX_MESSAGE_BYTES", 512*1024),
		WSPingInterval:      envDurationOr("COCO_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:      envDurationOr("COCO_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:       envDurationOr("COCO_WS_READ_TIMEOUT", 0),
		RelayDrainTimeout:   envDurationOr("COCO_RELAY_DRAIN_TIMEOUT", 5*time.Second),
		OutboundQueueSize:   envIntOr("COCO_WS_OUTBOUND_QUEUE_SIZE", 128),
		RecorderQueueSize:   envIntOr("COCO_RECORDER_QUEUE_SIZE", 256),
		ReadHeaderTimeout:   envDurationOr("COCO_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("COCO_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("COCO_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("COCO_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	switch cfg.SessionBackend {
	case SessionBackendVertex, SessionBackendMemory:
	default:
		return Config{}, fmt.Errorf("COCO_SESSION_BACKEND must be one of vertexai|memory")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("COCO_JWT_SECRET must be set")
	}
	if cfg.SessionBackend == SessionBackendVertex && cfg.Project == "" {
		return Config{}, fmt.Errorf("COCO_GOOGLE_CLOUD_PROJECT must be set when COCO_SESSION_BACKEND=vertexai")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("COCO_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("COCO_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("COCO_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("COCO_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.RelayDrainTimeout <= 0 {
		return Config{}, fmt.Errorf("COCO_RELAY_DRAIN_TIMEOUT must be > 0")
	}
	if cfg.OutboundQueueSize <= 0 {
		return Config{}, fmt.Errorf("COCO_WS_OUTBOUND_QUEUE_SIZE must be > 0")
	}
	if cfg.RecorderQueueSize <= 0 {
		return Config{}, fmt.Errorf("COCO_RECORDER_QUEUE_SIZE must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("COCO_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("COCO_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("COCO_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
