package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coco-ai/coco-gateway/pkg/gateway/chatstore"
	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

// Binder is the durable chat-to-session mapping.
type Binder interface {
	SessionFor(ctx context.Context, chatID string) (string, error)
	BindSession(ctx context.Context, chatID, sessionID string) error
}

// Directory resolves the runtime session for a chat: resume the bound one
// when it still exists, otherwise create and bind a fresh session. Two
// connections racing to create for the same chat are last-write-wins on the
// binding; both sessions stay usable.
type Directory struct {
	binder  Binder
	service runtime.SessionService
	appName string
	logger  *slog.Logger
}

func NewDirectory(binder Binder, service runtime.SessionService, appName string, logger *slog.Logger) (*Directory, error) {
	if binder == nil {
		return nil, fmt.Errorf("session binder is required")
	}
	if service == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if appName == "" {
		return nil, fmt.Errorf("app name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{binder: binder, service: service, appName: appName, logger: logger}, nil
}

// Resolve returns the session to run this connection on. Any error here is
// fatal for the connection: without a session there is nothing to relay.
func (d *Directory) Resolve(ctx context.Context, ownerID identity.UserID, chatID string, isNewChat bool) (*runtime.Session, error) {
	sessionID, err := d.binder.SessionFor(ctx, chatID)
	switch {
	case err == nil:
		sess, getErr := d.service.GetSession(ctx, d.appName, string(ownerID), sessionID)
		if getErr == nil {
			return sess, nil
		}
		if !errors.Is(getErr, runtime.ErrSessionNotFound) {
			return nil, fmt.Errorf("resume session for chat %s: %w", chatID, getErr)
		}
		// Stale binding. Create a replacement below.
		d.logger.WarnContext(ctx, "bound session missing, creating a new one",
			"chat_id", chatID, "session_id", sessionID)
	case errors.Is(err, chatstore.ErrNoSession):
		// First connection for this chat.
	default:
		return nil, fmt.Errorf("look up session binding for chat %s: %w", chatID, err)
	}

	sess, err := d.service.CreateSession(ctx, d.appName, string(ownerID), map[string]any{
		"ownerId":   string(ownerID),
		"chatId":    chatID,
		"isNewChat": isNewChat,
	})
	if err != nil {
		return nil, fmt.Errorf("create session for chat %s: %w", chatID, err)
	}
	if err := d.binder.BindSession(ctx, chatID, sess.ID); err != nil {
		return nil, fmt.Errorf("bind session for chat %s: %w", chatID, err)
	}
	return sess, nil
}
