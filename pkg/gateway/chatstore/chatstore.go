// Package chatstore persists the conversational state owned by the gateway:
// user records, chat records with titles, the message history of each chat,
// and the durable chat-to-runtime-session binding.
package chatstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coco-ai/coco-gateway/pkg/gateway/docstore"
	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
)

// Message roles stored on chat history entries.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// ErrNoSession reports that a chat has no runtime session bound yet.
var ErrNoSession = errors.New("chatstore: no session bound for chat")

// Collections names the document-store collections the chat store writes to.
type Collections struct {
	Users    string
	Chats    string
	Messages string
	Sessions string
}

// Dependencies carries the collaborators for New.
type Dependencies struct {
	Docs        docstore.Store
	Collections Collections
	Logger      *slog.Logger
}

// Store is the chat persistence collaborator. Safe for concurrent use when
// the underlying document store is.
type Store struct {
	docs        docstore.Store
	collections Collections
	logger      *slog.Logger
}

func New(deps Dependencies) (*Store, error) {
	if deps.Docs == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if deps.Collections.Users == "" {
		deps.Collections.Users = "users"
	}
	if deps.Collections.Chats == "" {
		deps.Collections.Chats = "chats"
	}
	if deps.Collections.Messages == "" {
		deps.Collections.Messages = "messages"
	}
	if deps.Collections.Sessions == "" {
		deps.Collections.Sessions = "sessions"
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Store{docs: deps.Docs, collections: deps.Collections, logger: deps.Logger}, nil
}

// EnsureUser creates the user record if it does not exist yet.
func (s *Store) EnsureUser(ctx context.Context, userID identity.UserID) error {
	_, err := s.docs.Get(ctx, s.collections.Users, string(userID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("look up user %s: %w", userID, err)
	}
	if err := s.docs.Set(ctx, s.collections.Users, string(userID), docstore.Fields{
		"displayName": "",
	}); err != nil {
		return fmt.Errorf("create user %s: %w", userID, err)
	}
	return nil
}

// EnsureChat creates the chat record if missing and reports whether it was
// newly created. An existing chat is returned as-is regardless of owner; the
// identity gate has already bound the connection to its user.
func (s *Store) EnsureChat(ctx context.Context, ownerID identity.UserID, chatID string) (isNew bool, err error) {
	_, err = s.docs.Get(ctx, s.collections.Chats, chatID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return false, fmt.Errorf("look up chat %s: %w", chatID, err)
	}
	err = s.docs.Set(ctx, s.collections.Chats, chatID, docstore.Fields{
		"ownerId": string(ownerID),
		"title":   "",
	})
	if err != nil {
		return false, fmt.Errorf("create chat %s: %w", chatID, err)
	}
	return true, nil
}

// SaveMessage appends a message to the chat history and bumps the chat's
// updated_at stamp so recent chats sort first.
func (s *Store) SaveMessage(ctx context.Context, chatID, role, content string) error {
	if role != RoleUser && role != RoleModel && role != RoleTool {
		return fmt.Errorf("unknown message role %q", role)
	}
	_, err := s.docs.Append(ctx, s.collections.Chats, chatID, s.collections.Messages, docstore.Fields{
		"role":    role,
		"content": content,
	})
	if err != nil {
		return fmt.Errorf("save message for chat %s: %w", chatID, err)
	}
	if err := s.docs.Update(ctx, s.collections.Chats, chatID, docstore.Fields{}); err != nil {
		// The message is already stored. A stale chat stamp only affects
		// list ordering, so log and keep going.
		s.logger.WarnContext(ctx, "bump chat timestamp failed", "chat_id", chatID, "error", err)
	}
	return nil
}

// Messages returns the chat history in append order.
func (s *Store) Messages(ctx context.Context, chatID string) ([]docstore.Document, error) {
	docs, err := s.docs.ListSub(ctx, s.collections.Chats, chatID, s.collections.Messages)
	if err != nil {
		return nil, fmt.Errorf("list messages for chat %s: %w", chatID, err)
	}
	return docs, nil
}

// SetTitle renames the chat.
func (s *Store) SetTitle(ctx context.Context, chatID, title string) error {
	err := s.docs.Update(ctx, s.collections.Chats, chatID, docstore.Fields{"title": title})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("set title: chat %s does not exist", chatID)
	}
	if err != nil {
		return fmt.Errorf("set title for chat %s: %w", chatID, err)
	}
	return nil
}

// SessionFor returns the runtime session id bound to the chat, or ErrNoSession.
func (s *Store) SessionFor(ctx context.Context, chatID string) (string, error) {
	doc, err := s.docs.Get(ctx, s.collections.Sessions, chatID)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("look up session for chat %s: %w", chatID, err)
	}
	sessionID, _ := doc.Data["sessionId"].(string)
	if sessionID == "" {
		return "", ErrNoSession
	}
	return sessionID, nil
}

// BindSession durably maps the chat to a runtime session id. Concurrent binds
// for the same chat are last-write-wins.
func (s *Store) BindSession(ctx context.Context, chatID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	err := s.docs.Set(ctx, s.collections.Sessions, chatID, docstore.Fields{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("bind session for chat %s: %w", chatID, err)
	}
	return nil
}
