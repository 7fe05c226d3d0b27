package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/coco-ai/coco-gateway/pkg/gateway/docstore"
)

// MemorySessionService keeps sessions in process memory. Sessions do not
// survive a restart; suitable for local development and tests.
type MemorySessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemorySessionService() *MemorySessionService {
	return &MemorySessionService{sessions: make(map[string]*Session)}
}

func sessionKey(appName, userID, sessionID string) string {
	return appName + "/" + userID + "/" + sessionID
}

func (s *MemorySessionService) GetSession(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey(appName, userID, sessionID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(sess), nil
}

func (s *MemorySessionService) CreateSession(ctx context.Context, appName, userID string, state map[string]any) (*Session, error) {
	sess := &Session{
		ID:      uuid.NewString(),
		AppName: appName,
		UserID:  userID,
		State:   copyState(state),
	}
	s.mu.Lock()
	s.sessions[sessionKey(appName, userID, sess.ID)] = sess
	s.mu.Unlock()
	return copySession(sess), nil
}

func copySession(sess *Session) *Session {
	out := *sess
	out.State = copyState(sess.State)
	return &out
}

func copyState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// StoreSessionService persists sessions in the document store so they survive
// gateway restarts. One document per session, keyed app/user/session.
type StoreSessionService struct {
	docs       docstore.Store
	collection string
}

func NewStoreSessionService(docs docstore.Store, collection string) (*StoreSessionService, error) {
	if docs == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if collection == "" {
		collection = "sessions"
	}
	return &StoreSessionService{docs: docs, collection: collection}, nil
}

func (s *StoreSessionService) GetSession(ctx context.Context, appName, userID, sessionID string) (*Session, error) {
	doc, err := s.docs.Get(ctx, s.collection, sessionKey(appName, userID, sessionID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	state, _ := doc.Data["state"].(map[string]any)
	return &Session{ID: sessionID, AppName: appName, UserID: userID, State: state}, nil
}

func (s *StoreSessionService) CreateSession(ctx context.Context, appName, userID string, state map[string]any) (*Session, error) {
	sess := &Session{
		ID:      uuid.NewString(),
		AppName: appName,
		UserID:  userID,
		State:   copyState(state),
	}
	err := s.docs.Set(ctx, s.collection, sessionKey(appName, userID, sess.ID), docstore.Fields{
		"appName": appName,
		"userId":  userID,
		"state":   sess.State,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}
