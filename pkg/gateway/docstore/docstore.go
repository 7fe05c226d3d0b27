// Package docstore provides the persistent document collaborator used by the
// gateway: keyed documents grouped into collections, with per-document atomic
// merge updates and append-only subcollections.
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that no document exists for the requested key.
var ErrNotFound = errors.New("docstore: document not found")

// Fields is a shallow field map persisted on a document. Merge semantics are
// per top-level field: existing fields not named in an update are preserved.
type Fields map[string]any

// Document is a stored document together with its server-side timestamps.
type Document struct {
	Key       string
	Data      Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the document-store collaborator. All writes stamp updated_at with
// server time; concurrent writers to the same key are last-write-wins.
type Store interface {
	// Get returns the document at collection/key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) (Document, error)

	// Set creates or merge-updates the document at collection/key.
	Set(ctx context.Context, collection, key string, fields Fields) error

	// Update merge-updates an existing document, or returns ErrNotFound.
	Update(ctx context.Context, collection, key string, fields Fields) error

	// Append adds a new document to a subcollection of collection/parentKey
	// and returns its generated id. The parent document is not required to
	// exist: subcollections are independent, as in the original store.
	Append(ctx context.Context, collection, parentKey, subcollection string, fields Fields) (string, error)

	// ListSub returns a subcollection's documents in created-at order.
	ListSub(ctx context.Context, collection, parentKey, subcollection string) ([]Document, error)
}

func cloneFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
