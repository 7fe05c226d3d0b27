package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used for local development and tests.
type Memory struct {
	mu   sync.RWMutex
	now  func() time.Time
	docs map[string]map[string]Document   // collection -> key -> doc
	subs map[string]map[string][]Document // collection/parent/sub -> docs in insert order
}

type MemoryOption func(*Memory)

// WithMemoryClock overrides the timestamp clock. Used in tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:  time.Now,
		docs: make(map[string]map[string]Document),
		subs: make(map[string]map[string][]Document),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, collection, key string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[collection][key]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = cloneFields(doc.Data)
	return doc, nil
}

func (m *Memory) Set(ctx context.Context, collection, key string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]Document)
		m.docs[collection] = coll
	}

	now := m.now()
	doc, ok := coll[key]
	if !ok {
		doc = Document{Key: key, Data: make(Fields), CreatedAt: now}
	} else {
		doc.Data = cloneFields(doc.Data)
	}
	for k, v := range fields {
		doc.Data[k] = v
	}
	doc.UpdatedAt = now
	coll[key] = doc
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, key string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.docs[collection]
	doc, ok := coll[key]
	if !ok {
		return ErrNotFound
	}
	doc.Data = cloneFields(doc.Data)
	for k, v := range fields {
		doc.Data[k] = v
	}
	doc.UpdatedAt = m.now()
	coll[key] = doc
	return nil
}

func (m *Memory) Append(ctx context.Context, collection, parentKey, subcollection string, fields Fields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parents, ok := m.subs[collection]
	if !ok {
		parents = make(map[string][]Document)
		m.subs[collection] = parents
	}
	subKey := parentKey + "/" + subcollection

	now := m.now()
	doc := Document{
		Key:       uuid.NewString(),
		Data:      cloneFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
	parents[subKey] = append(parents[subKey], doc)
	return doc.Key, nil
}

func (m *Memory) ListSub(ctx context.Context, collection, parentKey, subcollection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.subs[collection][parentKey+"/"+subcollection]
	out := make([]Document, len(stored))
	for i, doc := range stored {
		doc.Data = cloneFields(doc.Data)
		out[i] = doc
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
