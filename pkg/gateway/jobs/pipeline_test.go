package jobs

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/coco-ai/coco-gateway/pkg/gateway/docstore"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

type fakeGenerator struct {
	image *runtime.Blob
	err   error
	gate  chan struct{}
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (*runtime.Blob, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.image, f.err
}

type fakePublisher struct {
	locator string
	err     error
	key     string
}

func (f *fakePublisher) Publish(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.key = key
	return f.locator, f.err
}

func newTestPipeline(t *testing.T, gen *fakeGenerator, pub *fakePublisher) (*Pipeline, *Store) {
	t.Helper()
	store := newTestJobStore(t)
	p, err := NewPipeline(Dependencies{Store: store, Generator: gen, Publisher: pub})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, store
}

func drain(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestSubmit_CompletesJobInBackground(t *testing.T) {
	gen := &fakeGenerator{image: &runtime.Blob{MIMEType: "image/png", Data: []byte{1, 2}}}
	pub := &fakePublisher{locator: "gs://bucket/generated_images/user_1/x.png"}
	p, store := newTestPipeline(t, gen, pub)

	jobID, err := p.Submit(context.Background(), "user_1", "chat_1", "", "a rocket")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	drain(t, p)

	job, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Fatalf("status=%q, want completed", job.Status)
	}
	if job.ArtifactLocator != pub.locator {
		t.Fatalf("locator=%q", job.ArtifactLocator)
	}
	wantKey := fmt.Sprintf("generated_images/user_1/%s.png", jobID)
	if pub.key != wantKey {
		t.Fatalf("key=%q, want %q", pub.key, wantKey)
	}
}

func TestSubmit_DefaultsMessageID(t *testing.T) {
	gen := &fakeGenerator{image: &runtime.Blob{Data: []byte{1}}}
	pub := &fakePublisher{locator: "gs://b/k"}
	p, store := newTestPipeline(t, gen, pub)

	jobID, err := p.Submit(context.Background(), "user_1", "chat_1", "", "p")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	drain(t, p)

	job, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.MessageID == "" {
		t.Fatalf("job record has no message id: %+v", job)
	}
	if job.MessageID == jobID {
		t.Fatalf("message id reused the job id")
	}
}

func TestSubmit_KeepsCallerMessageID(t *testing.T) {
	gen := &fakeGenerator{image: &runtime.Blob{Data: []byte{1}}}
	pub := &fakePublisher{locator: "gs://b/k"}
	p, store := newTestPipeline(t, gen, pub)

	jobID, err := p.Submit(context.Background(), "user_1", "chat_1", "msg_42", "p")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	drain(t, p)

	job, _ := store.Get(context.Background(), jobID)
	if job.MessageID != "msg_42" {
		t.Fatalf("message id=%q, want msg_42", job.MessageID)
	}
}

func TestSubmit_ReturnsBeforeProcessingFinishes(t *testing.T) {
	gate := make(chan struct{})
	gen := &fakeGenerator{image: &runtime.Blob{Data: []byte{1}}, gate: gate}
	pub := &fakePublisher{locator: "gs://b/k"}
	p, store := newTestPipeline(t, gen, pub)

	jobID, err := p.Submit(context.Background(), "user_1", "chat_1", "", "p")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	job, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get right after submit: %v", err)
	}
	if job.Status == StatusCompleted || job.Status == StatusFailed {
		t.Fatalf("job terminal before generation unblocked: %q", job.Status)
	}

	close(gate)
	drain(t, p)
}

func TestSubmit_GenerationFailureRecordedOnJob(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("no content generated")}
	p, store := newTestPipeline(t, gen, &fakePublisher{})

	jobID, err := p.Submit(context.Background(), "user_1", "chat_1", "", "p")
	if err != nil {
		t.Fatalf("Submit must not fail for downstream errors: %v", err)
	}
	drain(t, p)

	job, _ := store.Get(context.Background(), jobID)
	if job.Status != StatusFailed {
		t.Fatalf("status=%q, want failed", job.Status)
	}
	if !strings.Contains(job.ErrorDetail, "no content generated") {
		t.Fatalf("detail=%q", job.ErrorDetail)
	}
	if job.ArtifactLocator != "" {
		t.Fatalf("failed job has artifact: %+v", job)
	}
}

func TestSubmit_PublishFailureRecordedOnJob(t *testing.T) {
	gen := &fakeGenerator{image: &runtime.Blob{Data: []byte{1}}}
	pub := &fakePublisher{err: fmt.Errorf("bucket gone")}
	p, store := newTestPipeline(t, gen, pub)

	jobID, err := p.Submit(context.Background(), "user_1", "chat_1", "", "p")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	drain(t, p)

	job, _ := store.Get(context.Background(), jobID)
	if job.Status != StatusFailed || !strings.Contains(job.ErrorDetail, "bucket gone") {
		t.Fatalf("job=%+v", job)
	}
}

func TestSubmit_FailsWhenPendingRecordCannotBeCreated(t *testing.T) {
	store, err := NewStore(failingDocs{}, "image_jobs")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	p, err := NewPipeline(Dependencies{
		Store:     store,
		Generator: &fakeGenerator{},
		Publisher: &fakePublisher{},
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	if _, err := p.Submit(context.Background(), "user_1", "chat_1", "", "p"); err == nil {
		t.Fatalf("expected error when pending record cannot be written")
	}
}

type failingDocs struct{}

func (failingDocs) Get(ctx context.Context, collection, key string) (docstore.Document, error) {
	return docstore.Document{}, fmt.Errorf("store down")
}
func (failingDocs) Set(ctx context.Context, collection, key string, fields docstore.Fields) error {
	return fmt.Errorf("store down")
}
func (failingDocs) Update(ctx context.Context, collection, key string, fields docstore.Fields) error {
	return fmt.Errorf("store down")
}
func (failingDocs) Append(ctx context.Context, collection, parentKey, subcollection string, fields docstore.Fields) (string, error) {
	return "", fmt.Errorf("store down")
}
func (failingDocs) ListSub(ctx context.Context, collection, parentKey, subcollection string) ([]docstore.Document, error) {
	return nil, fmt.Errorf("store down")
}
