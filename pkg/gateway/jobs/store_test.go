package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/coco-ai/coco-gateway/pkg/gateway/docstore"
)

func newTestJobStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(docstore.NewMemory(), "image_jobs")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStore_CreateThenGet(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "job_1", "user_1", "chat_1", "msg_1", "a rocket"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	job, err := store.Get(ctx, "job_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != StatusPending || job.Prompt != "a rocket" || job.OwnerID != "user_1" || job.ChatID != "chat_1" {
		t.Fatalf("job=%+v", job)
	}
	if job.MessageID != "msg_1" {
		t.Fatalf("message id=%q, want msg_1", job.MessageID)
	}
	if job.ArtifactLocator != "" || job.ErrorDetail != "" {
		t.Fatalf("pending job carries terminal fields: %+v", job)
	}
}

func TestStore_CreateWritesMessageIDField(t *testing.T) {
	docs := docstore.NewMemory()
	store, err := NewStore(docs, "image_jobs")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Create(ctx, "job_1", "user_1", "chat_1", "msg_1", "p"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := docs.Get(ctx, "image_jobs", "job_1")
	if err != nil {
		t.Fatalf("Get raw document: %v", err)
	}
	if got, _ := doc.Data["messageId"].(string); got != "msg_1" {
		t.Fatalf("messageId=%q, want msg_1 (fields: %v)", got, doc.Data)
	}
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	store := newTestJobStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestStore_HappyPathTransitions(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "job_1", "user_1", "chat_1", "msg_1", "p"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.MarkProcessing(ctx, "job_1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.Complete(ctx, "job_1", "gs://b/generated_images/user_1/job_1.png"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	job, _ := store.Get(ctx, "job_1")
	if job.Status != StatusCompleted {
		t.Fatalf("status=%q", job.Status)
	}
	if job.ArtifactLocator == "" || job.ErrorDetail != "" {
		t.Fatalf("completed job fields wrong: %+v", job)
	}
}

func TestStore_FailSetsErrorDetailOnly(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "job_1", "user_1", "chat_1", "msg_1", "p"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.MarkProcessing(ctx, "job_1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.Fail(ctx, "job_1", "no content generated"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	job, _ := store.Get(ctx, "job_1")
	if job.Status != StatusFailed {
		t.Fatalf("status=%q", job.Status)
	}
	if job.ErrorDetail != "no content generated" || job.ArtifactLocator != "" {
		t.Fatalf("failed job fields wrong: %+v", job)
	}
}

func TestStore_RejectsBackwardsTransitions(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "job_1", "user_1", "chat_1", "msg_1", "p"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Completing a pending job skips processing.
	if err := store.Complete(ctx, "job_1", "gs://b/x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err=%v, want ErrInvalidTransition", err)
	}

	if err := store.MarkProcessing(ctx, "job_1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.MarkProcessing(ctx, "job_1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double MarkProcessing: err=%v, want ErrInvalidTransition", err)
	}

	if err := store.Fail(ctx, "job_1", "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	// Terminal states stay terminal.
	if err := store.Complete(ctx, "job_1", "gs://b/x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete after fail: err=%v, want ErrInvalidTransition", err)
	}
	if err := store.Fail(ctx, "job_1", "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("fail after fail: err=%v, want ErrInvalidTransition", err)
	}
}
