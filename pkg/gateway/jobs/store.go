// Package jobs runs the asynchronous image generation pipeline: a durable
// job record moves pending -> processing -> completed or failed while the
// client polls the record elsewhere. Submission returns as soon as the
// pending record exists.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/coco-ai/coco-gateway/pkg/gateway/docstore"
	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrInvalidTransition reports a status change that would move a job
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("jobs: invalid status transition")

// ErrNotFound reports an unknown job id.
var ErrNotFound = errors.New("jobs: job not found")

// Job is one image generation job. Exactly one of ArtifactLocator and
// ErrorDetail is set once the job is terminal. MessageID ties the job to the
// chat message the artifact will be attached to.
type Job struct {
	ID              string
	OwnerID         identity.UserID
	ChatID          string
	MessageID       string
	Prompt          string
	Status          string
	ArtifactLocator string
	ErrorDetail     string
}

// Store persists jobs in the document store.
type Store struct {
	docs       docstore.Store
	collection string
}

func NewStore(docs docstore.Store, collection string) (*Store, error) {
	if docs == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if collection == "" {
		collection = "image_jobs"
	}
	return &Store{docs: docs, collection: collection}, nil
}

// Create writes the pending record.
func (s *Store) Create(ctx context.Context, jobID string, ownerID identity.UserID, chatID, messageID, prompt string) error {
	err := s.docs.Set(ctx, s.collection, jobID, docstore.Fields{
		"prompt":    prompt,
		"status":    StatusPending,
		"userId":    string(ownerID),
		"chatId":    chatID,
		"messageId": messageID,
	})
	if err != nil {
		return fmt.Errorf("create job %s: %w", jobID, err)
	}
	return nil
}

// MarkProcessing moves a pending job to processing.
func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, StatusPending, docstore.Fields{"status": StatusProcessing})
}

// Complete moves a processing job to completed with its artifact locator.
func (s *Store) Complete(ctx context.Context, jobID, artifactLocator string) error {
	return s.transition(ctx, jobID, StatusProcessing, docstore.Fields{
		"status":   StatusCompleted,
		"imageUrl": artifactLocator,
	})
}

// Fail moves a processing job to failed with a human-readable detail.
func (s *Store) Fail(ctx context.Context, jobID, detail string) error {
	return s.transition(ctx, jobID, StatusProcessing, docstore.Fields{
		"status": StatusFailed,
		"error":  detail,
	})
}

func (s *Store) transition(ctx context.Context, jobID, from string, fields docstore.Fields) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != from {
		return fmt.Errorf("job %s is %s, not %s: %w", jobID, job.Status, from, ErrInvalidTransition)
	}
	if err := s.docs.Update(ctx, s.collection, jobID, fields); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, jobID string) (Job, error) {
	doc, err := s.docs.Get(ctx, s.collection, jobID)
	if errors.Is(err, docstore.ErrNotFound) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}

	job := Job{ID: jobID}
	job.Prompt, _ = doc.Data["prompt"].(string)
	job.Status, _ = doc.Data["status"].(string)
	job.ChatID, _ = doc.Data["chatId"].(string)
	job.MessageID, _ = doc.Data["messageId"].(string)
	job.ArtifactLocator, _ = doc.Data["imageUrl"].(string)
	job.ErrorDetail, _ = doc.Data["error"].(string)
	if owner, ok := doc.Data["userId"].(string); ok {
		job.OwnerID = identity.UserID(owner)
	}
	return job, nil
}
