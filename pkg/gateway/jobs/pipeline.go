package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
	"github.com/coco-ai/coco-gateway/pkg/gateway/metrics"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

// ArtifactPublisher stores a generated artifact and returns its locator.
type ArtifactPublisher interface {
	Publish(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Dependencies carries the collaborators for NewPipeline.
type Dependencies struct {
	Store     *Store
	Generator runtime.ImageGenerator
	Publisher ArtifactPublisher
	Logger    *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Pipeline submits image jobs and processes them in the background. Submit
// returns once the pending record is durable; everything after that is
// reported through the job record, not to the submitter.
type Pipeline struct {
	store     *Store
	generator runtime.ImageGenerator
	publisher ArtifactPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewPipeline(deps Dependencies) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("image generator is required")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("artifact publisher is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		store:     deps.Store,
		generator: deps.Generator,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		baseCtx:   context.Background(),
	}, nil
}

// Submit creates the pending record and kicks off background processing.
// An empty messageID gets a fresh UUID so every job record carries the id of
// the message the artifact belongs to. Processing outlives the submitting
// connection on purpose.
func (p *Pipeline) Submit(ctx context.Context, ownerID identity.UserID, chatID, messageID, prompt string) (string, error) {
	jobID := uuid.NewString()
	if messageID == "" {
		messageID = uuid.NewString()
	}
	if err := p.store.Create(ctx, jobID, ownerID, chatID, messageID, prompt); err != nil {
		return "", err
	}
	p.logger.InfoContext(ctx, "image job created", "job_id", jobID, "chat_id", chatID, "message_id", messageID)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.process(p.baseCtx, jobID, ownerID, prompt)
	}()
	return jobID, nil
}

func (p *Pipeline) process(ctx context.Context, jobID string, ownerID identity.UserID, prompt string) {
	logger := p.logger.With("job_id", jobID)
	started := time.Now()

	if err := p.store.MarkProcessing(ctx, jobID); err != nil {
		logger.Error("mark job processing failed", "error", err)
		return
	}

	image, err := p.generator.GenerateImage(ctx, prompt)
	if err != nil {
		logger.Error("image generation failed", "error", err)
		p.fail(ctx, jobID, err, started)
		return
	}

	key := fmt.Sprintf("generated_images/%s/%s.png", ownerID, jobID)
	locator, err := p.publisher.Publish(ctx, key, image.Data, "image/png")
	if err != nil {
		logger.Error("artifact publish failed", "error", err)
		p.fail(ctx, jobID, err, started)
		return
	}

	if err := p.store.Complete(ctx, jobID, locator); err != nil {
		logger.Error("mark job completed failed", "error", err)
		return
	}
	p.metrics.RecordImageJob(StatusCompleted, time.Since(started))
	logger.Info("image job completed", "locator", locator)
}

func (p *Pipeline) fail(ctx context.Context, jobID string, cause error, started time.Time) {
	if err := p.store.Fail(ctx, jobID, cause.Error()); err != nil {
		p.logger.Error("mark job failed failed", "job_id", jobID, "error", err)
	}
	p.metrics.RecordImageJob(StatusFailed, time.Since(started))
}

// Drain waits for in-flight jobs to finish or the context to expire.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
