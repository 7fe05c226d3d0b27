// Package transcript persists finished speech transcriptions as chat
// messages without ever blocking the live relay. Interim fragments are
// discarded; persistence failures are logged and absorbed.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coco-ai/coco-gateway/pkg/gateway/chatstore"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

// Saver persists one chat message.
type Saver interface {
	SaveMessage(ctx context.Context, chatID, role, content string) error
}

type entry struct {
	chatID  string
	role    string
	content string
}

// Recorder queues finished transcriptions to a background worker. Record
// methods never block: when the queue is full the entry is dropped and
// logged, because transcript loss is preferable to stalling audio.
//
// The queue channel is never closed; Close signals shutdown through the stop
// channel so a Record racing Close drops the entry instead of panicking.
type Recorder struct {
	saver  Saver
	logger *slog.Logger

	queue     chan entry
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewRecorder(saver Saver, queueSize int, logger *slog.Logger) (*Recorder, error) {
	if saver == nil {
		return nil, fmt.Errorf("saver is required")
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		saver:  saver,
		logger: logger,
		queue:  make(chan entry, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go r.worker()
	return r, nil
}

// RecordInput persists a finished user utterance.
func (r *Recorder) RecordInput(chatID string, tr runtime.Transcription) {
	r.record(chatID, chatstore.RoleUser, tr)
}

// RecordOutput persists a finished model utterance.
func (r *Recorder) RecordOutput(chatID string, tr runtime.Transcription) {
	r.record(chatID, chatstore.RoleModel, tr)
}

func (r *Recorder) record(chatID, role string, tr runtime.Transcription) {
	if !tr.Finished || tr.Text == "" {
		return
	}
	select {
	case <-r.stop:
		return
	default:
	}
	select {
	case r.queue <- entry{chatID: chatID, role: role, content: tr.Text}:
	default:
		r.logger.Warn("transcript queue full, dropping entry", "chat_id", chatID, "role", role)
	}
}

func (r *Recorder) worker() {
	defer close(r.done)
	for {
		select {
		case e := <-r.queue:
			r.save(e)
		case <-r.stop:
			// Persist what was queued before shutdown, then exit.
			for {
				select {
				case e := <-r.queue:
					r.save(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) save(e entry) {
	if err := r.saver.SaveMessage(context.Background(), e.chatID, e.role, e.content); err != nil {
		r.logger.Warn("save transcript message failed",
			"chat_id", e.chatID, "role", e.role, "error", err)
	}
}

// Close stops accepting entries and waits for queued ones to be persisted.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}
