package transcript

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (s *recordingSaver) SaveMessage(ctx context.Context, chatID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, role+":"+content)
	return nil
}

func (s *recordingSaver) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

func TestRecorder_PersistsFinishedTranscriptions(t *testing.T) {
	saver := &recordingSaver{}
	r, err := NewRecorder(saver, 8, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	r.RecordInput("chat_1", runtime.Transcription{Text: "draw a cat", Finished: true})
	r.RecordOutput("chat_1", runtime.Transcription{Text: "here you go", Finished: true})
	r.Close()

	saved := saver.snapshot()
	if len(saved) != 2 {
		t.Fatalf("saved=%v, want 2 entries", saved)
	}
	if saved[0] != "user:draw a cat" || saved[1] != "model:here you go" {
		t.Fatalf("saved=%v", saved)
	}
}

func TestRecorder_DiscardsInterimAndEmpty(t *testing.T) {
	saver := &recordingSaver{}
	r, err := NewRecorder(saver, 8, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	r.RecordInput("chat_1", runtime.Transcription{Text: "dra", Finished: false})
	r.RecordOutput("chat_1", runtime.Transcription{Text: "", Finished: true})
	r.Close()

	if saved := saver.snapshot(); len(saved) != 0 {
		t.Fatalf("saved=%v, want none", saved)
	}
}

func TestRecorder_AbsorbsSaveFailures(t *testing.T) {
	saver := &recordingSaver{err: fmt.Errorf("store down")}
	r, err := NewRecorder(saver, 8, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	r.RecordInput("chat_1", runtime.Transcription{Text: "hello", Finished: true})
	// Close must not hang or panic when every save fails.
	r.Close()
}

func TestRecorder_CloseIsIdempotentAndDropsLateRecords(t *testing.T) {
	saver := &recordingSaver{}
	r, err := NewRecorder(saver, 8, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	r.Close()
	r.Close()
	r.RecordInput("chat_1", runtime.Transcription{Text: "late", Finished: true})

	if saved := saver.snapshot(); len(saved) != 0 {
		t.Fatalf("saved=%v, want none", saved)
	}
}

func TestRecorder_RecordDuringCloseDoesNotPanic(t *testing.T) {
	saver := &recordingSaver{}
	r, err := NewRecorder(saver, 4, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				r.RecordInput("chat_1", runtime.Transcription{Text: "hello", Finished: true})
			}
		}()
	}

	close(start)
	r.Close()
	wg.Wait()

	// Records that raced past the shutdown check may land in the queue after
	// the worker drained it; they are dropped, never a panic.
	r.RecordInput("chat_1", runtime.Transcription{Text: "late", Finished: true})
}

func TestNewRecorder_RequiresSaver(t *testing.T) {
	if _, err := NewRecorder(nil, 8, nil); err == nil {
		t.Fatalf("expected error for nil saver")
	}
}
