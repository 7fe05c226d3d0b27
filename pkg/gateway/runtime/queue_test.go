package runtime

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInputQueue_DeliversInOrder(t *testing.T) {
	q := NewInputQueue(4)

	if err := q.SendRealtime(Blob{MIMEType: "audio/pcm", Data: []byte{1}}); err != nil {
		t.Fatalf("SendRealtime: %v", err)
	}
	if err := q.SendContent(Content{Role: "user", Parts: []Part{{Text: "hi"}}}); err != nil {
		t.Fatalf("SendContent: %v", err)
	}

	first := <-q.Chunks()
	if first.Realtime == nil || first.Realtime.MIMEType != "audio/pcm" {
		t.Fatalf("first chunk = %+v, want realtime audio", first)
	}
	second := <-q.Chunks()
	if second.Content == nil || second.Content.Parts[0].Text != "hi" {
		t.Fatalf("second chunk = %+v, want content", second)
	}
}

func TestInputQueue_SendAfterCloseFails(t *testing.T) {
	q := NewInputQueue(4)
	q.Close()

	if err := q.SendRealtime(Blob{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err=%v, want ErrQueueClosed", err)
	}
}

func TestInputQueue_CloseIsIdempotentAndConcurrent(t *testing.T) {
	q := NewInputQueue(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Close()
		}()
	}
	wg.Wait()

	select {
	case <-q.Done():
	default:
		t.Fatalf("Done not closed after Close")
	}
}

func TestInputQueue_CloseUnblocksFullBufferSender(t *testing.T) {
	q := NewInputQueue(1)
	if err := q.SendRealtime(Blob{Data: []byte{1}}); err != nil {
		t.Fatalf("SendRealtime: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.SendRealtime(Blob{Data: []byte{2}})
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("err=%v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked sender not released by Close")
	}
}

func TestInputQueue_ChunksQueuedBeforeCloseRemainReadable(t *testing.T) {
	q := NewInputQueue(4)
	if err := q.SendContent(Content{Parts: []Part{{Text: "bye"}}}); err != nil {
		t.Fatalf("SendContent: %v", err)
	}
	q.Close()

	select {
	case chunk := <-q.Chunks():
		if chunk.Content == nil || chunk.Content.Parts[0].Text != "bye" {
			t.Fatalf("chunk=%+v", chunk)
		}
	default:
		t.Fatalf("queued chunk lost on Close")
	}
}
