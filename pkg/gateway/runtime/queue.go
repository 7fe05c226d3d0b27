package runtime

import (
	"errors"
	"sync"
)

// ErrQueueClosed reports a send on a closed input queue.
var ErrQueueClosed = errors.New("runtime: input queue closed")

// Chunk is one unit of client input. Exactly one field is set.
type Chunk struct {
	Realtime *Blob
	Content  *Content
}

// InputQueue carries client input to a live run. Close is idempotent, may be
// called concurrently with sends, and unblocks any sender waiting on a full
// buffer.
type InputQueue struct {
	ch        chan Chunk
	done      chan struct{}
	closeOnce sync.Once
}

func NewInputQueue(size int) *InputQueue {
	if size <= 0 {
		size = 64
	}
	return &InputQueue{
		ch:   make(chan Chunk, size),
		done: make(chan struct{}),
	}
}

// SendRealtime queues a realtime media blob, typically raw audio.
func (q *InputQueue) SendRealtime(blob Blob) error {
	return q.send(Chunk{Realtime: &blob})
}

// SendContent queues structured content, typically a user text turn.
func (q *InputQueue) SendContent(content Content) error {
	return q.send(Chunk{Content: &content})
}

func (q *InputQueue) send(chunk Chunk) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- chunk:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Close marks the end of client input. Safe to call multiple times and from
// multiple goroutines.
func (q *InputQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Chunks yields queued input. Consumers select against Done to observe end
// of input; chunks queued before Close remain readable.
func (q *InputQueue) Chunks() <-chan Chunk {
	return q.ch
}

// Done is closed when the queue is closed.
func (q *InputQueue) Done() <-chan struct{} {
	return q.done
}
