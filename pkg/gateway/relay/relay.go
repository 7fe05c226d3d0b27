// Package relay bridges one client WebSocket to one live runtime session:
// an ingress flow forwarding client frames into the input queue, and an
// egress flow forwarding runtime events back to the client. Whichever flow
// ends first actively shuts the other down; the connection never lingers
// half-open.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coco-ai/coco-gateway/pkg/gateway/protocol"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

// State is the relay lifecycle. ACTIVE while both flows run, DRAINING after
// the client is gone but runtime events are still being delivered, CLOSED
// once everything is torn down.
type State int32

const (
	StateActive State = iota
	StateDraining
	StateClosed
)

// ClientConn is the WebSocket surface the relay needs. *websocket.Conn
// satisfies it; tests use an in-memory fake.
type ClientConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Recorder receives transcription fragments from the egress flow.
type Recorder interface {
	RecordInput(chatID string, tr runtime.Transcription)
	RecordOutput(chatID string, tr runtime.Transcription)
	Close()
}

type Config struct {
	MaxMessageBytes   int64
	PingInterval      time.Duration
	WriteTimeout      time.Duration
	ReadTimeout       time.Duration
	DrainTimeout      time.Duration
	InputQueueSize    int
}

// Dependencies carries the collaborators for New.
type Dependencies struct {
	Conn      ClientConn
	Runner    runtime.Runner
	Session   *runtime.Session
	RunConfig runtime.RunConfig
	Recorder  Recorder
	ChatID    string
	Logger    *slog.Logger
	Config    Config
	Now       func() time.Time
}

type Relay struct {
	conn      ClientConn
	runner    runtime.Runner
	session   *runtime.Session
	runCfg    runtime.RunConfig
	recorder  Recorder
	chatID    string
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	queue  *runtime.InputQueue
	ctx    context.Context
	cancel context.CancelFunc

	state      atomic.Int32
	drainTimer atomic.Pointer[time.Timer]
	connClosed atomic.Bool
}

func New(deps Dependencies) (*Relay, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("recorder is required")
	}
	if deps.ChatID == "" {
		return nil, fmt.Errorf("chat id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.PingInterval <= 0 {
		deps.Config.PingInterval = 20 * time.Second
	}
	if deps.Config.WriteTimeout <= 0 {
		deps.Config.WriteTimeout = 5 * time.Second
	}
	if deps.Config.DrainTimeout <= 0 {
		deps.Config.DrainTimeout = 5 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		conn:     deps.Conn,
		runner:   deps.Runner,
		session:  deps.Session,
		runCfg:   deps.RunConfig,
		recorder: deps.Recorder,
		chatID:   deps.ChatID,
		logger:   deps.Logger.With("chat_id", deps.ChatID, "session_id", deps.Session.ID),
		cfg:      deps.Config,
		now:      deps.Now,
		queue:    runtime.NewInputQueue(deps.Config.InputQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (r *Relay) State() State {
	return State(r.state.Load())
}

// Cancel force-stops both flows. Used by the drain tracker.
func (r *Relay) Cancel() {
	r.cancel()
}

// Warn tells the client the gateway is going away. The client is expected to
// disconnect; if it does not, Cancel follows at the end of the grace period.
func (r *Relay) Warn(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	return r.conn.WriteControl(websocket.CloseMessage, msg, r.now().Add(r.cfg.WriteTimeout))
}

// Run drives the relay until both flows end. The returned error is the
// egress failure, if any; a client disconnect is a normal end, not an error.
func (r *Relay) Run(ctx context.Context) error {
	defer r.finish()

	stop := context.AfterFunc(ctx, r.cancel)
	defer stop()

	if r.cfg.MaxMessageBytes > 0 {
		r.conn.SetReadLimit(r.cfg.MaxMessageBytes)
	}
	if r.cfg.ReadTimeout > 0 {
		_ = r.conn.SetReadDeadline(r.now().Add(r.cfg.ReadTimeout))
		r.conn.SetPongHandler(func(string) error {
			return r.conn.SetReadDeadline(r.now().Add(r.cfg.ReadTimeout))
		})
	}

	stream, err := r.runner.Run(r.ctx, r.session, r.queue, r.runCfg)
	if err != nil {
		return fmt.Errorf("start live run: %w", err)
	}
	defer stream.Close()

	ingressDone := make(chan struct{})
	go func() {
		defer close(ingressDone)
		r.ingress()
	}()

	err = r.egress(stream)

	// Egress is over: actively shut the sibling down instead of waiting
	// for the client to go away on its own.
	r.closeConn()
	r.queue.Close()
	r.cancel()
	<-ingressDone
	return err
}

// ingress forwards client frames to the input queue until the connection
// ends. Binary frames are raw audio; text frames are user text turns.
func (r *Relay) ingress() {
	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			break
		}
		switch messageType {
		case websocket.BinaryMessage:
			if err := r.queue.SendRealtime(runtime.Blob{MIMEType: "audio/pcm", Data: data}); err != nil {
				r.logger.Debug("drop audio frame after queue close")
				return
			}
		case websocket.TextMessage:
			content := runtime.Content{Role: "user", Parts: []runtime.Part{{Text: string(data)}}}
			if err := r.queue.SendContent(content); err != nil {
				return
			}
		}
	}

	// Client is gone. Close the input side and let egress drain whatever
	// the runtime still has, bounded by the drain timeout.
	r.queue.Close()
	if r.ctx.Err() == nil && r.state.CompareAndSwap(int32(StateActive), int32(StateDraining)) {
		r.logger.Info("client disconnected, draining runtime events")
		r.drainTimer.Store(time.AfterFunc(r.cfg.DrainTimeout, r.cancel))
	}
}

func (r *Relay) egress(stream runtime.LiveStream) error {
	ping := time.NewTicker(r.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return nil
		case <-ping.C:
			deadline := r.now().Add(r.cfg.WriteTimeout)
			if err := r.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return nil
			}
		case event, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					return fmt.Errorf("live stream failed: %w", err)
				}
				return nil
			}
			if event.EndOfSession {
				if err := r.write(protocol.EndSessionMessage); err != nil {
					return err
				}
				r.logger.Info("session ended by runtime")
				return nil
			}

			payload, err := protocol.MarshalEvent(event)
			if err != nil {
				return err
			}
			if err := r.write(payload); err != nil {
				return err
			}

			if event.InputTranscription != nil {
				r.recorder.RecordInput(r.chatID, *event.InputTranscription)
			}
			if event.OutputTranscription != nil {
				r.recorder.RecordOutput(r.chatID, *event.OutputTranscription)
			}
		}
	}
}

func (r *Relay) write(payload []byte) error {
	_ = r.conn.SetWriteDeadline(r.now().Add(r.cfg.WriteTimeout))
	if err := r.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write to client: %w", err)
	}
	return nil
}

func (r *Relay) closeConn() {
	if r.connClosed.Swap(true) {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = r.conn.WriteControl(websocket.CloseMessage, msg, r.now().Add(r.cfg.WriteTimeout))
	_ = r.conn.Close()
}

func (r *Relay) finish() {
	r.state.Store(int32(StateClosed))
	if timer := r.drainTimer.Load(); timer != nil {
		timer.Stop()
	}
	r.queue.Close()
	r.closeConn()
	r.cancel()
	r.recorder.Close()
	r.logger.Info("relay closed")
}
