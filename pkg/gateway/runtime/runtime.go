// Package runtime abstracts the conversational agent runtime the gateway
// relays to: durable sessions, a bidirectional live stream, and one-shot
// image generation. The Google adapter in this package is the production
// implementation; tests substitute scripted fakes.
package runtime

import (
	"context"
	"errors"
)

// ErrSessionNotFound reports that a stored session id no longer resolves.
var ErrSessionNotFound = errors.New("runtime: session not found")

// ErrEndSession is returned by a tool invocation that asks for a graceful
// session shutdown. Runners surface it as an end-of-session event instead of
// a failure.
var ErrEndSession = errors.New("runtime: session end requested")

// Blob is a chunk of binary media with its MIME type.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one piece of model or user content.
type Part struct {
	Text       string
	InlineData *Blob
}

// Content is a role-attributed sequence of parts.
type Content struct {
	Role  string
	Parts []Part
}

// Transcription is a speech-to-text fragment. Finished marks the end of an
// utterance; unfinished fragments are interim and may be revised.
type Transcription struct {
	Text     string
	Finished bool
}

// Event is one runtime-to-client occurrence. Absent fields are nil or false;
// consumers must not infer meaning from zero values beyond that.
type Event struct {
	Content             *Content
	InputTranscription  *Transcription
	OutputTranscription *Transcription
	TurnComplete        bool
	Interrupted         bool
	EndOfSession        bool
}

// Session is a durable runtime conversation.
type Session struct {
	ID      string
	AppName string
	UserID  string
	State   map[string]any
}

// SessionService resolves and creates durable sessions.
type SessionService interface {
	// GetSession returns the stored session, or ErrSessionNotFound.
	GetSession(ctx context.Context, appName, userID, sessionID string) (*Session, error)

	// CreateSession creates a session with the given initial state and a
	// service-generated id.
	CreateSession(ctx context.Context, appName, userID string, state map[string]any) (*Session, error)
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolDeclaration describes a callable function exposed to the model.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Toolbox dispatches model tool calls. Invoke returning ErrEndSession (or an
// error wrapping it) ends the session gracefully rather than failing it.
type Toolbox interface {
	Declarations() []ToolDeclaration
	Invoke(ctx context.Context, call ToolCall) (map[string]any, error)
}

// RunConfig shapes one live run.
type RunConfig struct {
	// ResponseModality is "AUDIO" or "TEXT".
	ResponseModality string

	SystemInstruction string
	Toolbox           Toolbox

	InputTranscription  bool
	OutputTranscription bool
}

// LiveStream is the runtime-to-gateway half of a live run. Events is closed
// when the run ends; Err reports the terminal error after that, if any.
type LiveStream interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// Runner starts live runs against the agent runtime, consuming client input
// from the queue until it is closed.
type Runner interface {
	Run(ctx context.Context, session *Session, queue *InputQueue, cfg RunConfig) (LiveStream, error)
}

// ImageGenerator produces one image for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Blob, error)
}
