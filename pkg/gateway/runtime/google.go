package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/genai"
)

// GoogleConfig configures the Vertex AI runtime adapter. Image generation
// runs against its own location because the image models are served from a
// different endpoint than the live models.
type GoogleConfig struct {
	Project          string
	Location         string
	LiveModel        string
	ImageModel       string
	ImageGenLocation string
}

// GoogleRuntime implements Runner and ImageGenerator on Vertex AI.
type GoogleRuntime struct {
	live   *genai.Client
	image  *genai.Client
	cfg    GoogleConfig
	logger *slog.Logger
}

func NewGoogleRuntime(ctx context.Context, cfg GoogleConfig, logger *slog.Logger) (*GoogleRuntime, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("project is required")
	}
	if cfg.LiveModel == "" || cfg.ImageModel == "" {
		return nil, fmt.Errorf("live and image model ids are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	live, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create live client: %w", err)
	}
	image, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.ImageGenLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create image client: %w", err)
	}

	return &GoogleRuntime{live: live, image: image, cfg: cfg, logger: logger}, nil
}

// GenerateImage produces one image for the prompt, widescreen by default to
// match the client's rendering surface.
func (g *GoogleRuntime) GenerateImage(ctx context.Context, prompt string) (*Blob, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	res, err := g.image.Models.GenerateContent(ctx, g.cfg.ImageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: "16:9"},
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no content generated")
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}, nil
		}
	}
	return nil, fmt.Errorf("no image data found in response")
}

// Run opens a live connection, pumps client input from the queue, and
// translates server messages into events. Tool calls are dispatched to the
// toolbox and their results returned to the model.
func (g *GoogleRuntime) Run(ctx context.Context, session *Session, queue *InputQueue, cfg RunConfig) (LiveStream, error) {
	connectCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.Modality(cfg.ResponseModality)},
	}
	if cfg.SystemInstruction != "" {
		connectCfg.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	if cfg.InputTranscription {
		connectCfg.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		connectCfg.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.Toolbox != nil {
		if decls := cfg.Toolbox.Declarations(); len(decls) > 0 {
			tool := &genai.Tool{}
			for _, d := range decls {
				tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
					Name:                 d.Name,
					Description:          d.Description,
					ParametersJsonSchema: d.Parameters,
				})
			}
			connectCfg.Tools = []*genai.Tool{tool}
		}
	}

	conn, err := g.live.Live.Connect(ctx, g.cfg.LiveModel, connectCfg)
	if err != nil {
		return nil, fmt.Errorf("connect live session %s: %w", session.ID, err)
	}

	stream := &googleStream{
		conn:    conn,
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
		toolbox: cfg.Toolbox,
		logger:  g.logger.With("session_id", session.ID),
	}
	go stream.pumpInput(ctx, queue)
	go stream.receiveLoop(ctx)
	return stream, nil
}

type googleStream struct {
	conn    *genai.Session
	events  chan Event
	done    chan struct{}
	toolbox Toolbox
	logger  *slog.Logger

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

func (s *googleStream) Events() <-chan Event { return s.events }

func (s *googleStream) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *googleStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *googleStream) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *googleStream) pumpInput(ctx context.Context, queue *InputQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-queue.Done():
			// Drain chunks queued before close, then stop sending.
			for {
				select {
				case chunk := <-queue.Chunks():
					if err := s.sendChunk(chunk); err != nil {
						return
					}
				default:
					return
				}
			}
		case chunk := <-queue.Chunks():
			if err := s.sendChunk(chunk); err != nil {
				s.logger.Warn("forward client input failed", "error", err)
				return
			}
		}
	}
}

func (s *googleStream) sendChunk(chunk Chunk) error {
	switch {
	case chunk.Realtime != nil:
		return s.conn.SendRealtimeInput(genai.LiveRealtimeInput{
			Media: &genai.Blob{MIMEType: chunk.Realtime.MIMEType, Data: chunk.Realtime.Data},
		})
	case chunk.Content != nil:
		return s.conn.SendClientContent(genai.LiveClientContentInput{
			Turns: []*genai.Content{toGenaiContent(chunk.Content)},
		})
	default:
		return nil
	}
}

func (s *googleStream) receiveLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for {
		msg, err := s.conn.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.setErr(fmt.Errorf("receive live message: %w", err))
			}
			return
		}

		if msg.ToolCall != nil {
			if end := s.handleToolCall(ctx, msg.ToolCall); end {
				s.emit(ctx, Event{EndOfSession: true})
				return
			}
			continue
		}

		event, ok := translateServerContent(msg)
		if !ok {
			continue
		}
		if !s.emit(ctx, event) {
			return
		}
	}
}

func (s *googleStream) emit(ctx context.Context, event Event) bool {
	select {
	case s.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// handleToolCall invokes every requested function and reports the results
// back to the model. It returns true when a tool requested session end.
func (s *googleStream) handleToolCall(ctx context.Context, call *genai.LiveServerToolCall) (end bool) {
	var responses []*genai.FunctionResponse
	for _, fc := range call.FunctionCalls {
		if fc == nil {
			continue
		}
		result, err := s.invoke(ctx, ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		if errors.Is(err, ErrEndSession) {
			end = true
			result = map[string]any{"status": "session ending"}
			err = nil
		}
		if err != nil {
			s.logger.Warn("tool invocation failed", "tool", fc.Name, "error", err)
			result = map[string]any{"error": err.Error()}
		}
		responses = append(responses, &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: result,
		})
	}
	if len(responses) > 0 {
		if err := s.conn.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses}); err != nil {
			s.logger.Warn("send tool response failed", "error", err)
		}
	}
	return end
}

func (s *googleStream) invoke(ctx context.Context, call ToolCall) (map[string]any, error) {
	if s.toolbox == nil {
		return nil, fmt.Errorf("no toolbox configured")
	}
	return s.toolbox.Invoke(ctx, call)
}

func translateServerContent(msg *genai.LiveServerMessage) (Event, bool) {
	sc := msg.ServerContent
	if sc == nil {
		return Event{}, false
	}

	event := Event{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.ModelTurn != nil {
		event.Content = fromGenaiContent(sc.ModelTurn)
	}
	if sc.InputTranscription != nil {
		event.InputTranscription = &Transcription{
			Text:     sc.InputTranscription.Text,
			Finished: sc.InputTranscription.Finished,
		}
	}
	if sc.OutputTranscription != nil {
		event.OutputTranscription = &Transcription{
			Text:     sc.OutputTranscription.Text,
			Finished: sc.OutputTranscription.Finished,
		}
	}
	if event.Content == nil && event.InputTranscription == nil && event.OutputTranscription == nil &&
		!event.TurnComplete && !event.Interrupted {
		return Event{}, false
	}
	return event, true
}

func toGenaiContent(content *Content) *genai.Content {
	out := &genai.Content{Role: content.Role}
	for _, part := range content.Parts {
		p := &genai.Part{Text: part.Text}
		if part.InlineData != nil {
			p.InlineData = &genai.Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
		}
		out.Parts = append(out.Parts, p)
	}
	return out
}

func fromGenaiContent(content *genai.Content) *Content {
	out := &Content{Role: content.Role}
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		p := Part{Text: part.Text}
		if part.InlineData != nil {
			p.InlineData = &Blob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
		}
		out.Parts = append(out.Parts, p)
	}
	return out
}
