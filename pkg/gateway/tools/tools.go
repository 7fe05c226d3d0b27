// Package tools exposes the gateway's callable functions to the agent model:
// image generation, chat titling, and graceful session end. A Toolbox is
// bound to one connection's owner and chat so the model never chooses ids.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

const (
	ToolGenerateImage = "generate_image"
	ToolSetChatTitle  = "set_chat_title"
	ToolEndSession    = "end_session"
)

// ImageSubmitter accepts an image generation request and returns the job id
// once the job record exists. An empty messageID asks the submitter to mint
// one. Generation itself continues in the background.
type ImageSubmitter interface {
	Submit(ctx context.Context, ownerID identity.UserID, chatID, messageID, prompt string) (string, error)
}

// Titler renames a chat.
type Titler interface {
	SetTitle(ctx context.Context, chatID, title string) error
}

// Dependencies carries the collaborators for New.
type Dependencies struct {
	Images ImageSubmitter
	Titles Titler
	Logger *slog.Logger
}

// Toolbox implements runtime.Toolbox for one connection.
type Toolbox struct {
	ownerID identity.UserID
	chatID  string
	images  ImageSubmitter
	titles  Titler
	logger  *slog.Logger
}

func New(ownerID identity.UserID, chatID string, deps Dependencies) (*Toolbox, error) {
	if deps.Images == nil {
		return nil, fmt.Errorf("image submitter is required")
	}
	if deps.Titles == nil {
		return nil, fmt.Errorf("titler is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Toolbox{
		ownerID: ownerID,
		chatID:  chatID,
		images:  deps.Images,
		titles:  deps.Titles,
		logger:  deps.Logger.With("chat_id", chatID),
	}, nil
}

func (t *Toolbox) Declarations() []runtime.ToolDeclaration {
	return []runtime.ToolDeclaration{
		{
			Name:        ToolGenerateImage,
			Description: "Generate an illustration from a detailed English prompt. Returns a job id; the image is delivered asynchronously.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "Detailed English prompt describing subject, style, mood, and lighting.",
					},
				},
				"required": []string{"prompt"},
			},
		},
		{
			Name:        ToolSetChatTitle,
			Description: "Set a short title for the current chat once its topic is clear.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Short title describing the conversation.",
					},
				},
				"required": []string{"title"},
			},
		},
		{
			Name:        ToolEndSession,
			Description: "End the current session after the user says goodbye.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// Invoke dispatches one model tool call. Unknown tools and bad arguments are
// reported back to the model as errors, never to the client.
func (t *Toolbox) Invoke(ctx context.Context, call runtime.ToolCall) (map[string]any, error) {
	switch call.Name {
	case ToolGenerateImage:
		return t.generateImage(ctx, call.Args)
	case ToolSetChatTitle:
		return t.setChatTitle(ctx, call.Args)
	case ToolEndSession:
		t.logger.InfoContext(ctx, "session end requested by tool")
		return nil, runtime.ErrEndSession
	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (t *Toolbox) generateImage(ctx context.Context, args map[string]any) (map[string]any, error) {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	jobID, err := t.images.Submit(ctx, t.ownerID, t.chatID, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("submit image job: %w", err)
	}
	t.logger.InfoContext(ctx, "image job submitted", "job_id", jobID)
	return map[string]any{
		"status": "processing",
		"jobId":  jobID,
	}, nil
}

// setChatTitle absorbs storage failures: a missing title must never take the
// conversation down.
func (t *Toolbox) setChatTitle(ctx context.Context, args map[string]any) (map[string]any, error) {
	title, _ := args["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	if err := t.titles.SetTitle(ctx, t.chatID, title); err != nil {
		t.logger.WarnContext(ctx, "set chat title failed", "error", err)
		return map[string]any{"status": "error"}, nil
	}
	return map[string]any{"status": "ok"}, nil
}
