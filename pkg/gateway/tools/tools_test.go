package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/coco-ai/coco-gateway/pkg/gateway/identity"
	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

type fakeSubmitter struct {
	ownerID   identity.UserID
	chatID    string
	messageID string
	prompt    string
	jobID     string
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, ownerID identity.UserID, chatID, messageID, prompt string) (string, error) {
	f.ownerID = ownerID
	f.chatID = chatID
	f.messageID = messageID
	f.prompt = prompt
	return f.jobID, f.err
}

type fakeTitler struct {
	chatID string
	title  string
	err    error
}

func (f *fakeTitler) SetTitle(ctx context.Context, chatID, title string) error {
	f.chatID = chatID
	f.title = title
	return f.err
}

func newTestToolbox(t *testing.T, images *fakeSubmitter, titles *fakeTitler) *Toolbox {
	t.Helper()
	tb, err := New("user_1", "chat_1", Dependencies{Images: images, Titles: titles})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tb
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New("u", "c", Dependencies{Titles: &fakeTitler{}}); err == nil {
		t.Fatalf("expected error for missing image submitter")
	}
	if _, err := New("u", "c", Dependencies{Images: &fakeSubmitter{}}); err == nil {
		t.Fatalf("expected error for missing titler")
	}
}

func TestDeclarations_CoverAllTools(t *testing.T) {
	tb := newTestToolbox(t, &fakeSubmitter{}, &fakeTitler{})

	names := make(map[string]bool)
	for _, d := range tb.Declarations() {
		names[d.Name] = true
	}
	for _, want := range []string{ToolGenerateImage, ToolSetChatTitle, ToolEndSession} {
		if !names[want] {
			t.Fatalf("missing declaration %q", want)
		}
	}
}

func TestInvoke_GenerateImageBindsConnectionIdentity(t *testing.T) {
	images := &fakeSubmitter{jobID: "job_42"}
	tb := newTestToolbox(t, images, &fakeTitler{})

	result, err := tb.Invoke(context.Background(), runtime.ToolCall{
		Name: ToolGenerateImage,
		Args: map[string]any{"prompt": "a friendly lion cub"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result["jobId"] != "job_42" || result["status"] != "processing" {
		t.Fatalf("result=%v", result)
	}
	if images.ownerID != "user_1" || images.chatID != "chat_1" {
		t.Fatalf("submitter got owner=%q chat=%q", images.ownerID, images.chatID)
	}
	if images.prompt != "a friendly lion cub" {
		t.Fatalf("prompt=%q", images.prompt)
	}
	if images.messageID != "" {
		t.Fatalf("toolbox must leave message id minting to the submitter, got %q", images.messageID)
	}
}

func TestInvoke_GenerateImageRequiresPrompt(t *testing.T) {
	tb := newTestToolbox(t, &fakeSubmitter{}, &fakeTitler{})

	if _, err := tb.Invoke(context.Background(), runtime.ToolCall{Name: ToolGenerateImage, Args: map[string]any{}}); err == nil {
		t.Fatalf("expected error for missing prompt")
	}
}

func TestInvoke_GenerateImagePropagatesSubmitError(t *testing.T) {
	tb := newTestToolbox(t, &fakeSubmitter{err: fmt.Errorf("store down")}, &fakeTitler{})

	if _, err := tb.Invoke(context.Background(), runtime.ToolCall{
		Name: ToolGenerateImage,
		Args: map[string]any{"prompt": "x"},
	}); err == nil {
		t.Fatalf("expected submit error to propagate")
	}
}

func TestInvoke_SetChatTitle(t *testing.T) {
	titles := &fakeTitler{}
	tb := newTestToolbox(t, &fakeSubmitter{}, titles)

	result, err := tb.Invoke(context.Background(), runtime.ToolCall{
		Name: ToolSetChatTitle,
		Args: map[string]any{"title": "dinosaur talk"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result["status"] != "ok" {
		t.Fatalf("result=%v", result)
	}
	if titles.chatID != "chat_1" || titles.title != "dinosaur talk" {
		t.Fatalf("titler got chat=%q title=%q", titles.chatID, titles.title)
	}
}

func TestInvoke_SetChatTitleAbsorbsStorageFailure(t *testing.T) {
	tb := newTestToolbox(t, &fakeSubmitter{}, &fakeTitler{err: fmt.Errorf("write failed")})

	result, err := tb.Invoke(context.Background(), runtime.ToolCall{
		Name: ToolSetChatTitle,
		Args: map[string]any{"title": "t"},
	})
	if err != nil {
		t.Fatalf("storage failure must not fail the tool call: %v", err)
	}
	if result["status"] != "error" {
		t.Fatalf("result=%v", result)
	}
}

func TestInvoke_EndSessionSignalsShutdown(t *testing.T) {
	tb := newTestToolbox(t, &fakeSubmitter{}, &fakeTitler{})

	_, err := tb.Invoke(context.Background(), runtime.ToolCall{Name: ToolEndSession})
	if !errors.Is(err, runtime.ErrEndSession) {
		t.Fatalf("err=%v, want ErrEndSession", err)
	}
}

func TestInvoke_UnknownToolFails(t *testing.T) {
	tb := newTestToolbox(t, &fakeSubmitter{}, &fakeTitler{})

	if _, err := tb.Invoke(context.Background(), runtime.ToolCall{Name: "delete_everything"}); err == nil {
		t.Fatalf("expected error for unknown tool")
	}
}
