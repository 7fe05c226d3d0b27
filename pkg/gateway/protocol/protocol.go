// Package protocol defines the client-facing wire format of the live
// WebSocket: runtime events serialized as JSON with absent fields omitted,
// plus the one control message that signals session end.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/coco-ai/coco-gateway/pkg/gateway/runtime"
)

// EndSessionMessage is the terminal control frame. It is the only message
// with a type discriminator; everything else is a serialized event.
var EndSessionMessage = []byte(`{"type":"end_session"}`)

type wireBlob struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

type wirePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *wireBlob `json:"inlineData,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts,omitempty"`
}

type wireTranscription struct {
	Text     string `json:"text,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

type wireEvent struct {
	Content             *wireContent       `json:"content,omitempty"`
	InputTranscription  *wireTranscription `json:"inputTranscription,omitempty"`
	OutputTranscription *wireTranscription `json:"outputTranscription,omitempty"`
	TurnComplete        bool               `json:"turnComplete,omitempty"`
	Interrupted         bool               `json:"interrupted,omitempty"`
}

// MarshalEvent serializes one runtime event for the client.
func MarshalEvent(event runtime.Event) ([]byte, error) {
	out := wireEvent{
		TurnComplete: event.TurnComplete,
		Interrupted:  event.Interrupted,
	}
	if event.Content != nil {
		content := &wireContent{Role: event.Content.Role}
		for _, part := range event.Content.Parts {
			p := wirePart{Text: part.Text}
			if part.InlineData != nil {
				p.InlineData = &wireBlob{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}
			}
			content.Parts = append(content.Parts, p)
		}
		out.Content = content
	}
	if event.InputTranscription != nil {
		out.InputTranscription = &wireTranscription{
			Text:     event.InputTranscription.Text,
			Finished: event.InputTranscription.Finished,
		}
	}
	if event.OutputTranscription != nil {
		out.OutputTranscription = &wireTranscription{
			Text:     event.OutputTranscription.Text,
			Finished: event.OutputTranscription.Finished,
		}
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}
