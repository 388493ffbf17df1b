package drafter

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/debrief/internal/ollama"
	"github.com/kalambet/debrief/internal/transcript"
)

// Chatter is the interface for chat completion via Ollama.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Drafter writes a professional follow-up email from the meeting summary
// and action items.
type Drafter struct {
	client Chatter
	model  string
}

// New creates a Drafter using the given Ollama client and model name.
func New(client Chatter, model string) *Drafter {
	return &Drafter{client: client, model: model}
}

// Draft sends one prompt built from the meeting key, summary, and action
// items, and returns the trimmed email text. The model output is opaque;
// no parsing happens here. An empty response is an error.
func (d *Drafter) Draft(ctx context.Context, key transcript.Key, summary string, actionItems []string) (string, error) {
	raw, err := d.client.Chat(ctx, d.model, BuildPrompt(key, summary, actionItems), nil)
	if err != nil {
		return "", fmt.Errorf("email chat: %w", err)
	}

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("email: empty model response")
	}
	return email, nil
}
