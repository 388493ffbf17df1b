package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/debrief/internal/ollama"
)

// Chatter is the interface for chat completion via Ollama.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Summarizer turns a raw meeting transcript into a concise summary plus an
// ordered list of action items, using a single prompt to the local model.
type Summarizer struct {
	client Chatter
	model  string
}

// New creates a Summarizer using the given Ollama client and model name.
func New(client Chatter, model string) *Summarizer {
	return &Summarizer{client: client, model: model}
}

// Summarize sends the transcript to the model and splits the response on
// the "Action Items:" marker. The model output is otherwise treated as
// opaque text. An empty response is an error; the caller decides whether
// that aborts the run.
func (s *Summarizer) Summarize(ctx context.Context, transcriptText string) (string, []string, error) {
	raw, err := s.client.Chat(ctx, s.model, BuildPrompt(transcriptText), nil)
	if err != nil {
		return "", nil, fmt.Errorf("summarize chat: %w", err)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil, fmt.Errorf("summarize: empty model response")
	}

	summary, items := splitActionItems(raw)
	return summary, items, nil
}

// splitActionItems separates the summary body from the trailing
// "Action Items:" section. Without the marker the whole text is the summary.
func splitActionItems(raw string) (string, []string) {
	before, after, found := strings.Cut(raw, "Action Items:")
	summary := strings.TrimSpace(before)
	if !found {
		return summary, nil
	}

	var items []string
	for _, line := range strings.Split(after, "\n") {
		item := strings.TrimSpace(line)
		item = strings.TrimLeft(item, "-*• \t")
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return summary, items
}
