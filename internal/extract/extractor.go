package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/debrief/internal/ollama"
)

// ErrMalformed marks extraction output that cannot be used: unparseable
// JSON or a missing required field. Optional fields may be empty without
// tripping it.
var ErrMalformed = errors.New("malformed extraction")

// Chatter is the interface for chat completion via Ollama.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// Fields holds the structured contract data extracted from a transcript.
// Only ClientName is required; everything else may legitimately be absent
// from the meeting.
type Fields struct {
	ClientName     string   `json:"client_name"`
	Budget         string   `json:"budget"`
	Timeline       string   `json:"timeline"`
	ScopeItems     []string `json:"scope_items"`
	MilestoneDates []string `json:"milestone_dates"`
	Contacts       []string `json:"contacts"`
}

// Extractor uses the local LLM's structured output mode to pull contract
// fields out of a transcript against a fixed schema.
type Extractor struct {
	client Chatter
	model  string
}

// New creates an Extractor using the given Ollama client and model name.
func New(client Chatter, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// Extract requests the contract fields for the transcript. A chat failure
// is returned as-is (the collaborator is down or timed out); a response
// that isn't valid JSON or lacks the client name wraps ErrMalformed.
func (e *Extractor) Extract(ctx context.Context, transcriptText string) (Fields, error) {
	raw, err := e.client.Chat(ctx, e.model, BuildPrompt(transcriptText), contractSchema())
	if err != nil {
		return Fields{}, fmt.Errorf("extraction chat: %w", err)
	}

	var fields Fields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Fields{}, fmt.Errorf("%w: parsing model output: %v", ErrMalformed, err)
	}

	fields.ClientName = strings.TrimSpace(fields.ClientName)
	if fields.ClientName == "" {
		return Fields{}, fmt.Errorf("%w: client name missing from model output", ErrMalformed)
	}

	return fields, nil
}

// contractSchema returns the Ollama JSON schema for structured contract output.
func contractSchema() *ollama.Schema {
	str := ollama.SchemaProperty{Type: "string"}
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"client_name":     {Type: "string", Description: "The name of the client or company"},
			"budget":          {Type: "string", Description: "The budget amount mentioned, if any"},
			"timeline":        {Type: "string", Description: "The project timeline or deadline"},
			"scope_items":     {Type: "array", Description: "Items that make up the project scope", Items: &str},
			"milestone_dates": {Type: "array", Description: "Milestone or deadline dates mentioned", Items: &str},
			"contacts":        {Type: "array", Description: "Points of contact on the client side", Items: &str},
		},
		Required: []string{"client_name"},
	}
}
