package drafter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/debrief/internal/ollama"
	"github.com/kalambet/debrief/internal/transcript"
)

type mockChatter struct {
	response string
	err      error
	gotMsgs  []ollama.Message
}

func (m *mockChatter) Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error) {
	m.gotMsgs = messages
	return m.response, m.err
}

func acmeKey() transcript.Key {
	return transcript.Key{Client: "Acme", Date: time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)}
}

func TestDraft_TrimsResponse(t *testing.T) {
	mock := &mockChatter{response: "\n\nHi Dana,\n\nThanks for the call.\n\n"}
	d := New(mock, "gemma3:27b")

	email, err := d.Draft(context.Background(), acmeKey(), "summary", nil)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if email != "Hi Dana,\n\nThanks for the call." {
		t.Errorf("email = %q, want trimmed text", email)
	}
}

func TestDraft_PromptCarriesContext(t *testing.T) {
	mock := &mockChatter{response: "email body"}
	d := New(mock, "gemma3:27b")

	_, err := d.Draft(context.Background(), acmeKey(), "agreed on budget", []string{"send proposal"})
	if err != nil {
		t.Fatal(err)
	}

	user := mock.gotMsgs[len(mock.gotMsgs)-1].Content
	for _, want := range []string{"Acme", "2025-05-03", "agreed on budget", "- send proposal"} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q:\n%s", want, user)
		}
	}
}

func TestDraft_EmptyResponseFails(t *testing.T) {
	mock := &mockChatter{response: "  "}
	d := New(mock, "gemma3:27b")

	if _, err := d.Draft(context.Background(), acmeKey(), "summary", nil); err == nil {
		t.Error("Draft returned nil error for empty response")
	}
}

func TestDraft_ChatErrorPropagates(t *testing.T) {
	mock := &mockChatter{err: fmt.Errorf("timeout")}
	d := New(mock, "gemma3:27b")

	if _, err := d.Draft(context.Background(), acmeKey(), "summary", nil); err == nil {
		t.Error("Draft returned nil error for chat failure")
	}
}
