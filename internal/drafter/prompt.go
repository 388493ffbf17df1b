package drafter

import (
	"fmt"
	"strings"

	"github.com/kalambet/debrief/internal/ollama"
	"github.com/kalambet/debrief/internal/transcript"
)

const systemPrompt = `You are an expert at writing professional follow-up emails. Write a concise and professional follow-up email summarizing the key points and next steps. Output only the email text.`

// BuildPrompt constructs the Ollama chat messages for email drafting.
func BuildPrompt(key transcript.Key, summary string, actionItems []string) []ollama.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Meeting with: %s\nDate: %s\n\nSummary:\n%s\n", key.Client, key.DateISO(), summary)

	if len(actionItems) > 0 {
		sb.WriteString("\nAction Items:\n")
		for _, item := range actionItems {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
	}

	return []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}
