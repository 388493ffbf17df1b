package summarizer

import (
	"fmt"

	"github.com/kalambet/debrief/internal/ollama"
)

const systemPrompt = `You are an expert meeting assistant. Summarize the meeting transcript into a concise summary followed by a list of actionable items.

Rules:
- Start with the summary as plain prose.
- Then write a section that begins with the exact line "Action Items:".
- List each action item on its own line, prefixed with "- ".
- If the meeting produced no action items, omit the section entirely.`

// BuildPrompt constructs the Ollama chat messages for summarization.
func BuildPrompt(transcriptText string) []ollama.Message {
	return []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Here is the meeting transcript:\n\n%s\n\nPlease provide the summary and action items.", transcriptText)},
	}
}
