package extract

import (
	"fmt"

	"github.com/kalambet/debrief/internal/ollama"
)

const systemPrompt = `You are an expert at extracting contract information from meeting transcripts. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Fields:
- client_name: the name of the client or company (always present in a real meeting)
- budget: the budget amount exactly as stated, e.g. "$75,000"
- timeline: the project timeline or deadline, e.g. "3 months"
- scope_items: the individual pieces of work discussed
- milestone_dates: milestone or delivery dates that were mentioned
- contacts: people named as points of contact

Rules:
- Quote amounts and dates exactly as the transcript states them.
- Use an empty string or empty array for anything not mentioned; never invent values.`

// BuildPrompt constructs the Ollama chat messages for contract extraction.
func BuildPrompt(transcriptText string) []ollama.Message {
	return []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Here is the meeting transcript:\n\n%s", transcriptText)},
	}
}
