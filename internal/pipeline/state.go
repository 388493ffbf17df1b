package pipeline

import (
	"time"

	"github.com/kalambet/debrief/internal/extract"
	"github.com/kalambet/debrief/internal/transcript"
)

// Step names, in execution order.
const (
	StepRead      = "read"
	StepSummarize = "summarize"
	StepEmail     = "email"
	StepExtract   = "extract"
	StepLedger    = "ledger"
	StepPersist   = "persist"
)

// StepOrder is the fixed sequence of pipeline steps.
var StepOrder = []string{StepRead, StepSummarize, StepEmail, StepExtract, StepLedger, StepPersist}

// State is the record threaded through the pipeline. Each step reads what
// earlier steps produced and fills in its own part. A State belongs to
// exactly one run and is never shared.
type State struct {
	RunID string
	File  transcript.File

	Transcript  string
	Summary     string
	ActionItems []string
	Email       string
	Contract    extract.Fields

	SummaryPath string
	EmailPath   string

	StepDurations map[string]time.Duration
	StartedAt     time.Time
}

// Key returns the (client, date) key of the transcript being processed.
func (s *State) Key() transcript.Key {
	return s.File.Key
}

// TotalDuration sums the recorded step durations.
func (s *State) TotalDuration() time.Duration {
	var total time.Duration
	for _, d := range s.StepDurations {
		total += d
	}
	return total
}
