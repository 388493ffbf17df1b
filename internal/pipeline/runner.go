package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/debrief/internal/analytics"
	"github.com/kalambet/debrief/internal/extract"
	"github.com/kalambet/debrief/internal/ledger"
	"github.com/kalambet/debrief/internal/transcript"
)

// TranscriptReader loads the raw text of a transcript file.
type TranscriptReader interface {
	Read(f transcript.File) (string, error)
}

// Summarizer produces the summary and action items for a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcriptText string) (string, []string, error)
}

// EmailDrafter produces the follow-up email.
type EmailDrafter interface {
	Draft(ctx context.Context, key transcript.Key, summary string, actionItems []string) (string, error)
}

// ContractExtractor pulls structured contract fields out of a transcript.
type ContractExtractor interface {
	Extract(ctx context.Context, transcriptText string) (extract.Fields, error)
}

// ContractLedger upserts contract records keyed by (client, date).
type ContractLedger interface {
	Upsert(rec ledger.Record) error
}

// ArtifactStore persists the generated summary and email files.
type ArtifactStore interface {
	WriteSummary(key transcript.Key, summary string, actionItems []string) (string, error)
	WriteEmail(key transcript.Key, email string) (string, error)
}

// AnalyticsLog appends one entry per run.
type AnalyticsLog interface {
	Append(e analytics.Entry) error
}

// RunRecorder stores run history; optional.
type RunRecorder interface {
	RecordRun(id, file, client, date, status, errText string) error
}

// Runner executes the six pipeline steps in fixed order, threading one
// State forward. Runs are single-threaded and synchronous; concurrent runs
// against the same ledger key are last-writer-wins.
type Runner struct {
	reader    TranscriptReader
	summarize Summarizer
	draft     EmailDrafter
	extract   ContractExtractor
	ledger    ContractLedger
	artifacts ArtifactStore
	analytics AnalyticsLog
	recorder  RunRecorder // optional

	chatTimeout time.Duration
	logger      *slog.Logger
}

// Deps bundles the Runner's collaborators.
type Deps struct {
	Reader    TranscriptReader
	Summarize Summarizer
	Draft     EmailDrafter
	Extract   ContractExtractor
	Ledger    ContractLedger
	Artifacts ArtifactStore
	Analytics AnalyticsLog
	Recorder  RunRecorder // optional; nil disables run history
}

// NewRunner creates a Runner. chatTimeout bounds each model call; if <= 0,
// it defaults to 4 minutes.
func NewRunner(deps Deps, chatTimeout time.Duration) *Runner {
	if chatTimeout <= 0 {
		chatTimeout = 4 * time.Minute
	}
	return &Runner{
		reader:      deps.Reader,
		summarize:   deps.Summarize,
		draft:       deps.Draft,
		extract:     deps.Extract,
		ledger:      deps.Ledger,
		artifacts:   deps.Artifacts,
		analytics:   deps.Analytics,
		recorder:    deps.Recorder,
		chatTimeout: chatTimeout,
		logger:      slog.Default(),
	}
}

// step pairs a step name with its body and its failure classifier.
type step struct {
	name     string
	fn       func(ctx context.Context, st *State) error
	classify func(err error) Kind
}

func (r *Runner) steps() []step {
	return []step{
		{
			name: StepRead,
			fn: func(_ context.Context, st *State) error {
				text, err := r.reader.Read(st.File)
				if err != nil {
					return err
				}
				st.Transcript = text
				return nil
			},
			classify: func(err error) Kind {
				if errors.Is(err, transcript.ErrNoTranscripts) || errors.Is(err, os.ErrNotExist) {
					return KindInputNotFound
				}
				return KindPersistence
			},
		},
		{
			name: StepSummarize,
			fn: func(ctx context.Context, st *State) error {
				ctx, cancel := context.WithTimeout(ctx, r.chatTimeout)
				defer cancel()
				summary, items, err := r.summarize.Summarize(ctx, st.Transcript)
				if err != nil {
					return err
				}
				st.Summary = summary
				st.ActionItems = items
				return nil
			},
			classify: func(error) Kind { return KindCollaboratorUnavailable },
		},
		{
			name: StepEmail,
			fn: func(ctx context.Context, st *State) error {
				ctx, cancel := context.WithTimeout(ctx, r.chatTimeout)
				defer cancel()
				email, err := r.draft.Draft(ctx, st.Key(), st.Summary, st.ActionItems)
				if err != nil {
					return err
				}
				st.Email = email
				return nil
			},
			classify: func(error) Kind { return KindCollaboratorUnavailable },
		},
		{
			name: StepExtract,
			fn: func(ctx context.Context, st *State) error {
				ctx, cancel := context.WithTimeout(ctx, r.chatTimeout)
				defer cancel()
				fields, err := r.extract.Extract(ctx, st.Transcript)
				if err != nil {
					return err
				}
				st.Contract = fields
				return nil
			},
			classify: func(err error) Kind {
				if errors.Is(err, extract.ErrMalformed) {
					return KindMalformedExtraction
				}
				return KindCollaboratorUnavailable
			},
		},
		{
			name: StepLedger,
			fn: func(_ context.Context, st *State) error {
				return r.ledger.Upsert(ledger.Record{
					Client:         st.Key().Client,
					Date:           st.Key().DateISO(),
					Budget:         st.Contract.Budget,
					Timeline:       st.Contract.Timeline,
					ScopeItems:     st.Contract.ScopeItems,
					MilestoneDates: st.Contract.MilestoneDates,
					Contacts:       st.Contract.Contacts,
					IngestedAt:     time.Now().UTC(),
				})
			},
			classify: func(error) Kind { return KindPersistence },
		},
		{
			name: StepPersist,
			fn: func(_ context.Context, st *State) error {
				summaryPath, err := r.artifacts.WriteSummary(st.Key(), st.Summary, st.ActionItems)
				if err != nil {
					return err
				}
				st.SummaryPath = summaryPath

				emailPath, err := r.artifacts.WriteEmail(st.Key(), st.Email)
				if err != nil {
					return err
				}
				st.EmailPath = emailPath
				return nil
			},
			classify: func(error) Kind { return KindPersistence },
		},
	}
}

// Run processes one transcript through all six steps. The first failing
// step aborts the rest; exactly one analytics entry is appended either
// way, and an analytics write failure never masks the run's own result.
// Effects committed by earlier runs are not rolled back.
func (r *Runner) Run(ctx context.Context, f transcript.File) (*State, error) {
	st := &State{
		RunID:         uuid.New().String(),
		File:          f,
		StepDurations: make(map[string]time.Duration, len(StepOrder)),
		StartedAt:     time.Now().UTC(),
	}

	var runErr error
	for _, s := range r.steps() {
		start := time.Now()
		err := s.fn(ctx, st)
		st.StepDurations[s.name] = time.Since(start)

		if err != nil {
			runErr = &StepError{Step: s.name, Kind: s.classify(err), Err: err}
			r.logger.Error("pipeline step failed",
				"run_id", st.RunID,
				"step", s.name,
				"kind", string(s.classify(err)),
				"error", err,
			)
			break
		}
		r.logger.Debug("pipeline step done", "run_id", st.RunID, "step", s.name, "duration", st.StepDurations[s.name])
	}

	r.finish(st, runErr)
	if runErr != nil {
		return st, runErr
	}
	return st, nil
}

// finish appends the analytics entry and records run history. Neither may
// alter the run's outcome.
func (r *Runner) finish(st *State, runErr error) {
	entry := analytics.Entry{
		RunID:      st.RunID,
		Timestamp:  st.StartedAt,
		Client:     st.Key().Client,
		Date:       st.Key().DateISO(),
		StepMillis: make(map[string]int64, len(st.StepDurations)),
		TotalMs:    st.TotalDuration().Milliseconds(),
		Success:    runErr == nil,
	}
	for name, d := range st.StepDurations {
		entry.StepMillis[name] = d.Milliseconds()
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	if err := r.analytics.Append(entry); err != nil {
		r.logger.Warn("analytics append failed", "run_id", st.RunID, "error", err)
	}

	if r.recorder != nil {
		status := "completed"
		errText := ""
		if runErr != nil {
			status = "failed"
			errText = runErr.Error()
		}
		if err := r.recorder.RecordRun(st.RunID, st.File.Name, st.Key().Client, st.Key().DateISO(), status, errText); err != nil {
			r.logger.Warn("recording run history failed", "run_id", st.RunID, "error", err)
		}
	}
}
