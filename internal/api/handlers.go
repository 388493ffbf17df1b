// Package api exposes the meeting pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/debrief/internal/analytics"
	"github.com/kalambet/debrief/internal/ledger"
	"github.com/kalambet/debrief/internal/pipeline"
	"github.com/kalambet/debrief/internal/storage"
	"github.com/kalambet/debrief/internal/transcript"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Runner executes the pipeline for one transcript file.
type Runner interface {
	Run(ctx context.Context, f transcript.File) (*pipeline.State, error)
}

// TranscriptSource lists and resolves transcript files.
type TranscriptSource interface {
	List() ([]transcript.File, error)
	Latest() (transcript.File, error)
	ByName(name string) (transcript.File, error)
}

// ContractStore reads the contract ledger.
type ContractStore interface {
	List() ([]ledger.Record, error)
	Get(client, date string) (ledger.Record, error)
}

// AnalyticsReader reads back the analytics log.
type AnalyticsReader interface {
	ReadAll() ([]analytics.Entry, error)
}

// RunStore reads run history.
type RunStore interface {
	ListRuns(limit int) ([]storage.Run, error)
}

// AppDeps bundles everything the HTTP handlers need.
type AppDeps struct {
	Runner      Runner
	Transcripts TranscriptSource
	Contracts   ContractStore
	Analytics   AnalyticsReader
	Runs        RunStore
	Token       string
}

// NewAppHandler builds the HTTP API router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/runs", handleCreateRun(deps))
		r.Get("/runs", handleListRuns(deps))
		r.Get("/transcripts", handleListTranscripts(deps))
		r.Get("/contracts", handleListContracts(deps))
		r.Get("/contracts/{client}/{date}", handleGetContract(deps))
		r.Get("/analytics", handleAnalytics(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RunRequest selects the transcript to process. An empty file means the
// most recent transcript by embedded date.
type RunRequest struct {
	File string `json:"file"`
}

// RunResponse is the outcome of a synchronous pipeline run.
type RunResponse struct {
	RunID       string           `json:"run_id"`
	File        string           `json:"file"`
	Client      string           `json:"client"`
	Date        string           `json:"date"`
	Summary     string           `json:"summary"`
	ActionItems []string         `json:"action_items"`
	Email       string           `json:"email"`
	Contract    contractResponse `json:"contract"`
	SummaryPath string           `json:"summary_path"`
	EmailPath   string           `json:"email_path"`
	TotalMs     int64            `json:"total_ms"`
}

func handleCreateRun(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req RunRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
		}

		var (
			file transcript.File
			err  error
		)
		if req.File == "" {
			file, err = deps.Transcripts.Latest()
		} else {
			file, err = deps.Transcripts.ByName(req.File)
		}
		if errors.Is(err, transcript.ErrNoTranscripts) {
			httpError(w, http.StatusNotFound, "not_found", "no matching transcript: %v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving transcript: %v", err)
			return
		}

		st, err := deps.Runner.Run(r.Context(), file)
		if err != nil {
			httpError(w, statusForRunError(err), "pipeline_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RunResponse{
			RunID:       st.RunID,
			File:        st.File.Name,
			Client:      st.Key().Client,
			Date:        st.Key().DateISO(),
			Summary:     st.Summary,
			ActionItems: st.ActionItems,
			Email:       st.Email,
			Contract: contractResponse{
				ClientName:     st.Contract.ClientName,
				Budget:         st.Contract.Budget,
				Timeline:       st.Contract.Timeline,
				ScopeItems:     st.Contract.ScopeItems,
				MilestoneDates: st.Contract.MilestoneDates,
				Contacts:       st.Contract.Contacts,
			},
			SummaryPath: st.SummaryPath,
			EmailPath:   st.EmailPath,
			TotalMs:     st.TotalDuration().Milliseconds(),
		})
	}
}

// statusForRunError maps pipeline failure kinds to HTTP statuses.
func statusForRunError(err error) int {
	switch pipeline.KindOf(err) {
	case pipeline.KindInputNotFound:
		return http.StatusNotFound
	case pipeline.KindCollaboratorUnavailable:
		return http.StatusBadGateway
	case pipeline.KindMalformedExtraction:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func handleListRuns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		runs, err := deps.Runs.ListRuns(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing runs: %v", err)
			return
		}
		if runs == nil {
			runs = []storage.Run{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(runs)
	}
}

type transcriptResponse struct {
	Name   string `json:"name"`
	Client string `json:"client"`
	Date   string `json:"date"`
}

func handleListTranscripts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := deps.Transcripts.List()
		if err != nil && !errors.Is(err, transcript.ErrNoTranscripts) {
			httpError(w, http.StatusInternalServerError, "api_error", "listing transcripts: %v", err)
			return
		}

		out := make([]transcriptResponse, 0, len(files))
		for _, f := range files {
			out = append(out, transcriptResponse{
				Name:   f.Name,
				Client: f.Key.Client,
				Date:   f.Key.DateISO(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

type contractResponse struct {
	ClientName     string   `json:"client_name"`
	Budget         string   `json:"budget"`
	Timeline       string   `json:"timeline"`
	ScopeItems     []string `json:"scope_items"`
	MilestoneDates []string `json:"milestone_dates"`
	Contacts       []string `json:"contacts"`
}

type ledgerRowResponse struct {
	Client         string   `json:"client"`
	Date           string   `json:"date"`
	Budget         string   `json:"budget"`
	Timeline       string   `json:"timeline"`
	ScopeItems     []string `json:"scope_items"`
	MilestoneDates []string `json:"milestone_dates"`
	Contacts       []string `json:"contacts"`
	IngestedAt     string   `json:"ingested_at"`
}

func ledgerRow(rec ledger.Record) ledgerRowResponse {
	return ledgerRowResponse{
		Client:         rec.Client,
		Date:           rec.Date,
		Budget:         rec.Budget,
		Timeline:       rec.Timeline,
		ScopeItems:     rec.ScopeItems,
		MilestoneDates: rec.MilestoneDates,
		Contacts:       rec.Contacts,
		IngestedAt:     rec.IngestedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func handleListContracts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := deps.Contracts.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing contracts: %v", err)
			return
		}

		out := make([]ledgerRowResponse, 0, len(records))
		for _, rec := range records {
			out = append(out, ledgerRow(rec))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleGetContract(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := chi.URLParam(r, "client")
		date := chi.URLParam(r, "date")

		rec, err := deps.Contracts.Get(client, date)
		if errors.Is(err, ledger.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no contract for %s on %s", client, date)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading contract: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ledgerRow(rec))
	}
}

func handleAnalytics(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Analytics.ReadAll()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading analytics: %v", err)
			return
		}
		if entries == nil {
			entries = []analytics.Entry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
