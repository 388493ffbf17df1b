package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/debrief/internal/analytics"
	"github.com/kalambet/debrief/internal/extract"
	"github.com/kalambet/debrief/internal/ledger"
	"github.com/kalambet/debrief/internal/pipeline"
	"github.com/kalambet/debrief/internal/storage"
	"github.com/kalambet/debrief/internal/transcript"
)

// --- mocks ---

type mockRunner struct {
	state *pipeline.State
	err   error
	got   transcript.File
}

func (m *mockRunner) Run(_ context.Context, f transcript.File) (*pipeline.State, error) {
	m.got = f
	return m.state, m.err
}

type mockSource struct {
	files []transcript.File
}

func (m *mockSource) List() ([]transcript.File, error) {
	if len(m.files) == 0 {
		return nil, transcript.ErrNoTranscripts
	}
	return m.files, nil
}

func (m *mockSource) Latest() (transcript.File, error) {
	if len(m.files) == 0 {
		return transcript.File{}, transcript.ErrNoTranscripts
	}
	return m.files[len(m.files)-1], nil
}

func (m *mockSource) ByName(name string) (transcript.File, error) {
	for _, f := range m.files {
		if f.Name == name {
			return f, nil
		}
	}
	return transcript.File{}, fmt.Errorf("transcript %q: %w", name, transcript.ErrNoTranscripts)
}

type mockContracts struct {
	records []ledger.Record
}

func (m *mockContracts) List() ([]ledger.Record, error) { return m.records, nil }

func (m *mockContracts) Get(client, date string) (ledger.Record, error) {
	for _, r := range m.records {
		if r.Client == client && r.Date == date {
			return r, nil
		}
	}
	return ledger.Record{}, ledger.ErrNotFound
}

type mockAnalytics struct {
	entries []analytics.Entry
}

func (m *mockAnalytics) ReadAll() ([]analytics.Entry, error) { return m.entries, nil }

type mockRuns struct {
	runs []storage.Run
}

func (m *mockRuns) ListRuns(limit int) ([]storage.Run, error) {
	if limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

// --- helpers ---

func acmeTranscript() transcript.File {
	key := transcript.Key{Client: "Acme", Date: time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)}
	return transcript.File{Key: key, Name: "Acme_20250503.txt", Path: "/minutes/Acme_20250503.txt"}
}

func successState(f transcript.File) *pipeline.State {
	return &pipeline.State{
		RunID:       "run-1",
		File:        f,
		Summary:     "Rollout agreed.",
		ActionItems: []string{"send SOW"},
		Email:       "Hi Dana",
		Contract:    extract.Fields{ClientName: "Acme", Budget: "$75,000"},
		SummaryPath: "/out/Acme_20250503_summary.txt",
		EmailPath:   "/out/Acme_20250503_email.txt",
	}
}

func newTestDeps() AppDeps {
	f := acmeTranscript()
	return AppDeps{
		Runner:      &mockRunner{state: successState(f)},
		Transcripts: &mockSource{files: []transcript.File{f}},
		Contracts:   &mockContracts{},
		Analytics:   &mockAnalytics{},
		Runs:        &mockRuns{},
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHealth_NoAuthRequired(t *testing.T) {
	deps := newTestDeps()
	deps.Token = "secret"
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestAuth_RejectsBadToken(t *testing.T) {
	deps := newTestDeps()
	deps.Token = "secret"
	h := NewAppHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/contracts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_DisabledWhenTokenEmpty(t *testing.T) {
	h := NewAppHandler(newTestDeps())

	rec := doRequest(t, h, http.MethodGet, "/contracts", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestCreateRun_LatestByDefault(t *testing.T) {
	deps := newTestDeps()
	runner := deps.Runner.(*mockRunner)
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if runner.got.Name != "Acme_20250503.txt" {
		t.Errorf("runner got %q, want latest transcript", runner.got.Name)
	}

	var resp RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RunID != "run-1" || resp.Client != "Acme" || resp.Date != "2025-05-03" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Contract.Budget != "$75,000" {
		t.Errorf("contract budget = %q", resp.Contract.Budget)
	}
}

func TestCreateRun_ByName(t *testing.T) {
	deps := newTestDeps()
	runner := deps.Runner.(*mockRunner)
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/runs", `{"file":"Acme_20250503.txt"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if runner.got.Name != "Acme_20250503.txt" {
		t.Errorf("runner got %q", runner.got.Name)
	}
}

func TestCreateRun_UnknownTranscript(t *testing.T) {
	h := NewAppHandler(newTestDeps())

	rec := doRequest(t, h, http.MethodPost, "/runs", `{"file":"Globex_20250101.txt"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateRun_PipelineErrorStatuses(t *testing.T) {
	cases := []struct {
		kind pipeline.Kind
		want int
	}{
		{pipeline.KindInputNotFound, http.StatusNotFound},
		{pipeline.KindCollaboratorUnavailable, http.StatusBadGateway},
		{pipeline.KindMalformedExtraction, http.StatusUnprocessableEntity},
		{pipeline.KindPersistence, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		deps := newTestDeps()
		deps.Runner = &mockRunner{err: &pipeline.StepError{Step: "summarize", Kind: tc.kind, Err: fmt.Errorf("boom")}}
		h := NewAppHandler(deps)

		rec := doRequest(t, h, http.MethodPost, "/runs", "")
		if rec.Code != tc.want {
			t.Errorf("kind %s: status = %d, want %d", tc.kind, rec.Code, tc.want)
		}
	}
}

func TestListTranscripts(t *testing.T) {
	h := NewAppHandler(newTestDeps())

	rec := doRequest(t, h, http.MethodGet, "/transcripts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var out []transcriptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Client != "Acme" || out[0].Date != "2025-05-03" {
		t.Errorf("transcripts = %+v", out)
	}
}

func TestListTranscripts_EmptyDirIsEmptyList(t *testing.T) {
	deps := newTestDeps()
	deps.Transcripts = &mockSource{}
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/transcripts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestGetContract(t *testing.T) {
	deps := newTestDeps()
	deps.Contracts = &mockContracts{records: []ledger.Record{{
		Client: "Acme", Date: "2025-05-03", Budget: "$75,000",
		IngestedAt: time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC),
	}}}
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/contracts/Acme/2025-05-03", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var row ledgerRowResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
		t.Fatal(err)
	}
	if row.Budget != "$75,000" {
		t.Errorf("budget = %q", row.Budget)
	}

	rec = doRequest(t, h, http.MethodGet, "/contracts/Acme/1999-01-01", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing contract status = %d, want 404", rec.Code)
	}
}

func TestListRuns_Limit(t *testing.T) {
	deps := newTestDeps()
	deps.Runs = &mockRuns{runs: []storage.Run{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}}
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/runs?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []storage.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("got %d runs, want 2", len(out))
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	deps := newTestDeps()
	deps.Analytics = &mockAnalytics{entries: []analytics.Entry{{
		RunID: "run-1", Client: "Acme", Date: "2025-05-03", Success: true,
	}}}
	h := NewAppHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/analytics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []analytics.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].RunID != "run-1" {
		t.Errorf("entries = %+v", out)
	}
}
