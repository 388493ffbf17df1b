package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when no record exists for a requested key.
var ErrNotFound = errors.New("contract record not found")

// header is the fixed column set of the contract ledger CSV. Existing
// files with a different header are rejected rather than silently rewritten.
var header = []string{
	"client",
	"date",
	"budget",
	"timeline",
	"scope_items",
	"milestone_dates",
	"contacts",
	"ingested_at",
}

// listSep joins multi-value fields inside a single CSV cell.
const listSep = "; "

// Record is one contract ledger row: the fields extracted from one
// meeting, keyed by (Client, Date). Date is YYYY-MM-DD.
type Record struct {
	Client         string
	Date           string
	Budget         string
	Timeline       string
	ScopeItems     []string
	MilestoneDates []string
	Contacts       []string
	IngestedAt     time.Time
}

// Store is the contract ledger backed by a single CSV file. All reads load
// the full table; Upsert rewrites it atomically via a temp file rename.
// Concurrent writers are last-writer-wins.
type Store struct {
	path string
}

// NewStore creates a Store over the CSV file at path. The file is created
// on first Upsert.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file path.
func (s *Store) Path() string {
	return s.path
}

// List returns all records in file order.
func (s *Store) List() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()
	return readAll(f)
}

// Get returns the record for (client, date), or ErrNotFound.
func (s *Store) Get(client, date string) (Record, error) {
	records, err := s.List()
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.Client == client && r.Date == date {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Upsert inserts rec, replacing any existing row with the same
// (Client, Date) key in place. All other rows keep their position and
// content. IngestedAt records the first ingestion, so re-processing the
// same transcript leaves the row unchanged. The rewrite goes through a
// temp file in the same directory so a crash never leaves a half-written
// ledger.
func (s *Store) Upsert(rec Record) error {
	records, err := s.List()
	if err != nil {
		return err
	}

	replaced := false
	for i, r := range records {
		if r.Client == rec.Client && r.Date == rec.Date {
			rec.IngestedAt = r.IngestedAt
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	return s.writeAll(records)
}

func (s *Store) writeAll(records []Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".contracts-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r.row()); err != nil {
			tmp.Close()
			return fmt.Errorf("writing ledger row for %s/%s: %w", r.Client, r.Date, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func (r Record) row() []string {
	return []string{
		r.Client,
		r.Date,
		r.Budget,
		r.Timeline,
		strings.Join(r.ScopeItems, listSep),
		strings.Join(r.MilestoneDates, listSep),
		strings.Join(r.Contacts, listSep),
		r.IngestedAt.UTC().Format(time.RFC3339),
	}
}

func readAll(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	// Width is validated by hand below so a wrong-width header reports a
	// mismatch instead of csv.ErrFieldCount.
	cr.FieldsPerRecord = -1

	got, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger header: %w", err)
	}
	if len(got) != len(header) {
		return nil, fmt.Errorf("ledger header mismatch: %d columns, want %d", len(got), len(header))
	}
	for i, col := range header {
		if !strings.EqualFold(strings.TrimSpace(got[i]), col) {
			return nil, fmt.Errorf("ledger header mismatch: column %d is %q, want %q", i, got[i], col)
		}
	}
	cr.FieldsPerRecord = len(header)

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ledger row: %w", err)
		}

		rec := Record{
			Client:         row[0],
			Date:           row[1],
			Budget:         row[2],
			Timeline:       row[3],
			ScopeItems:     splitList(row[4]),
			MilestoneDates: splitList(row[5]),
			Contacts:       splitList(row[6]),
		}
		if t, err := time.Parse(time.RFC3339, row[7]); err == nil {
			rec.IngestedAt = t
		}
		records = append(records, rec)
	}
	return records, nil
}

func splitList(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, listSep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
