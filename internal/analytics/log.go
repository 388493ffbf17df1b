package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// stepColumns fixes the order of per-step duration columns. It mirrors the
// pipeline step order; unknown steps in an Entry are ignored on write.
var stepColumns = []string{"read", "summarize", "email", "extract", "ledger", "persist"}

func header() []string {
	cols := []string{"run_id", "timestamp", "client", "date"}
	for _, s := range stepColumns {
		cols = append(cols, s+"_ms")
	}
	return append(cols, "total_ms", "success", "error")
}

// Entry is one analytics row: timing and outcome for a single pipeline run.
// Entries are append-only and never mutated.
type Entry struct {
	RunID      string
	Timestamp  time.Time
	Client     string
	Date       string
	StepMillis map[string]int64
	TotalMs    int64
	Success    bool
	Error      string
}

// Log is the append-only analytics CSV. Each Append opens the file in
// append mode, writing the header only when creating it, so prior rows are
// never touched.
type Log struct {
	path string
}

// NewLog creates a Log writing to the CSV file at path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the analytics file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one entry. Exactly one row is added per call.
func (l *Log) Append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating analytics directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening analytics log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat analytics log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header()); err != nil {
			return fmt.Errorf("writing analytics header: %w", err)
		}
	}

	row := []string{
		e.RunID,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Client,
		e.Date,
	}
	for _, s := range stepColumns {
		row = append(row, strconv.FormatInt(e.StepMillis[s], 10))
	}
	row = append(row,
		strconv.FormatInt(e.TotalMs, 10),
		strconv.FormatBool(e.Success),
		e.Error,
	)

	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing analytics row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ReadAll returns every entry in the log, oldest first.
func (l *Log) ReadAll() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening analytics log: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(header())

	if _, err := cr.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading analytics header: %w", err)
	}

	var entries []Entry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading analytics row: %w", err)
		}

		e := Entry{
			RunID:      row[0],
			Client:     row[2],
			Date:       row[3],
			StepMillis: make(map[string]int64, len(stepColumns)),
			Error:      row[len(row)-1],
		}
		if t, err := time.Parse(time.RFC3339, row[1]); err == nil {
			e.Timestamp = t
		}
		for i, s := range stepColumns {
			e.StepMillis[s], _ = strconv.ParseInt(row[4+i], 10, 64)
		}
		e.TotalMs, _ = strconv.ParseInt(row[4+len(stepColumns)], 10, 64)
		e.Success, _ = strconv.ParseBool(row[5+len(stepColumns)])
		entries = append(entries, e)
	}
	return entries, nil
}
