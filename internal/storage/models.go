package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one pipeline execution over a transcript file.
type Run struct {
	ID        string
	File      string // transcript file name, e.g. "Acme_20250503.txt"
	Client    string
	Date      string // YYYY-MM-DD
	Status    string // "completed" or "failed"
	Error     string
	CreatedAt time.Time
}
