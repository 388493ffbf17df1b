package outputs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalambet/debrief/internal/transcript"
)

// Store writes the generated artifacts (summary and follow-up email) into
// the output directory. Files are keyed by client and date and simply
// overwritten on re-runs.
type Store struct {
	dir string
}

// NewStore creates a Store over the given output directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// WriteSummary persists the summary text, with the action items appended
// under an "Action Items:" section when present. Returns the written path.
func (s *Store) WriteSummary(key transcript.Key, summary string, actionItems []string) (string, error) {
	var sb strings.Builder
	sb.WriteString(summary)
	if len(actionItems) > 0 {
		sb.WriteString("\n\nAction Items:\n")
		for _, item := range actionItems {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
	}
	return s.write(key.Slug()+"_summary.txt", sb.String())
}

// WriteEmail persists the follow-up email text. Returns the written path.
func (s *Store) WriteEmail(key transcript.Key, email string) (string, error) {
	return s.write(key.Slug()+"_email.txt", email)
}

func (s *Store) write(name, content string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}
