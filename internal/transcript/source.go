package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoTranscripts is returned when the transcripts directory holds no
// recognizable transcript files.
var ErrNoTranscripts = errors.New("no transcript files found")

// Key identifies one meeting: the client name and the meeting date, both
// taken from the transcript filename.
type Key struct {
	Client string
	Date   time.Time
}

// DateISO returns the meeting date as YYYY-MM-DD, the form used in the
// contract ledger and API paths.
func (k Key) DateISO() string {
	return k.Date.Format("2006-01-02")
}

// Slug returns the {Client}_{YYYYMMDD} base used for output filenames.
func (k Key) Slug() string {
	return k.Client + "_" + k.Date.Format("20060102")
}

// File is a single transcript file found in the source directory.
type File struct {
	Key  Key
	Name string // base filename
	Path string
}

// Source reads meeting transcripts from a directory. Filenames follow the
// {ClientName}_{YYYYMMDD}.txt convention; .pdf transcripts are accepted too.
type Source struct {
	dir string
}

// NewSource creates a Source over the given directory.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the directory this source reads from.
func (s *Source) Dir() string {
	return s.dir
}

// List returns all transcript files in the directory, sorted by meeting
// date ascending (ties broken by filename). Files that don't match the
// naming convention are skipped. Returns ErrNoTranscripts when nothing
// matches.
func (s *Source) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoTranscripts
		}
		return nil, fmt.Errorf("reading transcripts directory: %w", err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := ParseName(e.Name())
		if !ok {
			continue
		}
		files = append(files, File{
			Key:  key,
			Name: e.Name(),
			Path: filepath.Join(s.dir, e.Name()),
		})
	}

	if len(files) == 0 {
		return nil, ErrNoTranscripts
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].Key.Date.Equal(files[j].Key.Date) {
			return files[i].Key.Date.Before(files[j].Key.Date)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Latest returns the transcript with the most recent embedded date.
func (s *Source) Latest() (File, error) {
	files, err := s.List()
	if err != nil {
		return File{}, err
	}
	return files[len(files)-1], nil
}

// ByName finds a transcript by its base filename.
func (s *Source) ByName(name string) (File, error) {
	files, err := s.List()
	if err != nil {
		return File{}, err
	}
	for _, f := range files {
		if f.Name == name {
			return f, nil
		}
	}
	return File{}, fmt.Errorf("transcript %q: %w", name, ErrNoTranscripts)
}

// Read loads the transcript text. Plain text files are read as-is; PDF
// files go through text extraction.
func (s *Source) Read(f File) (string, error) {
	if strings.EqualFold(filepath.Ext(f.Name), ".pdf") {
		return readPDF(f.Path)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("reading transcript %s: %w", f.Name, err)
	}
	return string(data), nil
}

// ParseName extracts the meeting key from a {ClientName}_{YYYYMMDD}.txt
// (or .pdf) filename. Client names may themselves contain underscores; the
// date is always the segment after the last one.
func ParseName(name string) (Key, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".txt" && ext != ".pdf" {
		return Key{}, false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	idx := strings.LastIndex(stem, "_")
	if idx <= 0 || idx == len(stem)-1 {
		return Key{}, false
	}

	client := stem[:idx]
	date, err := time.Parse("20060102", stem[idx+1:])
	if err != nil {
		return Key{}, false
	}

	return Key{Client: client, Date: date}, true
}
