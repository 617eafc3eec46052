package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches journal file names.
const DefaultPattern = "Journal.*.log"

// AutoCommander disables the commander filter.
const AutoCommander = "Auto"

// ErrNoJournal is returned when no file in the directory matches.
var ErrNoJournal = errors.New("no journal file found")

// Locator finds the most recently modified journal file.
type Locator struct {
	Dir       string
	Pattern   string // doublestar pattern relative to Dir
	Commander string // case-insensitive file name substring; "" or AutoCommander matches all
}

// Candidate is a journal file with its modification time and size.
type Candidate struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Latest returns the newest matching file. Ties on modification time are
// broken by the lexically greater name since journal names carry a timestamp.
func (l Locator) Latest() (Candidate, error) {
	all, err := l.Candidates()
	if err != nil {
		return Candidate{}, err
	}
	if len(all) == 0 {
		return Candidate{}, ErrNoJournal
	}

	best := all[0]
	for _, c := range all[1:] {
		if c.ModTime.After(best.ModTime) ||
			(c.ModTime.Equal(best.ModTime) && filepath.Base(c.Path) > filepath.Base(best.Path)) {
			best = c
		}
	}
	return best, nil
}

// Candidates lists every matching regular file. A missing directory yields
// ErrNoJournal so that callers keep waiting for it to appear.
func (l Locator) Candidates() ([]Candidate, error) {
	pattern := l.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}

	matches, err := doublestar.Glob(os.DirFS(l.Dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoJournal
		}
		return nil, fmt.Errorf("glob %s in %s: %w", pattern, l.Dir, err)
	}
	if len(matches) == 0 {
		if _, statErr := os.Stat(l.Dir); statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("journal dir: %w", statErr)
		}
	}

	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		if !l.matchesCommander(m) {
			continue
		}
		path := filepath.Join(l.Dir, filepath.FromSlash(m))
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // removed between glob and stat
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		out = append(out, Candidate{Path: path, ModTime: info.ModTime(), Size: info.Size()})
	}
	return out, nil
}

func (l Locator) matchesCommander(name string) bool {
	c := strings.TrimSpace(l.Commander)
	if c == "" || strings.EqualFold(c, AutoCommander) {
		return true
	}
	return strings.Contains(strings.ToLower(filepath.Base(name)), strings.ToLower(c))
}
