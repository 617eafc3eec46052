// Package jsonfile persists the route as a single JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/geo"
	"github.com/colonyops/waypoint/internal/core/route"
)

// FormatVersion is written into every document.
const FormatVersion = 1

// RouteFile is the root JSON structure stored on disk.
type RouteFile struct {
	Version int         `json:"version"`
	SavedAt time.Time   `json:"saved_at"`
	Stops   []StopEntry `json:"stops"`
}

// StopEntry is the on-disk form of a route.Stop.
type StopEntry struct {
	Name    string            `json:"name"`
	Coords  [3]float64        `json:"coords"`
	Status  route.Status      `json:"status"`
	Payload []string          `json:"payload,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// RouteStore reads and writes the route file at path.
type RouteStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewRouteStore creates a store for the file at path.
func NewRouteStore(path string) *RouteStore {
	return &RouteStore{path: path, now: time.Now}
}

// Path returns the canonical file path.
func (s *RouteStore) Path() string {
	return s.path
}

// LockPath is the lock file guarding writes to the route file.
func (s *RouteStore) LockPath() string {
	return s.path + ".lock"
}

// Load reads the route. A missing or empty file yields an empty route.
func (s *RouteStore) Load(ctx context.Context) ([]route.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load()
}

// Save writes stops atomically: the document goes to a temp file in the same
// directory which is synced and renamed over the canonical file. On failure
// the previous file is left untouched.
func (s *RouteStore) Save(ctx context.Context, stops []route.Stop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := acquireLock(ctx, s.LockPath())
	if err != nil {
		return fault.Persistence("lock route", err)
	}
	defer unlock()

	return s.write(stops)
}

// Update reads the route, passes it to fn and writes what fn returns. The
// lock file is held from the read to the write, so other processes using
// Update or Save cannot interleave. A nil result skips the write.
func (s *RouteStore) Update(ctx context.Context, fn func([]route.Stop) ([]route.Stop, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := acquireLock(ctx, s.LockPath())
	if err != nil {
		return fault.Persistence("lock route", err)
	}
	defer unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}
	return s.write(next)
}

func (s *RouteStore) load() ([]route.Stop, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fault.Persistence("read route", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var file RouteFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fault.Persistence("decode route", err)
	}
	if file.Version > FormatVersion {
		return nil, fault.Persistence("decode route", fmt.Errorf("unsupported version %d", file.Version))
	}

	stops := make([]route.Stop, len(file.Stops))
	for i, e := range file.Stops {
		status := e.Status
		if status == "" {
			status = route.StatusUnvisited
		}
		stops[i] = route.Stop{
			Name:    e.Name,
			Coords:  geo.FromArray(e.Coords),
			Status:  status,
			Payload: e.Payload,
			Extra:   e.Extra,
		}
	}
	return stops, nil
}

func (s *RouteStore) write(stops []route.Stop) error {
	file := RouteFile{
		Version: FormatVersion,
		SavedAt: s.now().UTC(),
		Stops:   make([]StopEntry, len(stops)),
	}
	for i, st := range stops {
		file.Stops[i] = StopEntry{
			Name:    st.Name,
			Coords:  st.Coords.Array(),
			Status:  st.Status,
			Payload: st.Payload,
			Extra:   st.Extra,
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fault.Persistence("encode route", err)
	}

	return fault.Persistence("write route", writeAtomic(s.path, data))
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
