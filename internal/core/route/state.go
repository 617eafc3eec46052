package route

import (
	"sync"

	"github.com/colonyops/waypoint/internal/core/fault"
)

// Progress summarizes the statuses of a route.
type Progress struct {
	Total     int    `json:"total"`
	Visited   int    `json:"visited"`
	Skipped   int    `json:"skipped"`
	Unvisited int    `json:"unvisited"`
	Next      string `json:"next,omitempty"` // first unvisited stop, empty when none remain
}

// State is the in-memory route for a session. All methods are safe for
// concurrent use and serialized by a single mutex; readers get copies, never
// references into the internal slice.
type State struct {
	mu    sync.Mutex
	stops []Stop
	index map[string]int // Key(name) -> position in stops
}

// NewState returns an empty State.
func NewState() *State {
	return &State{index: map[string]int{}}
}

// LoadRoute replaces the whole route. It fails with fault.ErrInvalidInput,
// leaving the current route untouched, when names repeat or a status is
// unknown. An empty status is stored as StatusUnvisited.
func (s *State) LoadRoute(stops []Stop) error {
	next := make([]Stop, len(stops))
	index := make(map[string]int, len(stops))

	for i, stop := range stops {
		k := Key(stop.Name)
		if k == "" {
			return fault.Invalid("stop %d has an empty name", i)
		}
		if prev, dup := index[k]; dup {
			return fault.Invalid("duplicate stop %q at positions %d and %d", stop.Name, prev, i)
		}
		if stop.Status == "" {
			stop.Status = StatusUnvisited
		}
		if !stop.Status.IsValid() {
			return fault.Invalid("stop %q has unknown status %q", stop.Name, stop.Status)
		}
		index[k] = i
		next[i] = stop.Clone()
	}

	s.mu.Lock()
	s.stops = next
	s.index = index
	s.mu.Unlock()

	return nil
}

// Snapshot returns an independent copy of the route in visiting order.
func (s *State) Snapshot() []Stop {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Stop, len(s.stops))
	for i, stop := range s.stops {
		out[i] = stop.Clone()
	}
	return out
}

// Change is one status transition applied to a stop.
type Change struct {
	Name string
	Old  Status
	New  Status
}

// UpdateStatus sets the status of the named stop. It returns true only when
// the stop exists and its status actually changed.
func (s *State) UpdateStatus(name string, status Status) bool {
	_, ok := s.SetStatus(name, status)
	return ok
}

// SetStatus is UpdateStatus that also reports the transition, read under the
// same lock as the write.
func (s *State) SetStatus(name string, status Status) (Change, bool) {
	if !status.IsValid() {
		return Change{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[Key(name)]
	if !ok || s.stops[i].Status == status {
		return Change{}, false
	}
	c := Change{Name: s.stops[i].Name, Old: s.stops[i].Status, New: status}
	s.stops[i].Status = status
	return c, true
}

// Contains reports whether name is on the route.
func (s *State) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.index[Key(name)]
	return ok
}

// Get returns a copy of the named stop.
func (s *State) Get(name string) (Stop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[Key(name)]
	if !ok {
		return Stop{}, false
	}
	return s.stops[i].Clone(), true
}

// Len returns the number of stops.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stops)
}

// Clear empties the route.
func (s *State) Clear() {
	s.mu.Lock()
	s.stops = nil
	s.index = map[string]int{}
	s.mu.Unlock()
}

// Statuses returns the current status of every stop keyed by Key(name).
func (s *State) Statuses() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Status, len(s.stops))
	for _, stop := range s.stops {
		out[Key(stop.Name)] = stop.Status
	}
	return out
}

// SkipBefore marks every unvisited stop ahead of name as skipped and returns
// the names it changed. Unknown names change nothing.
func (s *State) SkipBefore(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	end, ok := s.index[Key(name)]
	if !ok {
		return nil
	}

	var changed []string
	for i := 0; i < end; i++ {
		if s.stops[i].Status == StatusUnvisited {
			s.stops[i].Status = StatusSkipped
			changed = append(changed, s.stops[i].Name)
		}
	}
	return changed
}

// Progress counts stops by status.
func (s *State) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ProgressOf(s.stops)
}

// ProgressOf counts stops by status. Next is the first unvisited stop.
func ProgressOf(stops []Stop) Progress {
	p := Progress{Total: len(stops)}
	for _, stop := range stops {
		switch stop.Status {
		case StatusVisited:
			p.Visited++
		case StatusSkipped:
			p.Skipped++
		default:
			p.Unvisited++
			if p.Next == "" {
				p.Next = stop.Name
			}
		}
	}
	return p
}

// RestoreStatuses copies statuses from prior onto stops with a matching Key.
// Stops without a match become StatusUnvisited.
func RestoreStatuses(stops []Stop, prior map[string]Status) []Stop {
	out := make([]Stop, len(stops))
	for i, stop := range stops {
		stop = stop.Clone()
		stop.Status = StatusUnvisited
		if st, ok := prior[Key(stop.Name)]; ok && st.IsValid() {
			stop.Status = st
		}
		out[i] = stop
	}
	return out
}
