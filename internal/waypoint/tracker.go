package waypoint

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/waypoint/internal/core/eventbus"
	"github.com/colonyops/waypoint/internal/core/fault"
	"github.com/colonyops/waypoint/internal/core/history"
	"github.com/colonyops/waypoint/internal/core/journal"
	"github.com/colonyops/waypoint/internal/core/logging"
	"github.com/colonyops/waypoint/internal/core/route"
)

// arrivalQueue is how many arrivals the journal may post ahead of Run.
const arrivalQueue = 64

// RouteStorage is the persisted route the tracker keeps in step with the
// route state.
type RouteStorage interface {
	Load(ctx context.Context) ([]route.Stop, error)
	Update(ctx context.Context, fn func([]route.Stop) ([]route.Stop, error)) error
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	AutoSkip  bool   // mark unvisited stops before an arrival as skipped
	SessionID string // recorded with every visit
}

// Tracker applies arrivals and manual marks to the route state, records
// visits and persists the route after every change.
type Tracker struct {
	state   *route.State
	bus     *eventbus.EventBus
	routes  RouteStorage
	history history.Store
	log     zerolog.Logger
	opts    TrackerOptions

	arrivals chan journal.Arrival
	stopped  chan struct{}
	stopOnce sync.Once

	// saveMu covers reading the route file, folding in what other processes
	// wrote and writing the snapshot. base is the route as this tracker last
	// read or wrote it.
	saveMu sync.Mutex
	base   []route.Stop
}

// NewTracker creates a Tracker. routes and history may be nil to skip
// persistence and visit recording.
func NewTracker(
	state *route.State,
	bus *eventbus.EventBus,
	routes RouteStorage,
	hist history.Store,
	opts TrackerOptions,
	log zerolog.Logger,
) *Tracker {
	return &Tracker{
		state:    state,
		bus:      bus,
		routes:   routes,
		history:  hist,
		log:      log,
		opts:     opts,
		arrivals: make(chan journal.Arrival, arrivalQueue),
		stopped:  make(chan struct{}),
	}
}

// Adopt loads stops into the route state and remembers them as the route on
// disk.
func (t *Tracker) Adopt(stops []route.Stop) error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	if err := t.state.LoadRoute(stops); err != nil {
		return err
	}
	t.base = t.state.Snapshot()
	return nil
}

// Sink returns the journal sink feeding Run. Post waits while the queue is
// full, so arrivals are never dropped, and returns at once after Run ends.
func (t *Tracker) Sink() journal.Sink {
	return journal.QueueSink{C: t.arrivals, Done: t.stopped}
}

// Run applies queued arrivals in journal order until ctx is done. A value on
// external means another process wrote the route file. Arrivals still queued
// when ctx ends are applied and the route is saved one last time.
func (t *Tracker) Run(ctx context.Context, external <-chan struct{}) error {
	defer t.stopOnce.Do(func() { close(t.stopped) })

	for {
		select {
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			t.applyQueued(final, nil)
			if err := t.persist(final); err != nil {
				t.log.Error().Ctx(final).Err(err).Msg("final route snapshot failed")
			}
			return nil
		case a := <-t.arrivals:
			t.applyQueued(ctx, &a)
		case <-external:
			if err := t.Sync(ctx); err != nil {
				t.log.Warn().Ctx(ctx).Err(err).Msg("route file reload failed")
			}
		}
	}
}

// applyQueued handles first and the arrivals queued behind it, then saves
// the route once.
func (t *Tracker) applyQueued(ctx context.Context, first *journal.Arrival) {
	changed := first != nil && t.arrive(ctx, *first)

drain:
	for range arrivalQueue {
		select {
		case a := <-t.arrivals:
			if t.arrive(ctx, a) {
				changed = true
			}
		default:
			break drain
		}
	}

	if changed {
		t.save(ctx)
	}
}

// HandleArrival records the visit and, when the system is on the route,
// marks it visited and saves the route. Failures are logged; the route state
// stays authoritative.
func (t *Tracker) HandleArrival(ctx context.Context, a journal.Arrival) {
	if t.arrive(ctx, a) {
		t.save(ctx)
	}
}

// arrive applies one arrival and reports whether any status changed.
func (t *Tracker) arrive(ctx context.Context, a journal.Arrival) bool {
	t.bus.PublishSystemArrived(eventbus.SystemArrivedPayload{
		System:    a.System,
		Timestamp: a.Timestamp,
		File:      a.File,
	})

	onRoute := t.state.Contains(a.System)
	t.recordVisit(ctx, a, onRoute)

	if !onRoute {
		t.log.Debug().Ctx(ctx).Str("system", a.System).Msg("arrival off route")
		return false
	}

	changed := false
	if t.opts.AutoSkip {
		for _, name := range t.state.SkipBefore(a.System) {
			changed = true
			t.publishChange(route.Change{Name: name, Old: route.StatusUnvisited, New: route.StatusSkipped}, eventbus.SourceAutoSkip)
		}
	}

	if t.apply(a.System, route.StatusVisited, eventbus.SourceJournal) {
		changed = true
		t.log.Info().Ctx(ctx).Str("system", a.System).Msg("stop visited")
	}
	return changed
}

// Mark sets the status of a stop by name. It reports whether the status
// changed and fails with fault.ErrInvalidInput for names not on the route.
func (t *Tracker) Mark(ctx context.Context, name string, status route.Status) (bool, error) {
	if !status.IsValid() {
		return false, fault.Invalid("unknown status %q", status)
	}
	if !t.state.Contains(name) {
		return false, fault.Invalid("%q is not on the route", name)
	}

	if !t.apply(name, status, eventbus.SourceManual) {
		return false, nil
	}
	return true, t.persist(ctx)
}

// Sync folds statuses another process wrote to the route file into the
// state. It never writes the file.
func (t *Tracker) Sync(ctx context.Context) error {
	if t.routes == nil {
		return nil
	}

	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	disk, err := t.routes.Load(ctx)
	if err != nil {
		return err
	}
	if t.fold(disk) {
		t.base = disk
	}
	return nil
}

func (t *Tracker) apply(name string, status route.Status, source string) bool {
	c, ok := t.state.SetStatus(name, status)
	if ok {
		t.publishChange(c, source)
	}
	return ok
}

func (t *Tracker) publishChange(c route.Change, source string) {
	t.bus.PublishStopStatusChanged(eventbus.StopStatusChangedPayload{
		Name:   c.Name,
		Old:    c.Old,
		New:    c.New,
		Source: source,
	})
}

func (t *Tracker) save(ctx context.Context) {
	if err := t.persist(ctx); err != nil {
		t.log.Error().Ctx(ctx).Err(err).Msg("route snapshot failed")
	}
}

// persist writes the route state. The snapshot is taken while the route
// file is locked, after folding in what other processes wrote since base.
func (t *Tracker) persist(ctx context.Context) error {
	if t.routes == nil {
		return nil
	}

	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	var saved []route.Stop
	err := t.routes.Update(ctx, func(disk []route.Stop) ([]route.Stop, error) {
		if !t.fold(disk) {
			return nil, nil
		}
		saved = t.state.Snapshot()
		return saved, nil
	})
	if err != nil || saved == nil {
		return err
	}
	t.base = saved

	payload := eventbus.RouteSavedPayload{Stops: len(saved)}
	if p, ok := t.routes.(interface{ Path() string }); ok {
		payload.Path = p.Path()
	}
	t.bus.PublishRouteSaved(payload)
	return nil
}

// fold applies statuses changed on disk since base to the state. A stop
// changed here as well keeps its status from the state. When the file holds
// a different route the state adopts it and fold reports false. Callers hold
// saveMu.
func (t *Tracker) fold(disk []route.Stop) bool {
	if t.base == nil || len(disk) == 0 {
		return true
	}

	if !sameStops(t.base, disk) {
		if err := t.state.LoadRoute(disk); err != nil {
			t.log.Warn().Err(err).Msg("route file holds an invalid route, keeping ours")
			return true
		}
		t.base = disk
		t.log.Info().Int("stops", len(disk)).Msg("route replaced by another process")
		t.bus.PublishRouteLoaded(eventbus.RouteLoadedPayload{Stops: len(disk), Source: eventbus.SourceExternal})
		return false
	}

	for i, theirs := range disk {
		was := t.base[i].Status
		if theirs.Status == was {
			continue
		}
		if ours, ok := t.state.Get(theirs.Name); !ok || ours.Status != was {
			continue
		}
		t.apply(theirs.Name, theirs.Status, eventbus.SourceExternal)
	}
	return true
}

// sameStops reports whether a and b list the same stops in the same order.
func sameStops(a, b []route.Stop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if route.Key(a[i].Name) != route.Key(b[i].Name) {
			return false
		}
	}
	return true
}

func (t *Tracker) recordVisit(ctx context.Context, a journal.Arrival, onRoute bool) {
	if t.history == nil {
		return
	}

	at := a.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	sessionID := t.opts.SessionID
	if sessionID == "" {
		sessionID = logging.GetSessionID(ctx)
	}

	_, err := t.history.Record(ctx, history.Visit{
		SessionID: sessionID,
		System:    a.System,
		OnRoute:   onRoute,
		ArrivedAt: at,
		File:      a.File,
	})
	if err != nil {
		t.log.Warn().Ctx(ctx).Err(err).Str("system", a.System).Msg("visit not recorded")
	}
}
