package waypoint

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/waypoint/internal/core/config"
	"github.com/colonyops/waypoint/internal/core/eventbus"
	"github.com/colonyops/waypoint/internal/core/history"
	"github.com/colonyops/waypoint/internal/core/journal"
	"github.com/colonyops/waypoint/internal/core/logging"
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/data/db"
	"github.com/colonyops/waypoint/internal/data/stores"
	"github.com/colonyops/waypoint/internal/store/jsonfile"
)

// App is the central entry point for all waypoint operations.
// Commands and TUI consume App instead of cherry-picking raw dependencies.
type App struct {
	Config  *config.Config
	State   *route.State
	Bus     *eventbus.EventBus
	Planner *Planner
	Tracker *Tracker
	Routes  *jsonfile.RouteStore
	History history.Store
	DB      *db.DB

	SessionID string
}

// NewApp constructs an App from explicit dependencies.
func NewApp(cfg *config.Config, database *db.DB, bus *eventbus.EventBus, sessionID string) *App {
	state := route.NewState()
	routes := jsonfile.NewRouteStore(cfg.RouteFile())
	hist := stores.NewVisitStore(database)

	return &App{
		Config: cfg,
		State:  state,
		Bus:    bus,
		Planner: NewPlanner(state, bus, PlannerOptions{
			BlockSize:     cfg.Route.BlockSize,
			Workers:       cfg.Route.Workers,
			TimeLimit:     cfg.Route.TimeLimit,
			MaxIterations: cfg.Route.MaxIterations,
		}, logging.Component("planner")),
		Tracker: NewTracker(state, bus, routes, hist, TrackerOptions{
			AutoSkip:  cfg.Route.AutoSkip,
			SessionID: sessionID,
		}, logging.Component("tracker")),
		Routes:    routes,
		History:   hist,
		DB:        database,
		SessionID: sessionID,
	}
}

// OpenDatabase opens the visit database in the data directory. A corrupt
// database is moved aside and recreated.
func OpenDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.OpenOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, err
	}

	backup, rerr := stores.RecoverFromCorruption(cfg.DataDir)
	if rerr != nil {
		return nil, fmt.Errorf("recover database: %w", rerr)
	}
	log.Warn().Err(err).Str("backup", backup).Msg("visit database corrupt, starting a new one")
	return db.Open(cfg.DataDir, opts)
}

// LoadRoute replaces the route state with the persisted route.
func (a *App) LoadRoute(ctx context.Context) error {
	stops, err := a.Routes.Load(ctx)
	if err != nil {
		return err
	}
	if err := a.Tracker.Adopt(stops); err != nil {
		return fmt.Errorf("%s: %w", a.Routes.Path(), err)
	}
	a.Bus.PublishRouteLoaded(eventbus.RouteLoadedPayload{Stops: len(stops), Source: a.Routes.Path()})
	return nil
}

// SaveRoute persists the current route state.
func (a *App) SaveRoute(ctx context.Context) error {
	snap := a.State.Snapshot()
	if err := a.Routes.Save(ctx, snap); err != nil {
		return err
	}
	log.Debug().Ctx(ctx).Str("path", a.Routes.Path()).Int("stops", len(snap)).Msg("route saved")
	a.Bus.PublishRouteSaved(eventbus.RouteSavedPayload{Path: a.Routes.Path(), Stops: len(snap)})
	return nil
}

// Summary reports progress on the current route.
func (a *App) Summary() Summary {
	return Summarize(a.State.Snapshot(), a.Config.Route.JumpRange)
}

// NewTailer creates a journal tailer that feeds the tracker.
func (a *App) NewTailer() *journal.Tailer {
	j := a.Config.Journal
	return journal.NewTailer(journal.Options{
		Dir:            j.Dir,
		Pattern:        j.Pattern,
		Commander:      j.Commander,
		Events:         j.Events,
		PollInterval:   j.PollInterval,
		LocateInterval: j.LocateInterval,
		RetryAttempts:  j.RetryAttempts,
		RetryBackoff:   j.RetryBackoff,
		DisableWatch:   !j.Watch,
	}, a.Tracker.Sink(), logging.Component("journal"))
}

// Close stops background work and releases the database.
func (a *App) Close() error {
	a.Planner.Close()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
