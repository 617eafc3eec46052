package stores

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/waypoint/internal/core/history"
	"github.com/colonyops/waypoint/internal/core/route"
	"github.com/colonyops/waypoint/internal/data/db"
)

// busyRetries bounds how often an insert is retried while another process
// holds the write lock past the busy timeout.
const busyRetries = 3

// VisitStore implements history.Store using SQLite.
type VisitStore struct {
	db *db.DB
}

var _ history.Store = (*VisitStore)(nil)

// NewVisitStore creates a new SQLite-backed visit store.
func NewVisitStore(db *db.DB) *VisitStore {
	return &VisitStore{db: db}
}

// Record inserts a visit and returns it with its ID set.
func (s *VisitStore) Record(ctx context.Context, v history.Visit) (history.Visit, error) {
	if v.ArrivedAt.IsZero() {
		v.ArrivedAt = time.Now()
	}

	var (
		res sql.Result
		err error
	)
	for attempt := range busyRetries {
		res, err = s.db.Conn().ExecContext(ctx, `
			INSERT INTO visits (session_id, system, system_key, on_route, arrived_at, journal_file)
			VALUES (?, ?, ?, ?, ?, ?)`,
			v.SessionID, v.System, route.Key(v.System), v.OnRoute, v.ArrivedAt.UnixNano(), v.File,
		)
		if !IsBusyError(err) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	if err != nil {
		return history.Visit{}, fmt.Errorf("failed to record visit: %w", err)
	}

	v.ID, err = res.LastInsertId()
	if err != nil {
		return history.Visit{}, fmt.Errorf("failed to read visit id: %w", err)
	}
	return v, nil
}

// List returns visits matching f, newest first.
func (s *VisitStore) List(ctx context.Context, f history.Filter) ([]history.Visit, error) {
	var (
		where []string
		args  []any
	)
	if f.System != "" {
		where = append(where, "system_key = ?")
		args = append(args, route.Key(f.System))
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.OnRoute {
		where = append(where, "on_route = 1")
	}

	query := "SELECT id, session_id, system, on_route, arrived_at, journal_file FROM visits"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY arrived_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var visits []history.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}

	return visits, nil
}

// Last returns the most recent visit to system. Returns ErrNotFound if none.
func (s *VisitStore) Last(ctx context.Context, system string) (history.Visit, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, session_id, system, on_route, arrived_at, journal_file
		FROM visits WHERE system_key = ?
		ORDER BY arrived_at DESC, id DESC LIMIT 1`,
		route.Key(system),
	)

	v, err := scanVisit(row)
	if IsNotFoundError(err) {
		return history.Visit{}, history.ErrNotFound
	}
	if err != nil {
		return history.Visit{}, err
	}
	return v, nil
}

// Clear removes all visits.
func (s *VisitStore) Clear(ctx context.Context) error {
	if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM visits"); err != nil {
		return fmt.Errorf("failed to clear visits: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVisit(sc scanner) (history.Visit, error) {
	var (
		v       history.Visit
		arrived int64
	)
	if err := sc.Scan(&v.ID, &v.SessionID, &v.System, &v.OnRoute, &arrived, &v.File); err != nil {
		if IsNotFoundError(err) {
			return history.Visit{}, err
		}
		return history.Visit{}, fmt.Errorf("failed to scan visit: %w", err)
	}
	v.ArrivedAt = time.Unix(0, arrived)
	return v, nil
}
