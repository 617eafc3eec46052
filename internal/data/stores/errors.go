// Package stores implements domain stores on top of the sqlite database.
package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/colonyops/waypoint/internal/data/db"
)

var corruptCodes = []int{
	sqlite3.SQLITE_CORRUPT,
	sqlite3.SQLITE_NOTADB,
	sqlite3.SQLITE_CANTOPEN,
}

// Errors reported before a sqlite.Error exists, e.g. while migrating.
var corruptMessages = []string{
	"database disk image is malformed",
	"file is not a database",
	"database corruption",
}

// sidecars are the files sqlite keeps next to a WAL database. They must move
// with the main file or the fresh database would replay a foreign log.
var sidecars = []string{"", "-wal", "-shm"}

func sqliteCode(err error) (int, bool) {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code(), true
	}
	return 0, false
}

// IsBusyError reports whether err is SQLITE_BUSY.
func IsBusyError(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_BUSY
}

// IsCorruptionError reports whether err means the database file is unusable.
func IsCorruptionError(err error) bool {
	if code, ok := sqliteCode(err); ok {
		return slices.Contains(corruptCodes, code)
	}

	msg := err.Error()
	return slices.ContainsFunc(corruptMessages, func(s string) bool {
		return strings.Contains(msg, s)
	})
}

// IsNotFoundError reports whether err is sql.ErrNoRows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// RecoverFromCorruption moves the visit database and its sidecar files to
// <file>.corrupt.<timestamp> so the next Open starts empty. It returns the
// backup path, or "" when there was no database to move.
func RecoverFromCorruption(dataDir string) (string, error) {
	dbPath := filepath.Join(dataDir, db.FileName)
	backup := fmt.Sprintf("%s.corrupt.%s", dbPath, time.Now().Format("20060102-150405"))

	moved := false
	for _, suffix := range sidecars {
		ok, err := quarantine(dbPath+suffix, backup+suffix)
		if err != nil {
			return "", err
		}
		if suffix == "" {
			moved = ok
		}
	}

	if !moved {
		return "", nil
	}
	return backup, nil
}

// quarantine renames src to dst, falling back to removing src. A missing src
// is not an error.
func quarantine(src, dst string) (bool, error) {
	err := os.Rename(src, dst)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}

	if rmErr := os.Remove(src); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return false, fmt.Errorf("move aside %s: %w", filepath.Base(src), err)
	}
	return false, nil
}
