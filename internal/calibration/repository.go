package calibration

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schema string

// SQLiteRepository keeps user calibrations in a sqlite file. The file and
// its directory are only created on the first write, so a read-only home
// directory still allows lookups.
type SQLiteRepository struct {
	path string

	mu       sync.Mutex
	db       *sql.DB
	writable bool
}

func NewSQLiteRepository(path string) *SQLiteRepository {
	return &SQLiteRepository{path: path}
}

func (r *SQLiteRepository) Location() string {
	return r.path
}

func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// dsn is the sqlite URI of the file at path, with the path escaped so ? and #
// in it aren't read as the query or fragment.
func dsn(path, mode string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: url.Values{"mode": {mode}}.Encode()}
	return u.String()
}

// open returns the database, reopening it read-write when write is set and
// the current handle is read-only. Callers hold r.mu.
func (r *SQLiteRepository) open(write bool) (*sql.DB, error) {
	if r.db != nil && (r.writable || !write) {
		return r.db, nil
	}
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}

	mode := "ro"
	if write {
		if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
			return nil, fmt.Errorf("Couldn't create directory for %s:\n%w", r.path, err)
		}
		mode = "rwc"
	}

	db, err := sql.Open("sqlite3", dsn(r.path, mode))
	if err != nil {
		return nil, fmt.Errorf("Couldn't open database:\n%w", err)
	}
	if write {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("Couldn't initialise database:\n%w", err)
		}
	}
	r.db, r.writable = db, write
	return db, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]TapeCalibration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Calibration database unreadable, starting without user calibrations", "path", r.path, "err", err)
		}
		return nil, nil
	}
	db, err := r.open(false)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT device_model, tape_width_mm, offset_px, canvas_height_px
		FROM tape_calibration
		ORDER BY device_model, tape_width_mm`)
	if err != nil {
		return nil, fmt.Errorf("Query execution failed:\n%w", err)
	}
	defer rows.Close()

	entries := []TapeCalibration{}
	for rows.Next() {
		c := TapeCalibration{Source: SourceUser}
		if err := rows.Scan(&c.Model, &c.TapeMm, &c.OffsetPx, &c.CanvasHeightPx); err != nil {
			return nil, fmt.Errorf("Row scanning failed:\n%w", err)
		}
		entries = append(entries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Error iterating rows:\n%w", err)
	}

	return entries, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c TapeCalibration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := r.open(true)
	if err != nil {
		return err
	}

	return transact(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tape_calibration (device_model, tape_width_mm, offset_px, canvas_height_px, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (device_model, tape_width_mm) DO UPDATE SET
				offset_px = excluded.offset_px,
				canvas_height_px = excluded.canvas_height_px,
				updated_at = excluded.updated_at`,
			c.Model, c.TapeMm, c.OffsetPx, c.CanvasHeightPx, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("Couldn't write calibration:\n%w", err)
		}
		return nil
	})
}

func transact(ctx context.Context, db *sql.DB, f func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		err2 := tx.Rollback()
		if err2 != nil {
			return fmt.Errorf("Failed to roll back transaction: %w\n\nAfter handling: %v", err2, err)
		}
		return err
	} else {
		err2 := tx.Commit()
		if err2 != nil {
			return fmt.Errorf("Failed to commit transaction:\n%w", err2)
		}
		return nil
	}
}
