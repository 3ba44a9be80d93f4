package gallery

import (
	"context"
	"database/sql"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Catalog indexes saved images in a sqlite database so they can be listed without scanning the
// album directory.
type Catalog struct {
	db *sql.DB
}

func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open catalog '%s'", path)
	}
	// One connection; an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			path        TEXT PRIMARY KEY,
			capture_id  TEXT NOT NULL,
			labels      TEXT NOT NULL DEFAULT '[]',
			location    TEXT NOT NULL DEFAULT '',
			saved_at_ns INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS images_saved_at ON images (saved_at_ns);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create catalog schema")
	}

	return &Catalog{db: db}, nil
}

// Record inserts or replaces the row for e.Path.
func (c *Catalog) Record(ctx context.Context, e Entry) error {
	labels := e.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := sonic.MarshalString(labels)
	if err != nil {
		return errors.Wrap(err, "failed to encode labels")
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO images (path, capture_id, labels, location, saved_at_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			capture_id = excluded.capture_id,
			labels = excluded.labels,
			location = excluded.location,
			saved_at_ns = excluded.saved_at_ns
	`, e.Path, e.CaptureID.String(), labelsJSON, e.Location, e.SavedAt.UnixNano())
	return errors.Wrapf(err, "failed to record '%s'", e.Path)
}

// Recent returns up to n entries, newest first.
func (c *Catalog) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT path, capture_id, labels, location, saved_at_ns
		FROM images
		ORDER BY saved_at_ns DESC, path
		LIMIT ?
	`, n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query catalog")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			captureID  string
			labelsJSON string
			savedAtNs  int64
		)
		if err := rows.Scan(&e.Path, &captureID, &labelsJSON, &e.Location, &savedAtNs); err != nil {
			return nil, errors.Wrap(err, "failed to read catalog row")
		}
		if e.CaptureID, err = uuid.Parse(captureID); err != nil {
			return nil, errors.Wrapf(err, "bad capture id for '%s'", e.Path)
		}
		if err := sonic.UnmarshalString(labelsJSON, &e.Labels); err != nil {
			return nil, errors.Wrapf(err, "bad labels for '%s'", e.Path)
		}
		e.SavedAt = time.Unix(0, savedAtNs)
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to read catalog")
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
