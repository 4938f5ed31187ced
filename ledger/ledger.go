package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pause_events (
	event_id   TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS paused_torrents (
	event_id     TEXT NOT NULL REFERENCES pause_events(event_id) ON DELETE CASCADE,
	torrent_hash TEXT NOT NULL,
	UNIQUE (event_id, torrent_hash)
);
`

// Ledger records which torrents were paused on behalf of which pause
// event. A torrent may be referenced by several live events at once; it
// must only be resumed once the last of them releases it.
type Ledger struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the ledger database at the given path and
// ensures the schema exists.
func Open(path string, logger zerolog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// sqlite handles one writer at a time; a single connection keeps
	// transactions serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Ledger{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Save atomically replaces the set of torrents paused under the given
// event. Any previous set for the event is discarded; on failure the
// previous state is kept intact.
func (l *Ledger) Save(ctx context.Context, eventID string, hashes []string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Deleting the event cascades to its paused torrents, so a
	// re-save fully replaces the old set.
	if _, err := tx.ExecContext(ctx, `DELETE FROM pause_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("delete existing event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO pause_events (event_id) VALUES (?)`, eventID); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	for _, hash := range hashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paused_torrents (event_id, torrent_hash) VALUES (?, ?)`,
			eventID, hash); err != nil {
			return fmt.Errorf("insert paused torrent: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	l.logger.Debug().Str("event_id", eventID).Int("count", len(hashes)).Msg("Saved pause event")
	return nil
}

// ExclusivelyPaused returns the torrents paused under the given event
// that are not also referenced by any other live event. Shared torrents
// are excluded, as another operation still depends on them.
func (l *Ledger) ExclusivelyPaused(ctx context.Context, eventID string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT torrent_hash
		FROM paused_torrents
		GROUP BY torrent_hash
		HAVING COUNT(*) = SUM(event_id = ?)`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query exclusively paused: %w", err)
	}
	defer rows.Close()

	return scanHashes(rows)
}

// AllPausedHashes returns every torrent hash referenced by any event.
func (l *Ledger) AllPausedHashes(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT torrent_hash FROM paused_torrents`)
	if err != nil {
		return nil, fmt.Errorf("query paused hashes: %w", err)
	}
	defer rows.Close()

	return scanHashes(rows)
}

// Delete removes an event and, through the cascade, its paused
// torrents. Returns the number of events removed; 0 when absent.
func (l *Ledger) Delete(ctx context.Context, eventID string) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM pause_events WHERE event_id = ?`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Clear removes every event from the ledger.
func (l *Ledger) Clear(ctx context.Context) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM pause_events`)
	if err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		l.logger.Info().Int64("events", n).Msg("Cleared pause ledger")
	}
	return nil
}

// List returns every event and its paused torrents, sorted for stable
// output. Events with no paused torrents map to an empty slice.
func (l *Ledger) List(ctx context.Context) (map[string][]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT pe.event_id, pt.torrent_hash
		FROM pause_events pe
		LEFT JOIN paused_torrents pt ON pe.event_id = pt.event_id
		ORDER BY pe.event_id, pt.torrent_hash`)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var eventID string
		var hash sql.NullString
		if err := rows.Scan(&eventID, &hash); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if _, ok := result[eventID]; !ok {
			result[eventID] = []string{}
		}
		if hash.Valid {
			result[eventID] = append(result[eventID], hash.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}

	for _, hashes := range result {
		sort.Strings(hashes)
	}
	return result, nil
}

func scanHashes(rows *sql.Rows) ([]string, error) {
	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return hashes, nil
}
