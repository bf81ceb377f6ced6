// Package journal keeps a queryable SQLite copy of the event log. It is
// write-only during a run; nothing is read back at startup.
package journal

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/doridoridoriand/pinglog/internal/loss"
	"github.com/doridoridoriand/pinglog/internal/ping"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    at DATETIME NOT NULL,
    kind TEXT NOT NULL,
    target TEXT NOT NULL,
    latency_ms REAL,
    threshold_ms REAL,
    duration_seconds REAL,
    pings_lost INTEGER
);

CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);

CREATE TABLE IF NOT EXISTS loss_periods (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT NOT NULL,
    start_time DATETIME NOT NULL,
    end_time DATETIME NOT NULL,
    duration_seconds REAL NOT NULL,
    pings_lost INTEGER NOT NULL
);
`

// Journal records events and closed loss periods for one target.
type Journal struct {
	db     *sql.DB
	target string
	logger *slog.Logger
	mu     sync.Mutex
}

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string, target string, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %q", path)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "configure journal %q", path)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create journal schema")
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, target: target, logger: logger}, nil
}

// Record stores events in a single transaction. A LossEnded event also adds
// a loss_periods row.
func (j *Journal) Record(ctx context.Context, events []loss.Event) error {
	if len(events) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin journal transaction")
	}
	defer tx.Rollback()

	for _, e := range events {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO events (at, kind, target, latency_ms, threshold_ms, duration_seconds, pings_lost)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.At.UTC(),
			e.Kind.String(),
			j.target,
			nullFloat(e.LatencyMs, e.Kind == loss.KindHighPing),
			nullFloat(e.ThresholdMs, e.Kind == loss.KindHighPing),
			nullFloat(e.Duration.Seconds(), e.Kind == loss.KindLossEnded),
			nullInt(int64(e.Count), e.Kind == loss.KindLossEnded),
		); err != nil {
			return errors.Wrapf(err, "insert %s event", e.Kind)
		}

		if e.Kind != loss.KindLossEnded {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO loss_periods (target, start_time, end_time, duration_seconds, pings_lost)
            VALUES (?, ?, ?, ?, ?)`,
			j.target,
			e.At.Add(-e.Duration).UTC(),
			e.At.UTC(),
			e.Duration.Seconds(),
			e.Count,
		); err != nil {
			return errors.Wrap(err, "insert loss period")
		}
	}
	return tx.Commit()
}

// Observe records the events of one monitor tick. Write failures are logged
// and never stop the monitor.
func (j *Journal) Observe(at time.Time, result ping.Result, events []loss.Event, state loss.State) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.Record(ctx, events); err != nil {
		j.logger.Error("failed to write journal", "error", err.Error())
	}
}

// Period is a closed loss period read back from the journal.
type Period struct {
	Start     time.Time
	End       time.Time
	Duration  time.Duration
	PingsLost int
}

// Periods returns closed loss periods, oldest first.
func (j *Journal) Periods(ctx context.Context) ([]Period, error) {
	rows, err := j.db.QueryContext(ctx, `
        SELECT start_time, end_time, duration_seconds, pings_lost
        FROM loss_periods
        WHERE target = ?
        ORDER BY start_time ASC, id ASC`, j.target)
	if err != nil {
		return nil, errors.Wrap(err, "query loss periods")
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var (
			p       Period
			seconds float64
		)
		if err := rows.Scan(&p.Start, &p.End, &seconds, &p.PingsLost); err != nil {
			return nil, errors.Wrap(err, "scan loss period")
		}
		p.Duration = time.Duration(seconds * float64(time.Second))
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// CountEvents returns the number of stored events of kind.
func (j *Journal) CountEvents(ctx context.Context, kind loss.Kind) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE target = ? AND kind = ?`,
		j.target, kind.String(),
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count events")
	}
	return n, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullFloat(v float64, valid bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: valid}
}

func nullInt(v int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: valid}
}
