package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pixelpioneers.io/internal/sim/level"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name   string
	schema []string
	insert string
	top    string
	topAll string
}

// sqlStore is the shared database/sql implementation behind the SQLite and
// PostgreSQL backends. finished_at is stored as Unix nanoseconds so both
// drivers scan it the same way.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(db *sql.DB, d dialect) (*sqlStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("%s results schema: %w", d.name, err)
		}
	}
	return &sqlStore{db: db, d: d}, nil
}

func (s *sqlStore) Record(ctx context.Context, r level.Result) error {
	_, err := s.db.ExecContext(ctx, s.d.insert,
		r.LevelID, r.Outcome, r.ExitCount, r.TargetExits, r.Spawned, r.Lost,
		r.Score, r.ElapsedMs, int64(r.Tick), r.FinishedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

func (s *sqlStore) Top(ctx context.Context, levelID string, n int) ([]level.Result, error) {
	if n <= 0 {
		n = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	if levelID == "" {
		rows, err = s.db.QueryContext(ctx, s.d.topAll, n)
	} else {
		rows, err = s.db.QueryContext(ctx, s.d.top, levelID, n)
	}
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []level.Result
	for rows.Next() {
		var (
			r          level.Result
			tick       int64
			finishedNs int64
		)
		if err := rows.Scan(&r.LevelID, &r.Outcome, &r.ExitCount, &r.TargetExits, &r.Spawned, &r.Lost,
			&r.Score, &r.ElapsedMs, &tick, &finishedNs); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Tick = uint64(tick)
		r.FinishedAt = time.Unix(0, finishedNs).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

const resultColumns = `level_id, outcome, exit_count, target_exits, spawned, lost, score, elapsed_ms, tick, finished_at`

const resultOrder = `ORDER BY score DESC, elapsed_ms ASC, finished_at ASC`
