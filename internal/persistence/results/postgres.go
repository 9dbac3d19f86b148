package results

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS level_results (
			id BIGSERIAL PRIMARY KEY,
			level_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			exit_count INTEGER NOT NULL,
			target_exits INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			lost INTEGER NOT NULL,
			score INTEGER NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			tick BIGINT NOT NULL,
			finished_at BIGINT NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_level_results_rank ON level_results(level_id, score DESC, elapsed_ms);`,
	},
	insert: `INSERT INTO level_results(` + resultColumns + `) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
	top:    `SELECT ` + resultColumns + ` FROM level_results WHERE level_id = $1 ` + resultOrder + ` LIMIT $2`,
	topAll: `SELECT ` + resultColumns + ` FROM level_results ` + resultOrder + ` LIMIT $1`,
}

func OpenPostgres(connectionString string) (Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s, err := newSQLStore(db, postgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
