package results

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS level_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			level_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			exit_count INTEGER NOT NULL,
			target_exits INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			lost INTEGER NOT NULL,
			score INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_level_results_rank ON level_results(level_id, score DESC, elapsed_ms);`,
	},
	insert: `INSERT INTO level_results(` + resultColumns + `) VALUES(?,?,?,?,?,?,?,?,?,?)`,
	top:    `SELECT ` + resultColumns + ` FROM level_results WHERE level_id = ? ` + resultOrder + ` LIMIT ?`,
	topAll: `SELECT ` + resultColumns + ` FROM level_results ` + resultOrder + ` LIMIT ?`,
}

func OpenSQLite(path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty results db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
