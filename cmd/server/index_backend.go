package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pixelpioneers.io/internal/persistence/indexdb"
	"pixelpioneers.io/internal/persistence/results"
	"pixelpioneers.io/internal/sim/level"
)

type runtimeIndex interface {
	level.TickLogger
	level.AuditLogger
	Close() error
	UpsertConfig(name string, v any) error
	RecordResult(r level.Result)
	Stats() indexdb.Stats
}

func openRuntimeIndex(levelDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PP_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(levelDir, "index", "level.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported PP_INDEX_BACKEND: %s", backend)
	}
}

// openResultsStore picks the leaderboard backend from PP_RESULTS_BACKEND
// (memory, sqlite, postgres). PP_RESULTS_DSN overrides the sqlite path.
func openResultsStore(dataDir string) (results.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PP_RESULTS_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	dsn := strings.TrimSpace(os.Getenv("PP_RESULTS_DSN"))
	switch backend {
	case "sqlite":
		if dsn == "" {
			dsn = filepath.Join(dataDir, "results.sqlite")
		}
	case "postgres", "postgresql":
		if dsn == "" {
			return nil, fmt.Errorf("PP_RESULTS_BACKEND=%s but PP_RESULTS_DSN is empty", backend)
		}
	}
	return results.NewStore(backend, dsn)
}
