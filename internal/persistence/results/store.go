// Package results records finished level runs and serves a per-level
// leaderboard.
package results

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pixelpioneers.io/internal/sim/level"
)

type Store interface {
	Record(ctx context.Context, r level.Result) error
	// Top returns up to n results for levelID (all levels when empty), best first.
	Top(ctx context.Context, levelID string, n int) ([]level.Result, error)
	Close() error
}

// NewStore opens a backend by name: "memory", "sqlite" (dsn is a file path)
// or "postgres" (dsn is a lib/pq connection string).
func NewStore(kind, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory", "mem":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(dsn)
	case "postgres", "postgresql":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported results backend: %s", kind)
	}
}

// better orders results by score, then faster finish, then earlier finish.
func better(a, b level.Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ElapsedMs != b.ElapsedMs {
		return a.ElapsedMs < b.ElapsedMs
	}
	return a.FinishedAt.Before(b.FinishedAt)
}

func sortResults(rs []level.Result) {
	sort.SliceStable(rs, func(i, j int) bool { return better(rs[i], rs[j]) })
}
