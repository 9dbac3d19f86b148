package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"pixelpioneers.io/internal/sim/level"
)

// SQLiteIndex is a queryable secondary copy of the tick and audit logs plus
// finished-run results. Writes are queued and applied by one goroutine; the
// JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick   atomic.Uint64
	dropAudit  atomic.Uint64
	dropResult atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqResult
)

type req struct {
	kind reqKind

	tick   level.TickLogEntry
	audit  level.AuditEntry
	result level.Result
}

type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropTickTotal   uint64 `json:"drop_tick_total"`
	DropAuditTotal  uint64 `json:"drop_audit_total"`
	DropResultTotal uint64 `json:"drop_result_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Sized for bursts of terrain edits when many lemmings dig at once.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			level_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			reset INTEGER NOT NULL,
			commands INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			exited INTEGER NOT NULL,
			lost INTEGER NOT NULL,
			outcome TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (level_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			level_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			kind TEXT NOT NULL,
			skill TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			target TEXT NOT NULL,
			PRIMARY KEY (level_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_target ON commands(target, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			level_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			col INTEGER NOT NULL,
			row INTEGER NOT NULL,
			from_tile TEXT NOT NULL,
			to_tile TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (level_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(level_id, col, row, tick);`,
		`CREATE TABLE IF NOT EXISTS results (
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
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_level_score ON results(level_id, score DESC);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropTickTotal:   s.dropTick.Load(),
		DropAuditTotal:  s.dropAudit.Load(),
		DropResultTotal: s.dropResult.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry level.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry level.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordResult(r level.Result) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqResult, result: r}:
	default:
		s.dropResult.Add(1)
	}
}

// UpsertConfig stores the effective value of a named config (tuning, levels)
// as canonical JSON with its digest. It writes synchronously.
func (s *SQLiteIndex) UpsertConfig(name string, v any) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		name, hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(level_id,tick,digest,reset,commands,spawned,exited,lost,outcome,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertCommand, _ := s.db.Prepare(`INSERT OR REPLACE INTO commands(level_id,tick,seq,actor,kind,skill,x,y,target) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(level_id,tick,seq,actor,action,col,row,from_tile,to_tile,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertResult, _ := s.db.Prepare(`INSERT INTO results(level_id,outcome,exit_count,target_exits,spawned,lost,score,elapsed_ms,tick,finished_at) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCommand, insertAudit, insertResult} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			b, _ := json.Marshal(t)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					t.LevelID,
					int64(t.Tick),
					t.Digest,
					boolInt(t.Reset),
					len(t.Commands),
					len(t.Spawned),
					len(t.Exited),
					len(t.Lost),
					t.Outcome,
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for i, c := range t.Commands {
				if insertCommand == nil {
					break
				}
				if _, err := tx.Stmt(insertCommand).Exec(
					t.LevelID, int64(t.Tick), i, c.Actor, string(c.Kind), string(c.Skill), c.X, c.Y, c.Target,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					a.LevelID,
					int64(a.Tick),
					seq,
					a.Actor,
					a.Action,
					a.Col,
					a.Row,
					a.From,
					a.To,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqResult:
			res := r.result
			if insertResult != nil {
				if _, err := tx.Stmt(insertResult).Exec(
					res.LevelID,
					res.Outcome,
					res.ExitCount,
					res.TargetExits,
					res.Spawned,
					res.Lost,
					res.Score,
					res.ElapsedMs,
					int64(res.Tick),
					res.FinishedAt.UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Results are rare and worth seeing immediately.
			commit()
		}
		flushIfNeeded()
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
