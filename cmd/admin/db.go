package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	levelID := fs.String("level", "", "level id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor filter (audits)")
	_ = fs.Parse(args)

	q := "results"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*levelID) == "" {
			fmt.Fprintln(os.Stderr, "missing -level or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "levels", *levelID, "index", "level.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := queryIndex(db, os.Stdout, q, *limit, strings.TrimSpace(*actor)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// queryIndex prints one JSON object per row of the named index query.
func queryIndex(db *sql.DB, out io.Writer, q string, limit int, actor string) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "results":
		rows, err := db.Query(`SELECT level_id,outcome,exit_count,target_exits,spawned,lost,score,elapsed_ms,tick,finished_at FROM results ORDER BY score DESC, elapsed_ms ASC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				LevelID     string `json:"level_id"`
				Outcome     string `json:"outcome"`
				ExitCount   int    `json:"exit_count"`
				TargetExits int    `json:"target_exits"`
				Spawned     int    `json:"spawned"`
				Lost        int    `json:"lost"`
				Score       int    `json:"score"`
				ElapsedMs   int64  `json:"elapsed_ms"`
				Tick        int64  `json:"tick"`
				FinishedAt  string `json:"finished_at"`
			}
			if err := rows.Scan(&r.LevelID, &r.Outcome, &r.ExitCount, &r.TargetExits, &r.Spawned, &r.Lost, &r.Score, &r.ElapsedMs, &r.Tick, &r.FinishedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			writeJSON(out, r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT level_id,tick,digest,reset,commands,spawned,exited,lost,COALESCE(outcome,'') FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				LevelID  string `json:"level_id"`
				Tick     int64  `json:"tick"`
				Digest   string `json:"digest"`
				Reset    bool   `json:"reset"`
				Commands int    `json:"commands"`
				Spawned  int    `json:"spawned"`
				Exited   int    `json:"exited"`
				Lost     int    `json:"lost"`
				Outcome  string `json:"outcome,omitempty"`
			}
			if err := rows.Scan(&r.LevelID, &r.Tick, &r.Digest, &r.Reset, &r.Commands, &r.Spawned, &r.Exited, &r.Lost, &r.Outcome); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			writeJSON(out, r)
		}
		return rows.Err()

	case "audits":
		query := `SELECT tick,seq,actor,action,col,row,from_tile,to_tile FROM audits`
		qargs := []any{}
		if actor != "" {
			query += ` WHERE actor=?`
			qargs = append(qargs, actor)
		}
		query += ` ORDER BY tick DESC, seq DESC LIMIT ?`
		qargs = append(qargs, limit)
		rows, err := db.Query(query, qargs...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64  `json:"tick"`
				Seq    int    `json:"seq"`
				Actor  string `json:"actor"`
				Action string `json:"action"`
				Col    int    `json:"col"`
				Row    int    `json:"row"`
				From   string `json:"from"`
				To     string `json:"to"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Actor, &r.Action, &r.Col, &r.Row, &r.From, &r.To); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			writeJSON(out, r)
		}
		return rows.Err()

	case "configs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM configs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			writeJSON(out, r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query %q (want results, ticks, audits or configs)", q)
	}
}

func printJSON(v any) { writeJSON(os.Stdout, v) }

func writeJSON(w io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(w, string(b))
}
