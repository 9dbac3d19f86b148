package main

import (
	"bytes"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	persistlog "pixelpioneers.io/internal/persistence/log"
	"pixelpioneers.io/internal/sim/level"
)

func TestParseRect(t *testing.T) {
	min, max, err := parseRect("5, 2:1,7")
	if err != nil {
		t.Fatalf("parseRect: %v", err)
	}
	if min != [2]int{1, 2} || max != [2]int{5, 7} {
		t.Fatalf("min=%v max=%v", min, max)
	}
	for _, bad := range []string{"", "1,2", "1,2:3", "a,b:1,2", "1,2,3:4,5"} {
		if _, _, err := parseRect(bad); err == nil {
			t.Fatalf("parseRect(%q) expected error", bad)
		}
	}
}

func TestReadAuditFilters(t *testing.T) {
	dir := t.TempDir()
	al := persistlog.NewAuditLogger(dir)
	entries := []level.AuditEntry{
		{Tick: 10, LevelID: "a", Actor: "L000001", Action: "DIG", Col: 2, Row: 3, From: "#", To: "."},
		{Tick: 20, LevelID: "a", Actor: "L000002", Action: "BUILD", Col: 4, Row: 3, From: ".", To: "#"},
		{Tick: 30, LevelID: "a", Actor: "L000001", Action: "DIG", Col: 9, Row: 9, From: "#", To: "."},
	}
	for _, e := range entries {
		if err := al.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	all, err := readAudit(dir, auditFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("all: %d %v", len(all), err)
	}

	byTick, _ := readAudit(dir, auditFilter{SinceTick: 15, ToTick: 25})
	if len(byTick) != 1 || byTick[0].Tick != 20 {
		t.Fatalf("tick range: %+v", byTick)
	}

	byActor, _ := readAudit(dir, auditFilter{Actor: "L000001", Action: "DIG"})
	if len(byActor) != 2 {
		t.Fatalf("actor filter: %+v", byActor)
	}

	min, max, _ := parseRect("0,0:5,5")
	byRect, _ := readAudit(dir, auditFilter{Rect: true, Min: min, Max: max})
	if len(byRect) != 2 || byRect[1].Col != 4 {
		t.Fatalf("rect filter: %+v", byRect)
	}
}

func TestQueryIndex(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "level.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE results (id INTEGER PRIMARY KEY, level_id TEXT, outcome TEXT, exit_count INTEGER, target_exits INTEGER, spawned INTEGER, lost INTEGER, score INTEGER, elapsed_ms INTEGER, tick INTEGER, finished_at TEXT)`,
		`INSERT INTO results(level_id,outcome,exit_count,target_exits,spawned,lost,score,elapsed_ms,tick,finished_at) VALUES('a','COMPLETED',3,2,4,1,150,9000,540,'2026-01-01T00:00:00Z')`,
		`INSERT INTO results(level_id,outcome,exit_count,target_exits,spawned,lost,score,elapsed_ms,tick,finished_at) VALUES('a','FAILED',0,2,4,4,0,12000,720,'2026-01-01T00:01:00Z')`,
		`CREATE TABLE configs (name TEXT PRIMARY KEY, digest TEXT, json TEXT, updated_at TEXT)`,
		`INSERT INTO configs VALUES('tuning','abc','{}','2026-01-01T00:00:00Z')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	var buf bytes.Buffer
	if err := queryIndex(db, &buf, "results", 1, ""); err != nil {
		t.Fatalf("results: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"score":150`) {
		t.Fatalf("results output: %q", buf.String())
	}

	buf.Reset()
	if err := queryIndex(db, &buf, "configs", 0, ""); err != nil {
		t.Fatalf("configs: %v", err)
	}
	if !strings.Contains(buf.String(), `"name":"tuning"`) {
		t.Fatalf("configs output: %q", buf.String())
	}

	if err := queryIndex(db, &buf, "snapshots", 10, ""); err == nil {
		t.Fatalf("expected error for unknown query")
	}
}

func TestAdminRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/v1/reset":
			_, _ = w.Write([]byte(`{"ok":true,"tick":0}`))
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if code := adminRequest(http.MethodPost, srv.URL+"/", "/admin/v1/reset", time.Second, &buf); code != 0 {
		t.Fatalf("reset exit=%d", code)
	}
	if strings.TrimSpace(buf.String()) != `{"ok":true,"tick":0}` {
		t.Fatalf("reset body=%q", buf.String())
	}

	buf.Reset()
	if code := adminRequest(http.MethodGet, srv.URL, "/admin/v1/state", time.Second, &buf); code != 1 {
		t.Fatalf("forbidden exit=%d", code)
	}
}
