package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"pixelpioneers.io/internal/persistence/results"
	"pixelpioneers.io/internal/protocol"
	"pixelpioneers.io/internal/sim/level"
	"pixelpioneers.io/internal/transport/ws"
)

type serverApp struct {
	level     *level.Level
	index     runtimeIndex
	results   results.Store
	validator *protocol.Validator
	log       *log.Logger
}

type routeOptions struct {
	EnableAdmin bool
	EnablePprof bool
}

func (a *serverApp) routes(opts routeOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/v1/results", a.handleResults)

	if opts.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", a.handleAdminState)
		mux.HandleFunc("/admin/v1/reset", a.handleAdminReset)
	} else {
		a.logf("admin endpoints disabled (PP_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		a.logf("pprof endpoints disabled (PP_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(a.level, a.validator, a.log).Handler())
	return mux
}

func (a *serverApp) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	m := a.level.Metrics()
	id := a.level.ID()
	tick := a.level.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP pixelpioneers_level_tick Current level tick.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_tick gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_tick{level=%q} %d\n", id, tick)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_lemmings Lemming counts by kind.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_lemmings gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_lemmings{level=%q,kind=%q} %d\n", id, "live", m.Live)
	fmt.Fprintf(rw, "pixelpioneers_level_lemmings{level=%q,kind=%q} %d\n", id, "spawned", m.Spawned)
	fmt.Fprintf(rw, "pixelpioneers_level_lemmings{level=%q,kind=%q} %d\n", id, "exited", m.Exited)
	fmt.Fprintf(rw, "pixelpioneers_level_lemmings{level=%q,kind=%q} %d\n", id, "lost", m.Lost)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_target_exits Exits needed to complete the level.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_target_exits gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_target_exits{level=%q} %d\n", id, m.TargetExits)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_score Current score.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_score gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_score{level=%q} %d\n", id, m.Score)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_elapsed_seconds Simulated time since level start.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_elapsed_seconds gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_elapsed_seconds{level=%q} %.3f\n", id, float64(m.ElapsedMs)/1000)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_finished Level outcome flags (0/1).\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_finished gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_finished{level=%q,outcome=%q} %d\n", id, "completed", boolGauge(m.Completed))
	fmt.Fprintf(rw, "pixelpioneers_level_finished{level=%q,outcome=%q} %d\n", id, "failed", boolGauge(m.Failed))

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_clients Current number of connected clients.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_clients gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_clients{level=%q} %d\n", id, m.Clients)

	fmt.Fprintf(rw, "# HELP pixelpioneers_terrain_edits_total Tiles dug or built.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_terrain_edits_total counter\n")
	fmt.Fprintf(rw, "pixelpioneers_terrain_edits_total{level=%q} %d\n", id, m.TerrainEdits)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_resets_total Level restarts.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_resets_total counter\n")
	fmt.Fprintf(rw, "pixelpioneers_level_resets_total{level=%q} %d\n", id, m.ResetTotal)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_queue_depth gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_queue_depth{level=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "pixelpioneers_level_queue_depth{level=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "pixelpioneers_level_queue_depth{level=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)
	fmt.Fprintf(rw, "pixelpioneers_level_queue_depth{level=%q,queue=%q} %d\n", id, "reset", m.QueueDepths.Reset)

	fmt.Fprintf(rw, "# HELP pixelpioneers_level_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_level_step_ms gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_level_step_ms{level=%q} %.3f\n", id, m.StepMS)

	writeIndexMetrics(rw, a.index)
}

func writeIndexMetrics(rw http.ResponseWriter, idx runtimeIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP pixelpioneers_index_queue_depth Current index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP pixelpioneers_index_queue_capacity Index writer queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "pixelpioneers_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP pixelpioneers_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE pixelpioneers_index_dropped_total counter\n")
	fmt.Fprintf(rw, "pixelpioneers_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "pixelpioneers_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "pixelpioneers_index_dropped_total{kind=%q} %d\n", "result", s.DropResultTotal)
}

// handleResults serves the leaderboard: GET /v1/results?level=<id>&limit=<n>.
func (a *serverApp) handleResults(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if a.results == nil {
		http.Error(rw, "results store disabled", http.StatusServiceUnavailable)
		return
	}
	levelID := strings.TrimSpace(r.URL.Query().Get("level"))
	if levelID == "" {
		levelID = a.level.ID()
	}
	limit := 10
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			http.Error(rw, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	top, err := a.results.Top(r.Context(), levelID, limit)
	if err != nil {
		a.logf("results query: %v", err)
		http.Error(rw, "results unavailable", http.StatusInternalServerError)
		return
	}
	if top == nil {
		top = []level.Result{}
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(struct {
		LevelID string         `json:"level_id"`
		Results []level.Result `json:"results"`
	}{LevelID: levelID, Results: top})
}

func (a *serverApp) handleAdminState(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	resp := struct {
		LevelID string        `json:"level_id"`
		Tick    uint64        `json:"tick"`
		Metrics level.Metrics `json:"metrics"`
	}{
		LevelID: a.level.ID(),
		Tick:    a.level.CurrentTick(),
		Metrics: a.level.Metrics(),
	}
	_ = json.NewEncoder(rw).Encode(resp)
}

// handleAdminReset restarts the level at the next tick boundary.
func (a *serverApp) handleAdminReset(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tick, err := requestReset(ctx, a.level)
	rw.Header().Set("Content-Type", "application/json")
	if err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
		return
	}
	a.logf("admin reset applied at tick %d", tick)
	_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
}

func requestReset(ctx context.Context, l *level.Level) (uint64, error) {
	resp := make(chan level.ResetResponse, 1)
	select {
	case l.ResetRequests() <- level.ResetRequest{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (a *serverApp) logf(format string, args ...any) {
	if a.log != nil {
		a.log.Printf(format, args...)
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
