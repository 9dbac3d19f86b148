package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "pixelpioneers.io/internal/persistence/log"
	"pixelpioneers.io/internal/persistence/results"
	"pixelpioneers.io/internal/protocol"
	"pixelpioneers.io/internal/sim/level"
	"pixelpioneers.io/internal/sim/levelset"
	"pixelpioneers.io/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		levelsPath = flag.String("levels", "", "path to levels.yaml (default: <configs>/levels.yaml)")
		levelID    = flag.String("level", "", "level id to serve (default: default_level_id from levels.yaml)")
		rootDir    = flag.String("root", ".", "directory level map paths are resolved against")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (ticks/audits/results index)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	lp := strings.TrimSpace(*levelsPath)
	if lp == "" {
		lp = filepath.Join(*configDir, "levels.yaml")
	}
	levels, err := levelset.Load(lp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load levels: %v", err)
		}
		logger.Printf("levels not found (%s); using defaults", lp)
		levels, _ = levelset.Load("")
	}

	id := strings.TrimSpace(*levelID)
	if id == "" {
		id = levels.DefaultLevelID
	}
	spec, ok := levels.LevelByID(id)
	if !ok {
		logger.Fatalf("unknown level %q", id)
	}
	lvl, err := spec.Open(*rootDir, tune)
	if err != nil {
		logger.Fatalf("open level: %v", err)
	}
	lvl.SetLogger(logger)
	logger.Printf("level %s (%s) loaded: %dx%d tiles target=%d release=%d",
		spec.ID, spec.Title, lvl.Grid().Cols(), lvl.Grid().Rows(), lvl.Config().TargetExits, lvl.Config().ReleaseCount)

	levelDir := filepath.Join(*dataDir, "levels", spec.ID)
	_ = os.MkdirAll(levelDir, 0o755)

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(levelDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertConfig("tuning", tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
		if err := idx.UpsertConfig("level", spec); err != nil {
			logger.Printf("index backend: upsert level: %v", err)
		}
	}

	store, err := openResultsStore(*dataDir)
	if err != nil {
		logger.Fatalf("open results store: %v", err)
	}
	defer store.Close()

	tickLog := persistlog.NewTickLogger(levelDir)
	auditLog := persistlog.NewAuditLogger(levelDir)
	defer tickLog.Close()
	defer auditLog.Close()
	tl := multiTickLogger{a: tickLog}
	al := multiAuditLogger{a: auditLog}
	if idx != nil {
		tl.b = idx
		al.b = idx
	}
	lvl.SetTickLogger(tl)
	lvl.SetAuditLogger(al)

	ctx, cancel := signalContext()
	defer cancel()

	resultCh := make(chan level.Result, 16)
	lvl.SetResultSink(resultCh)
	go recordResults(ctx, resultCh, store, idx, logger)

	go func() {
		if err := lvl.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("level stopped: %v", err)
		}
	}()

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("protocol schemas: %v", err)
	}

	app := &serverApp{
		level:     lvl,
		index:     idx,
		results:   store,
		validator: validator,
		log:       logger,
	}
	mux := app.routes(routeOptions{
		EnableAdmin: envBool("PP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("PP_ENABLE_PPROF_HTTP", false),
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// recordResults persists finished runs until ctx ends.
func recordResults(ctx context.Context, ch <-chan level.Result, store results.Store, idx runtimeIndex, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-ch:
			if idx != nil {
				idx.RecordResult(r)
			}
			if store == nil {
				continue
			}
			ctx2, cancel2 := context.WithTimeout(ctx, 5*time.Second)
			if err := store.Record(ctx2, r); err != nil {
				logger.Printf("results store: %v", err)
			}
			cancel2()
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

type multiTickLogger struct {
	a level.TickLogger
	b level.TickLogger
}

func (m multiTickLogger) WriteTick(entry level.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a level.AuditLogger
	b level.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry level.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
