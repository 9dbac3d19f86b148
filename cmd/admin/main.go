package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	persistlog "pixelpioneers.io/internal/persistence/log"
	"pixelpioneers.io/internal/sim/level"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "reset":
			resetCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "levels"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

// auditCmd prints terrain edits from the audit log, optionally limited to a
// tick range, a tile rectangle, an actor and an action.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	levelID := fs.String("level", "", "level id")
	rect := fs.String("rect", "", "tile rectangle filter: c1,r1:c2,r2 (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	actor := fs.String("actor", "", "lemming id filter (optional)")
	action := fs.String("action", "", "DIG or BUILD (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*levelID) == "" {
		fmt.Fprintln(os.Stderr, "missing -level")
		os.Exit(2)
	}
	f := auditFilter{
		SinceTick: *sinceTick,
		ToTick:    *toTick,
		Actor:     strings.TrimSpace(*actor),
		Action:    strings.ToUpper(strings.TrimSpace(*action)),
	}
	if strings.TrimSpace(*rect) != "" {
		min, max, err := parseRect(*rect)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -rect:", err)
			os.Exit(2)
		}
		f.Rect, f.Min, f.Max = true, min, max
	}

	recs, err := readAudit(filepath.Join(*dataDir, "levels", *levelID), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, e := range recs {
		printJSON(e)
	}
	fmt.Fprintf(os.Stderr, "%d matching edits\n", len(recs))
}

type auditFilter struct {
	SinceTick uint64
	ToTick    uint64 // 0 means no upper bound
	Actor     string
	Action    string

	Rect     bool
	Min, Max [2]int
}

func (f auditFilter) match(e level.AuditEntry) bool {
	if e.Tick < f.SinceTick || (f.ToTick != 0 && e.Tick > f.ToTick) {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Rect && !withinRect(e.Col, e.Row, f.Min, f.Max) {
		return false
	}
	return true
}

func readAudit(levelDir string, f auditFilter) ([]level.AuditEntry, error) {
	out := make([]level.AuditEntry, 0, 256)
	err := persistlog.ReadAuditLog(levelDir, func(e level.AuditEntry) error {
		if f.match(e) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func withinRect(col, row int, min, max [2]int) bool {
	return col >= min[0] && col <= max[0] && row >= min[1] && row <= max[1]
}

func parseRect(s string) (min, max [2]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected c1,r1:c2,r2")
	}
	a, err := parseVec2(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec2(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 2; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec2(s string) ([2]int, error) {
	var v [2]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return v, fmt.Errorf("expected col,row")
	}
	for i := 0; i < 2; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}
