package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"pixelpioneers.io/internal/sim/level"
)

const maxLineBytes = 8 << 20

// ReadTickLog streams every tick entry under levelDir/events in file order.
// Hour-stamped names sort chronologically.
func ReadTickLog(levelDir string, fn func(level.TickLogEntry) error) error {
	return readDir(filepath.Join(levelDir, "events"), "events", fn)
}

func ReadAuditLog(levelDir string, fn func(level.AuditEntry) error) error {
	return readDir(filepath.Join(levelDir, "audit"), "audit", fn)
}

// Files lists the log files for prefix under dir, oldest first.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func readDir[T any](dir, prefix string, fn func(T) error) error {
	files, err := Files(dir, prefix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s logs in %s: %w", prefix, dir, os.ErrNotExist)
	}
	for _, p := range files {
		if err := readFile(p, fn); err != nil {
			return err
		}
	}
	return nil
}

func readFile[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
