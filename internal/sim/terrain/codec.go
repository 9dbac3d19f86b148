package terrain

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrLevelNotFound is matched (errors.Is) by load errors caused by a missing level file.
var ErrLevelNotFound = errors.New("level file not found")

type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load level %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool {
	return target == ErrLevelNotFound && errors.Is(e.Err, fs.ErrNotExist)
}

// Parse reads the level text format. The row width comes from the first
// line: shorter rows are padded with Empty and longer rows are truncated.
// Empty input yields a zero-size grid.
func Parse(r io.Reader, tileSize int) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines [][]rune
	for sc.Scan() {
		lines = append(lines, []rune(strings.TrimSuffix(sc.Text(), "\r")))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	rows := len(lines)
	cols := 0
	if rows > 0 {
		cols = len(lines[0])
	}
	g := &Grid{tileSize: tileSize}
	if rows == 0 || cols == 0 {
		g.Reload(0, 0, nil)
		return g, nil
	}

	cells := make([]Tile, rows*cols)
	for row, line := range lines {
		for col := 0; col < cols && col < len(line); col++ {
			cells[row*cols+col] = TileFromGlyph(line[col])
		}
	}
	g.Reload(cols, rows, cells)
	return g, nil
}

func ParseString(s string, tileSize int) (*Grid, error) {
	return Parse(strings.NewReader(s), tileSize)
}

// Load reads a level file. A missing file is reported as a *LoadError matching ErrLevelNotFound.
func Load(path string, tileSize int) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	g, err := Parse(f, tileSize)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return g, nil
}

// Encode writes canonical glyphs, one newline-terminated line per row.
func Encode(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	for _, row := range g.TextRows() {
		if _, err := bw.WriteString(row); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func EncodeString(g *Grid) string {
	var buf bytes.Buffer
	_ = Encode(&buf, g)
	return buf.String()
}

// Save writes the grid via a temp file + rename so a crash never leaves a half-written level.
func Save(path string, g *Grid) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, g); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode level: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
