package terrain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse_RaggedRowsUseFirstLineWidth(t *testing.T) {
	g, err := ParseString("####\n#\n#E###x\n", 16)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if g.Cols() != 4 || g.Rows() != 3 {
		t.Fatalf("dims = %dx%d", g.Cols(), g.Rows())
	}
	if g.TileAt(1, 1) != Empty || g.TileAt(3, 1) != Empty {
		t.Fatalf("short row not padded with Empty")
	}
	if g.TileAt(1, 2) != Exit {
		t.Fatalf("TileAt(1,2)=%v", g.TileAt(1, 2))
	}
	if g.TileAt(4, 2) != Empty {
		t.Fatalf("long row not truncated")
	}
}

func TestParse_UnknownGlyphsAreEmpty(t *testing.T) {
	g, _ := ParseString("a #\n", 16)
	if g.TileAt(0, 0) != Empty || g.TileAt(1, 0) != Empty || g.TileAt(2, 0) != Solid {
		t.Fatalf("unexpected tiles: %v", g.TextRows())
	}
	if got := EncodeString(g); got != "..#\n" {
		t.Fatalf("encode = %q", got)
	}
}

func TestParse_CRLF(t *testing.T) {
	g, _ := ParseString("#E\r\n..\r\n", 16)
	if g.Cols() != 2 || g.Rows() != 2 {
		t.Fatalf("dims = %dx%d", g.Cols(), g.Rows())
	}
	if g.TileAt(1, 0) != Exit {
		t.Fatalf("TileAt(1,0)=%v", g.TileAt(1, 0))
	}
}

func TestParse_EmptyInput(t *testing.T) {
	g, err := ParseString("", 16)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if g.Cols() != 0 || g.Rows() != 0 || g.PixelWidth() != 0 || g.PixelHeight() != 0 {
		t.Fatalf("expected zero-size grid")
	}
	if g.IsSolidAtPoint(0, 0) || g.IsExitAtPoint(0, 0) {
		t.Fatalf("zero-size grid must answer false")
	}
	g.RemoveTile(0, 0)
	g.AddSolid(0, 0)
	if got := EncodeString(g); got != "" {
		t.Fatalf("encode = %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"), 16)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrLevelNotFound) {
		t.Fatalf("expected ErrLevelNotFound, got %v", err)
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
}

func TestLoadSave_RoundTrip(t *testing.T) {
	const src = "..........\n" +
		"..........\n" +
		"....##....\n" +
		"..........\n" +
		"#########E\n"
	dir := t.TempDir()
	in := filepath.Join(dir, "level.txt")
	if err := os.WriteFile(in, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g, err := Load(in, 16)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out := filepath.Join(dir, "sub", "saved.txt")
	if err := Save(out, g); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != src {
		t.Fatalf("round trip mismatch:\n%q\nvs\n%q", got, src)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
