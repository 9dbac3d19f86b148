package terrain

import (
	"crypto/sha256"
	"math"
)

type Tile uint8

const (
	Empty Tile = iota
	Solid
	Exit
)

// Glyphs used by the level text format.
const (
	GlyphEmpty = '.'
	GlyphSolid = '#'
	GlyphExit  = 'E'
)

func (t Tile) String() string {
	switch t {
	case Solid:
		return "SOLID"
	case Exit:
		return "EXIT"
	default:
		return "EMPTY"
	}
}

func (t Tile) Glyph() rune {
	switch t {
	case Solid:
		return GlyphSolid
	case Exit:
		return GlyphExit
	default:
		return GlyphEmpty
	}
}

func TileFromGlyph(r rune) Tile {
	switch r {
	case GlyphSolid:
		return Solid
	case GlyphExit:
		return Exit
	default:
		return Empty
	}
}

// Grid is the level terrain: a rectangular [row][col] tile array with the
// origin at the top-left. Out-of-range lookups behave as Empty.
type Grid struct {
	tileSize int

	rows, cols  int
	cells       []Tile // row-major, len = rows*cols
	pixelWidth  int
	pixelHeight int

	dirty bool
	hash  [32]byte
}

// NewGrid returns an all-Empty grid.
func NewGrid(cols, rows, tileSize int) *Grid {
	g := &Grid{tileSize: tileSize}
	g.Reload(cols, rows, nil)
	return g
}

// Reload replaces the grid contents. cells is row-major and may be nil
// (all Empty); a short slice is padded with Empty. Pixel dimensions are
// recomputed here and nowhere else.
func (g *Grid) Reload(cols, rows int, cells []Tile) {
	if cols <= 0 || rows <= 0 {
		cols, rows = 0, 0
	}
	g.cols, g.rows = cols, rows
	g.cells = make([]Tile, cols*rows)
	copy(g.cells, cells)
	g.pixelWidth = cols * g.tileSize
	g.pixelHeight = rows * g.tileSize
	g.dirty = true
}

func (g *Grid) Cols() int        { return g.cols }
func (g *Grid) Rows() int        { return g.rows }
func (g *Grid) TileSize() int    { return g.tileSize }
func (g *Grid) PixelWidth() int  { return g.pixelWidth }
func (g *Grid) PixelHeight() int { return g.pixelHeight }

func (g *Grid) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

func (g *Grid) index(col, row int) int { return row*g.cols + col }

func (g *Grid) TileAt(col, row int) Tile {
	if !g.InBounds(col, row) {
		return Empty
	}
	return g.cells[g.index(col, row)]
}

// CellAt converts world pixel coordinates to tile indices.
func (g *Grid) CellAt(x, y float64) (col, row int) {
	if g.tileSize <= 0 {
		return -1, -1
	}
	ts := float64(g.tileSize)
	return int(math.Floor(x / ts)), int(math.Floor(y / ts))
}

func (g *Grid) IsSolidAtPoint(x, y float64) bool {
	col, row := g.CellAt(x, y)
	return g.TileAt(col, row) == Solid
}

func (g *Grid) IsExitAtPoint(x, y float64) bool {
	col, row := g.CellAt(x, y)
	return g.TileAt(col, row) == Exit
}

// RemoveTile clears a cell to Empty. Out of range is a no-op.
func (g *Grid) RemoveTile(col, row int) {
	g.set(col, row, Empty)
}

// AddTile sets a cell to kind. Out of range is a no-op.
func (g *Grid) AddTile(col, row int, kind Tile) {
	g.set(col, row, kind)
}

func (g *Grid) AddSolid(col, row int) { g.AddTile(col, row, Solid) }

func (g *Grid) set(col, row int, t Tile) {
	if !g.InBounds(col, row) {
		return
	}
	i := g.index(col, row)
	if g.cells[i] == t {
		return
	}
	g.cells[i] = t
	g.dirty = true
}

func (g *Grid) Count(kind Tile) int {
	n := 0
	for _, t := range g.cells {
		if t == kind {
			n++
		}
	}
	return n
}

func (g *Grid) Clone() *Grid {
	c := &Grid{tileSize: g.tileSize}
	c.Reload(g.cols, g.rows, g.cells)
	return c
}

// CopyFrom reloads g with the contents of src, keeping g's identity.
func (g *Grid) CopyFrom(src *Grid) {
	g.tileSize = src.tileSize
	g.Reload(src.cols, src.rows, src.cells)
}

// TextRows renders the grid in canonical level-file glyphs, one string per row.
func (g *Grid) TextRows() []string {
	out := make([]string, g.rows)
	buf := make([]rune, g.cols)
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			buf[col] = g.cells[g.index(col, row)].Glyph()
		}
		out[row] = string(buf)
	}
	return out
}

// Digest is a sha256 over the dimensions and cells, cached until the next mutation.
func (g *Grid) Digest() [32]byte {
	if g.dirty || g.hash == ([32]byte{}) {
		h := sha256.New()
		h.Write([]byte{
			byte(g.cols >> 8), byte(g.cols),
			byte(g.rows >> 8), byte(g.rows),
		})
		b := make([]byte, len(g.cells))
		for i, t := range g.cells {
			b[i] = byte(t)
		}
		h.Write(b)
		copy(g.hash[:], h.Sum(nil))
		g.dirty = false
	}
	return g.hash
}
