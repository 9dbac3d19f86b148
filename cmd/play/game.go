package main

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell"

	"pixelpioneers.io/internal/sim/lemming"
	"pixelpioneers.io/internal/sim/level"
	"pixelpioneers.io/internal/sim/terrain"
)

// game adapts a level to a terminal: one cell per tile, a status line on
// top and a key bar at the bottom. All methods run on the UI goroutine.
type game struct {
	level *level.Level
	dt    time.Duration

	pending []level.Command
	reset   bool
	paused  bool

	// Map origin on screen and the first tile column/row drawn there.
	originY        int
	offCol, offRow int
}

var skillKeys = map[rune]lemming.Skill{
	'1': lemming.SkillDig,
	'2': lemming.SkillBuild,
	'3': lemming.SkillBlock,
}

var (
	styleSolid   = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	styleExit    = tcell.StyleDefault.Foreground(tcell.ColorLightGreen).Bold(true)
	styleLemming = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleStatus  = tcell.StyleDefault.Reverse(true)
	styleDone    = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

func newGame(l *level.Level) *game {
	return &game{level: l, dt: l.Config().TickDuration(), originY: 1}
}

// step applies queued input and advances one tick, the same ordering the
// networked runtime uses.
func (g *game) step() {
	if g.paused && !g.reset {
		return
	}
	g.level.StepOnce(g.pending, g.reset, g.dt)
	g.pending = g.pending[:0]
	g.reset = false
}

// handle reacts to one terminal event and reports whether to quit.
func (g *game) handle(ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyRune:
			r := ev.Rune()
			if s, ok := skillKeys[r]; ok {
				g.pending = append(g.pending, level.SelectSkill(s))
				return false
			}
			switch r {
			case 'q', 'Q':
				return true
			case 'r', 'R':
				g.reset = true
			case 'p', 'P':
				g.paused = !g.paused
			}
		}
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 == 0 {
			return false
		}
		x, y := ev.Position()
		if cmd, ok := g.clickAt(x, y); ok {
			g.pending = append(g.pending, cmd)
		}
	}
	return false
}

// clickAt turns a screen cell into a click in world pixels. A lemming in the
// cell is targeted at its center; otherwise the tile center is used.
func (g *game) clickAt(x, y int) (level.Command, bool) {
	v := g.level.View()
	col, row := x+g.offCol, y-g.originY+g.offRow
	if y < g.originY || col < 0 || row < 0 || col >= v.Cols || row >= v.Rows {
		return level.Command{}, false
	}
	t := float64(v.TileSize)
	for _, lm := range v.Lemmings {
		cx, cy := lm.X+lm.W/2, lm.Y+lm.H/2
		if int(math.Floor(cx/t)) == col && int(math.Floor(cy/t)) == row {
			return level.Click(cx, cy, lemming.SkillNone), true
		}
	}
	return level.Click((float64(col)+0.5)*t, (float64(row)+0.5)*t, lemming.SkillNone), true
}

func (g *game) draw(scr tcell.Screen) {
	scr.Clear()
	w, h := scr.Size()
	v := g.level.View()
	mapH := h - 2
	if mapH < 0 {
		mapH = 0
	}
	g.follow(v, w, mapH)

	for y := 0; y < mapH && y+g.offRow < v.Rows; y++ {
		line := v.Tiles[y+g.offRow]
		for x := 0; x < w && x+g.offCol < len(line); x++ {
			switch line[x+g.offCol] {
			case terrain.GlyphSolid:
				scr.SetContent(x, y+g.originY, terrain.GlyphSolid, nil, styleSolid)
			case terrain.GlyphExit:
				scr.SetContent(x, y+g.originY, terrain.GlyphExit, nil, styleExit)
			}
		}
	}
	t := float64(v.TileSize)
	for _, lm := range v.Lemmings {
		x := int(math.Floor((lm.X+lm.W/2)/t)) - g.offCol
		y := int(math.Floor((lm.Y+lm.H/2)/t)) - g.offRow
		if x < 0 || y < 0 || x >= w || y >= mapH {
			continue
		}
		scr.SetContent(x, y+g.originY, lemmingGlyph(lm), nil, styleLemming)
	}

	drawText(scr, 0, 0, w, styleStatus, g.statusLine(v))
	if h > 1 {
		drawText(scr, 0, h-1, w, tcell.StyleDefault, "[1]dig [2]build [3]block  click:assign  [p]ause [r]estart [q]uit")
	}
	if v.Completed || v.Failed {
		msg := fmt.Sprintf(" LEVEL FAILED  score %d ", v.Score)
		if v.Completed {
			msg = fmt.Sprintf(" LEVEL COMPLETE  score %d ", v.Score)
		}
		drawText(scr, max(0, (w-len(msg))/2), g.originY+mapH/2, w, styleDone, msg)
	}
	scr.Show()
}

// follow centers the drawn window on the level camera, clamped to the map.
func (g *game) follow(v level.View, w, h int) {
	t := v.TileSize
	cx := (v.Viewport.X + v.Viewport.W/2) / t
	cy := (v.Viewport.Y + v.Viewport.H/2) / t
	g.offCol = clampInt(cx-w/2, 0, max(0, v.Cols-w))
	g.offRow = clampInt(cy-h/2, 0, max(0, v.Rows-h))
}

func (g *game) statusLine(v level.View) string {
	skill := string(v.SelectedSkill)
	if skill == "" {
		skill = "-"
	}
	release := "inf"
	if v.ReleaseCount > 0 {
		release = fmt.Sprintf("%d", v.ReleaseCount)
	}
	s := fmt.Sprintf("%s  out %d/%s  saved %d/%d  lost %d  time %ds  score %d  skill %s",
		v.LevelID, v.Spawned, release, v.ExitCount, v.TargetExits, v.Lost, v.ElapsedMs/1000, v.Score, skill)
	if g.paused {
		s += "  [paused]"
	}
	return s
}

func lemmingGlyph(lm level.LemmingView) rune {
	switch lm.State {
	case lemming.Falling:
		return 'v'
	case lemming.Digging:
		return 'D'
	case lemming.Building:
		return 'B'
	case lemming.Blocking:
		return 'X'
	}
	if lm.Facing < 0 {
		return '<'
	}
	return '>'
}

func drawText(scr tcell.Screen, x, y, w int, style tcell.Style, s string) {
	for _, r := range s {
		if x >= w {
			return
		}
		scr.SetContent(x, y, r, nil, style)
		x++
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
