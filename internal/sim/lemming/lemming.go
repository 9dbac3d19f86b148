package lemming

import "math"

type State uint8

const (
	Walking State = iota
	Falling
	Digging
	Building
	Blocking
)

func (s State) String() string {
	switch s {
	case Walking:
		return "WALKING"
	case Falling:
		return "FALLING"
	case Digging:
		return "DIGGING"
	case Building:
		return "BUILDING"
	case Blocking:
		return "BLOCKING"
	default:
		return "UNKNOWN"
	}
}

// Skill names a one-shot behavior change. Any string is accepted by
// AssignSkill; names other than the known three are dropped when consumed.
type Skill string

const (
	SkillNone  Skill = ""
	SkillDig   Skill = "dig"
	SkillBuild Skill = "build"
	SkillBlock Skill = "block"
)

func (s Skill) Known() bool {
	switch s {
	case SkillDig, SkillBuild, SkillBlock:
		return true
	}
	return false
}

// Terrain is the slice of the tile grid a lemming reads and mutates.
type Terrain interface {
	TileSize() int
	IsSolidAtPoint(x, y float64) bool
	RemoveTile(col, row int)
	AddSolid(col, row int)
}

// Params holds per-level movement constants. Values are in pixels and
// pixels per tick.
type Params struct {
	TileSize     int
	Width        float64
	Height       float64
	WalkSpeed    float64
	Gravity      float64
	MaxFallSpeed float64
}

// Lemming is one agent. X,Y is the top-left corner of its box in world pixels.
type Lemming struct {
	ID string

	X, Y float64
	W, H float64

	// VX is a speed magnitude; direction comes from Facing.
	VX     float64
	VY     float64
	Facing int
	State  State

	pending Skill
	removed bool

	gravity      float64
	maxFallSpeed float64
}

// New places a lemming so its bottom-center sits at (midX, bottom), walking right.
func New(id string, midX, bottom float64, p Params) *Lemming {
	return &Lemming{
		ID:           id,
		X:            midX - p.Width/2,
		Y:            bottom - p.Height,
		W:            p.Width,
		H:            p.Height,
		VX:           p.WalkSpeed,
		Facing:       1,
		State:        Walking,
		gravity:      p.Gravity,
		maxFallSpeed: p.MaxFallSpeed,
	}
}

func (l *Lemming) CenterX() float64 { return l.X + l.W/2 }
func (l *Lemming) CenterY() float64 { return l.Y + l.H/2 }
func (l *Lemming) Bottom() float64  { return l.Y + l.H }
func (l *Lemming) Right() float64   { return l.X + l.W }

func (l *Lemming) PendingSkill() Skill { return l.pending }

// Removed reports whether the level has marked this lemming for removal.
// Removed lemmings are ignored by other lemmings' blocker checks.
func (l *Lemming) Removed() bool { return l.removed }

func (l *Lemming) MarkRemoved() { l.removed = true }

// Contains reports whether a world point lies inside the box (right and bottom edges exclusive).
func (l *Lemming) Contains(x, y float64) bool {
	return x >= l.X && x < l.X+l.W && y >= l.Y && y < l.Y+l.H
}

// AssignSkill records a pending skill. Only Walking and Falling lemmings
// accept one; it is applied at the start of the next Update.
func (l *Lemming) AssignSkill(s Skill) bool {
	if l.State != Walking && l.State != Falling {
		return false
	}
	l.pending = s
	return true
}

func overlaps(ax, ay, aw, ah float64, b *Lemming) bool {
	return ax < b.X+b.W && ax+aw > b.X && ay < b.Y+b.H && ay+ah > b.Y
}

func tileOf(v float64, tileSize int) int {
	return int(math.Floor(v / float64(tileSize)))
}
