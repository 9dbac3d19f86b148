package level

import (
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"pixelpioneers.io/internal/protocol"
	"pixelpioneers.io/internal/sim/lemming"
	"pixelpioneers.io/internal/sim/terrain"
)

// Level is a single-threaded authoritative simulation of one map.
// All state must be accessed only from the goroutine driving Step (Run, when networked).
type Level struct {
	cfg    Config
	params lemming.Params

	pristine *terrain.Grid
	grid     *terrain.Grid
	terrain  *auditedTerrain

	// Live lemmings in spawn order; lemmings[0] is the anchor.
	lemmings   []*lemming.Lemming
	nextLemNum uint64

	elapsed    time.Duration
	spawnAcc   time.Duration
	spawned    int
	exitCount  int
	lostCount  int
	completed  bool
	failed     bool
	finishedAt time.Duration
	finalScore int

	viewport Rect
	selected lemming.Skill

	tick atomic.Uint64
	rec  stepRecord

	inbox   chan Command
	join    chan JoinRequest
	leave   chan string
	reset   chan ResetRequest
	stop    chan struct{}
	clients map[string]*clientState

	nextClientNum atomic.Uint64
	terrainEdits  atomic.Uint64
	resetTotal    atomic.Uint64
	metrics       atomic.Value

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
	resultSink  chan<- Result
	logger      *log.Logger
}

type Rect struct {
	X, Y int
	W, H int
}

// stepRecord collects what happened during one Step for logs and STATE.
type stepRecord struct {
	spawned []string
	exited  []string
	lost    []string
	edits   []protocol.TileEdit
}

func (r *stepRecord) clear() {
	r.spawned = r.spawned[:0]
	r.exited = r.exited[:0]
	r.lost = r.lost[:0]
	r.edits = r.edits[:0]
}

// New builds a level over grid. The grid's current contents become the
// pristine copy that Reset restores.
func New(cfg Config, grid *terrain.Grid) (*Level, error) {
	cfg.applyDefaults()
	if grid == nil {
		return nil, fmt.Errorf("level %s: nil grid", cfg.ID)
	}
	if grid.TileSize() != cfg.TileSize {
		return nil, fmt.Errorf("level %s: grid tile size %d does not match config tile size %d", cfg.ID, grid.TileSize(), cfg.TileSize)
	}
	l := &Level{
		cfg:      cfg,
		params:   cfg.lemmingParams(),
		pristine: grid.Clone(),
		grid:     grid,
		viewport: Rect{W: cfg.ViewportWidth, H: cfg.ViewportHeight},
		inbox:    make(chan Command, 1024),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		reset:    make(chan ResetRequest, 8),
		stop:     make(chan struct{}),
		clients:  map[string]*clientState{},
	}
	l.terrain = &auditedTerrain{l: l}
	return l, nil
}

func (l *Level) SetTickLogger(t TickLogger)     { l.tickLogger = t }
func (l *Level) SetAuditLogger(a AuditLogger)   { l.auditLogger = a }
func (l *Level) SetResultSink(ch chan<- Result) { l.resultSink = ch }
func (l *Level) SetLogger(lg *log.Logger)       { l.logger = lg }
func (l *Level) ID() string                     { return l.cfg.ID }
func (l *Level) Config() Config                 { return l.cfg }
func (l *Level) Grid() *terrain.Grid            { return l.grid }
func (l *Level) CurrentTick() uint64            { return l.tick.Load() }
func (l *Level) Elapsed() time.Duration         { return l.elapsed }
func (l *Level) ExitCount() int                 { return l.exitCount }
func (l *Level) LostCount() int                 { return l.lostCount }
func (l *Level) SpawnedCount() int              { return l.spawned }
func (l *Level) Completed() bool                { return l.completed }
func (l *Level) Failed() bool                   { return l.failed }
func (l *Level) Finished() bool                 { return l.completed || l.failed }
func (l *Level) Viewport() Rect                 { return l.viewport }
func (l *Level) SelectedSkill() lemming.Skill   { return l.selected }

// Lemmings returns the live lemmings in spawn order. The slice is a copy;
// the lemmings are not.
func (l *Level) Lemmings() []*lemming.Lemming {
	out := make([]*lemming.Lemming, len(l.lemmings))
	copy(out, l.lemmings)
	return out
}

func (l *Level) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}

// Step advances the simulation by dt. It does nothing once the level has
// completed or failed.
func (l *Level) Step(dt time.Duration) {
	if l.Finished() {
		return
	}
	if dt < 0 {
		dt = 0
	}
	l.elapsed += dt

	l.spawnAcc += dt
	for l.spawnAcc >= l.cfg.SpawnInterval {
		l.spawnAcc -= l.cfg.SpawnInterval
		if l.releaseLeft() {
			l.SpawnLemming()
		}
	}

	bottom := float64(l.grid.PixelHeight())
	for _, lm := range l.lemmings {
		l.terrain.actor = lm.ID
		lm.Update(l.terrain, l.lemmings)

		if l.grid.IsExitAtPoint(lm.CenterX(), lm.CenterY()) {
			lm.MarkRemoved()
			l.exitCount++
			l.rec.exited = append(l.rec.exited, lm.ID)
			if l.exitCount >= l.cfg.TargetExits {
				l.complete()
				break
			}
			continue
		}
		if lm.Y > bottom {
			lm.MarkRemoved()
			l.lostCount++
			l.rec.lost = append(l.rec.lost, lm.ID)
		}
	}
	l.terrain.actor = ""

	l.compact()
	l.checkFailure()
	l.followAnchor()
}

func (l *Level) releaseLeft() bool {
	return l.cfg.ReleaseCount <= 0 || l.spawned < l.cfg.ReleaseCount
}

// SpawnLemming creates a lemming at the spawn tile: bottom-center on the
// tile's top edge, horizontally centered in the column.
func (l *Level) SpawnLemming() *lemming.Lemming {
	l.nextLemNum++
	ts := float64(l.cfg.TileSize)
	midX := float64(l.cfg.SpawnCol)*ts + ts/2
	bottom := float64(l.cfg.SpawnRow) * ts
	lm := lemming.New(fmt.Sprintf("L%06d", l.nextLemNum), midX, bottom, l.params)
	l.lemmings = append(l.lemmings, lm)
	l.spawned++
	l.rec.spawned = append(l.rec.spawned, lm.ID)
	return lm
}

func (l *Level) compact() {
	n := 0
	for _, lm := range l.lemmings {
		if lm.Removed() {
			continue
		}
		l.lemmings[n] = lm
		n++
	}
	for i := n; i < len(l.lemmings); i++ {
		l.lemmings[i] = nil
	}
	l.lemmings = l.lemmings[:n]
}

func (l *Level) complete() {
	l.completed = true
	l.finishedAt = l.elapsed
	l.finalScore = scoreFor(l.exitCount, l.finishedAt)
}

func (l *Level) checkFailure() {
	if l.Finished() {
		return
	}
	timedOut := l.cfg.TimeLimit > 0 && l.elapsed >= l.cfg.TimeLimit
	exhausted := l.cfg.ReleaseCount > 0 && l.spawned >= l.cfg.ReleaseCount && len(l.lemmings) == 0
	if timedOut || exhausted {
		l.failed = true
		l.finishedAt = l.elapsed
		l.finalScore = scoreFor(l.exitCount, l.finishedAt)
	}
}

func (l *Level) followAnchor() {
	if len(l.lemmings) == 0 {
		return
	}
	a := l.lemmings[0]
	vw, vh := l.cfg.ViewportWidth, l.cfg.ViewportHeight
	x := int(math.Floor(a.CenterX())) - vw/2
	y := int(math.Floor(a.CenterY())) - vh/2
	l.viewport = Rect{
		X: clampInt(x, 0, max(0, l.grid.PixelWidth()-vw)),
		Y: clampInt(y, 0, max(0, l.grid.PixelHeight()-vh)),
		W: vw,
		H: vh,
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

func scoreFor(exits int, elapsed time.Duration) int {
	bonus := 100 - int(math.Floor(elapsed.Seconds()))
	if bonus < 0 {
		bonus = 0
	}
	return exits*100 + bonus
}

// Score is frozen once the level finishes; before that it is computed from
// the current elapsed time.
func (l *Level) Score() int {
	if l.Finished() {
		return l.finalScore
	}
	return scoreFor(l.exitCount, l.elapsed)
}

// HandleCommand applies one input. For a click it returns the id of the
// lemming that accepted the skill, or "" if none did.
func (l *Level) HandleCommand(cmd Command) string {
	switch cmd.Kind {
	case CmdSelectSkill:
		if cmd.Skill == lemming.SkillNone || cmd.Skill == l.selected {
			l.selected = lemming.SkillNone
		} else {
			l.selected = cmd.Skill
		}
	case CmdClick:
		skill := cmd.Skill
		if skill == lemming.SkillNone {
			skill = l.selected
		}
		if skill == lemming.SkillNone {
			return ""
		}
		for _, lm := range l.lemmings {
			if lm.Removed() || !lm.Contains(cmd.X, cmd.Y) {
				continue
			}
			if lm.AssignSkill(skill) {
				return lm.ID
			}
			return ""
		}
	}
	return ""
}

// Reset restarts the level from its pristine map. It is a restart, not a
// restore: every lemming, counter and the clock go back to zero. The tick
// counter keeps running.
func (l *Level) Reset() {
	l.grid.CopyFrom(l.pristine)
	for i := range l.lemmings {
		l.lemmings[i] = nil
	}
	l.lemmings = l.lemmings[:0]
	l.nextLemNum = 0
	l.elapsed = 0
	l.spawnAcc = 0
	l.spawned = 0
	l.exitCount = 0
	l.lostCount = 0
	l.completed = false
	l.failed = false
	l.finishedAt = 0
	l.finalScore = 0
	l.viewport = Rect{W: l.cfg.ViewportWidth, H: l.cfg.ViewportHeight}
	l.selected = lemming.SkillNone
	l.rec.clear()
	l.resetTotal.Add(1)
}

func (l *Level) result(nowTick uint64, at time.Time) Result {
	outcome := OutcomeCompleted
	if l.failed {
		outcome = OutcomeFailed
	}
	return Result{
		LevelID:     l.cfg.ID,
		Outcome:     outcome,
		ExitCount:   l.exitCount,
		TargetExits: l.cfg.TargetExits,
		Spawned:     l.spawned,
		Lost:        l.lostCount,
		Score:       l.Score(),
		ElapsedMs:   l.finishedAt.Milliseconds(),
		Tick:        nowTick,
		FinishedAt:  at.UTC(),
	}
}
