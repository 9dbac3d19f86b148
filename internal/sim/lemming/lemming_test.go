package lemming

import (
	"testing"

	"pixelpioneers.io/internal/sim/terrain"
)

var testParams = Params{
	TileSize:     16,
	Width:        8,
	Height:       8,
	WalkSpeed:    1,
	Gravity:      0.2,
	MaxFallSpeed: 4,
}

func mustGrid(t *testing.T, src string) *terrain.Grid {
	t.Helper()
	g, err := terrain.ParseString(src, 16)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return g
}

func TestNew_PlacesMidBottom(t *testing.T) {
	l := New("L1", 40, 32, testParams)
	if l.X != 36 || l.Y != 24 {
		t.Fatalf("pos=(%v,%v) want (36,24)", l.X, l.Y)
	}
	if l.State != Walking || l.Facing != 1 || l.VX != 1 || l.VY != 0 {
		t.Fatalf("unexpected initial state: %+v", l)
	}
}

func TestWalking_ReversesAtWall(t *testing.T) {
	g := mustGrid(t, ""+
		"....\n"+
		"..#.\n"+
		"####\n")
	l := New("L1", 0, 32, testParams)
	l.X = 23.5
	l.Y = 24

	l.Update(g, []*Lemming{l})

	if l.Facing != -1 {
		t.Fatalf("facing=%d want -1", l.Facing)
	}
	if l.X != 23.5 || l.Y != 24 {
		t.Fatalf("moved to (%v,%v)", l.X, l.Y)
	}
	if l.State != Walking {
		t.Fatalf("state=%v", l.State)
	}
}

func TestWalking_CommitsMoveOnFlatGround(t *testing.T) {
	g := mustGrid(t, "....\n####\n")
	l := New("L1", 24, 16, testParams)
	x0 := l.X
	l.Update(g, []*Lemming{l})
	if l.X != x0+1 || l.State != Walking {
		t.Fatalf("x=%v state=%v", l.X, l.State)
	}

	l.Facing = -1
	l.Update(g, []*Lemming{l})
	if l.X != x0 {
		t.Fatalf("walking left: x=%v want %v", l.X, x0)
	}
}

func TestWalking_LedgeStartsFallingWithoutMoving(t *testing.T) {
	g := mustGrid(t, ""+
		"....\n"+
		"##..\n")
	l := New("L1", 0, 16, testParams)
	l.X = 24.5
	l.Y = 8
	l.VY = 1.5

	l.Update(g, []*Lemming{l})

	if l.State != Falling {
		t.Fatalf("state=%v want FALLING", l.State)
	}
	if l.VY != 0 {
		t.Fatalf("vy=%v want 0", l.VY)
	}
	if l.X != 24.5 {
		t.Fatalf("x=%v want unchanged 24.5", l.X)
	}
}

func TestFalling_SnapsToTileRow(t *testing.T) {
	g := mustGrid(t, ""+
		"....\n"+
		"....\n"+
		"####\n")
	l := New("L1", 8, 28, testParams)
	l.State = Falling
	l.VY = 3.5

	l.Update(g, []*Lemming{l})

	if l.State != Walking {
		t.Fatalf("state=%v want WALKING", l.State)
	}
	if l.Bottom() != 2*16 {
		t.Fatalf("bottom=%v want 32", l.Bottom())
	}
	if l.VY != 0 {
		t.Fatalf("vy=%v", l.VY)
	}
}

func TestFalling_AcceleratesToCap(t *testing.T) {
	g := mustGrid(t, "....\n")
	l := New("L1", 8, 8, testParams)
	l.State = Falling
	l.VX = 0
	for i := 0; i < 100; i++ {
		l.Update(g, []*Lemming{l})
	}
	if l.VY != 4 {
		t.Fatalf("vy=%v want capped at 4", l.VY)
	}
	if l.State != Falling {
		t.Fatalf("state=%v", l.State)
	}
}

func TestFalling_DriftStopsAtWall(t *testing.T) {
	g := mustGrid(t, ""+
		"..#.\n"+
		"..#.\n"+
		"....\n")
	l := New("L1", 0, 12, testParams)
	l.X = 24
	l.State = Falling
	l.Update(g, []*Lemming{l})
	if l.X != 24 {
		t.Fatalf("drifted into wall: x=%v", l.X)
	}
	if l.Y <= 4 {
		t.Fatalf("did not fall: y=%v", l.Y)
	}
}

func TestDig(t *testing.T) {
	g := mustGrid(t, ""+
		"....\n"+
		"####\n"+
		"####\n")
	l := New("L1", 24, 16, testParams)

	if !l.AssignSkill(SkillDig) {
		t.Fatalf("walking lemming rejected dig")
	}
	if l.PendingSkill() != SkillDig {
		t.Fatalf("pending=%q", l.PendingSkill())
	}
	l.Update(g, []*Lemming{l})

	if g.TileAt(1, 1) != terrain.Empty {
		t.Fatalf("tile under center not removed: %v", g.TileAt(1, 1))
	}
	if g.TileAt(0, 1) != terrain.Solid || g.TileAt(2, 1) != terrain.Solid {
		t.Fatalf("neighbours changed")
	}
	if l.State != Falling || l.VY != 0 {
		t.Fatalf("state=%v vy=%v", l.State, l.VY)
	}
	if l.PendingSkill() != SkillNone {
		t.Fatalf("pending not cleared")
	}
}

func TestDig_OnEmptyTileStillFalls(t *testing.T) {
	g := mustGrid(t, "....\n....\n")
	l := New("L1", 24, 16, testParams)
	l.State = Digging
	l.Update(g, []*Lemming{l})
	if l.State != Falling {
		t.Fatalf("state=%v", l.State)
	}
}

func TestBuild(t *testing.T) {
	g := mustGrid(t, ""+
		"....\n"+
		"....\n"+
		"####\n")
	l := New("L1", 24, 32, testParams)
	l.AssignSkill(SkillBuild)
	l.Update(g, []*Lemming{l})

	if g.TileAt(2, 1) != terrain.Solid {
		t.Fatalf("no tile built ahead: %v", g.TextRows())
	}
	if l.State != Walking {
		t.Fatalf("state=%v", l.State)
	}

	l.Facing = -1
	l.State = Building
	l.Update(g, []*Lemming{l})
	if g.TileAt(0, 1) != terrain.Solid {
		t.Fatalf("no tile built behind: %v", g.TextRows())
	}
}

func TestBlock_ZeroesVelocity(t *testing.T) {
	g := mustGrid(t, "....\n")
	l := New("L1", 24, 8, testParams)
	l.State = Falling
	l.VY = 2.2
	l.AssignSkill(SkillBlock)
	l.Update(g, []*Lemming{l})
	if l.State != Blocking || l.VX != 0 || l.VY != 0 {
		t.Fatalf("state=%v vx=%v vy=%v", l.State, l.VX, l.VY)
	}
	x, y := l.X, l.Y
	l.Update(g, []*Lemming{l})
	if l.X != x || l.Y != y {
		t.Fatalf("blocker moved")
	}
}

func TestBlock_WalkerReversesBeforeOverlap(t *testing.T) {
	g := mustGrid(t, ""+
		"........\n"+
		"########\n")
	blocker := New("B", 64, 16, testParams)
	blocker.AssignSkill(SkillBlock)
	walker := New("W", 40, 16, testParams)
	all := []*Lemming{blocker, walker}

	for i := 0; i < 60; i++ {
		blocker.Update(g, all)
		walker.Update(g, all)
		if walker.Right() > blocker.X {
			t.Fatalf("tick %d: walker overlaps blocker (%v > %v)", i, walker.Right(), blocker.X)
		}
	}
	if walker.Facing != -1 {
		t.Fatalf("walker never turned around")
	}
}

func TestBlock_RemovedBlockerIsIgnored(t *testing.T) {
	g := mustGrid(t, "....\n####\n")
	blocker := New("B", 36, 16, testParams)
	blocker.State = Blocking
	blocker.VX = 0
	blocker.MarkRemoved()
	walker := New("W", 30, 16, testParams)
	walker.Update(g, []*Lemming{blocker, walker})
	if walker.Facing != 1 || walker.X != 27 {
		t.Fatalf("walker blocked by removed lemming: facing=%d x=%v", walker.Facing, walker.X)
	}
}

func TestAssignSkill_Eligibility(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{Walking, true},
		{Falling, true},
		{Digging, false},
		{Building, false},
		{Blocking, false},
	}
	for _, tc := range cases {
		t.Run(tc.state.String(), func(t *testing.T) {
			l := New("L1", 8, 8, testParams)
			l.State = tc.state
			if got := l.AssignSkill(SkillDig); got != tc.want {
				t.Fatalf("AssignSkill=%v want %v", got, tc.want)
			}
		})
	}
}

func TestConsume_IneligibleSkillIsDropped(t *testing.T) {
	g := mustGrid(t, "....\n")
	l := New("L1", 24, 8, testParams)
	l.State = Falling
	l.AssignSkill(SkillDig)
	l.Update(g, []*Lemming{l})
	if l.State != Falling {
		t.Fatalf("state=%v", l.State)
	}
	if l.PendingSkill() != SkillNone {
		t.Fatalf("dropped skill still pending")
	}

	l.AssignSkill("umbrella")
	l.Update(g, []*Lemming{l})
	if l.PendingSkill() != SkillNone || l.State != Falling {
		t.Fatalf("unknown skill not dropped: %q %v", l.PendingSkill(), l.State)
	}
}
