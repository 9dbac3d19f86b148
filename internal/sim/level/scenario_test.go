package level

import (
	"testing"
	"time"
)

var exitMap = []string{
	"..........",
	"..........",
	"..........",
	"..........",
	"..........",
	"..........",
	"..........",
	"..........",
	"..........",
	"#########E",
}

func runUntil(l *Level, maxTicks int, done func() bool) int {
	for i := 0; i < maxTicks; i++ {
		if done() {
			return i
		}
		l.Step(tickDT)
	}
	return maxTicks
}

func TestScenario_SingleLemmingReachesExit(t *testing.T) {
	l := newTestLevel(t, testConfig(), exitMap...)
	l.SpawnLemming()

	n := runUntil(l, 2000, func() bool { return l.ExitCount() == 1 })
	if n == 2000 {
		lms := l.Lemmings()
		if len(lms) > 0 {
			t.Fatalf("no exit after %d ticks; lemming at (%v,%v) state=%v", n, lms[0].X, lms[0].Y, lms[0].State)
		}
		t.Fatalf("no exit after %d ticks; lost=%d", n, l.LostCount())
	}
	if l.LostCount() != 0 {
		t.Fatalf("lost=%d", l.LostCount())
	}
	if !l.Completed() || l.Failed() {
		t.Fatalf("completed=%v failed=%v", l.Completed(), l.Failed())
	}
	if len(l.Lemmings()) != 0 {
		t.Fatalf("exited lemming still live")
	}
}

func TestScenario_CompletionFreezesScore(t *testing.T) {
	l := newTestLevel(t, testConfig(), exitMap...)
	l.SpawnLemming()
	runUntil(l, 2000, l.Completed)
	if !l.Completed() {
		t.Fatalf("level did not complete")
	}

	bonus := 100 - int(l.Elapsed()/time.Second)
	if bonus < 0 {
		bonus = 0
	}
	want := 100 + bonus
	if l.Score() != want {
		t.Fatalf("score=%d want %d (elapsed %v)", l.Score(), want, l.Elapsed())
	}

	elapsed := l.Elapsed()
	grid := l.Grid().Digest()
	for i := 0; i < 200; i++ {
		l.Step(time.Second)
	}
	if l.Elapsed() != elapsed || l.Score() != want || l.ExitCount() != 1 || l.Grid().Digest() != grid {
		t.Fatalf("completed level kept changing")
	}
}

func TestScenario_CompletesWithAutomaticSpawns(t *testing.T) {
	cfg := testConfig()
	cfg.SpawnInterval = 2 * time.Second
	cfg.TargetExits = 2
	l := newTestLevel(t, cfg, exitMap...)

	runUntil(l, 60*60, l.Finished)
	if !l.Completed() {
		t.Fatalf("completed=%v failed=%v exits=%d", l.Completed(), l.Failed(), l.ExitCount())
	}
	if l.ExitCount() != 2 {
		t.Fatalf("exits=%d want exactly the target", l.ExitCount())
	}
	if l.Score() < 200 {
		t.Fatalf("score=%d", l.Score())
	}
}

func TestScenario_FallingOffTheMapIsLost(t *testing.T) {
	cfg := testConfig()
	cfg.SpawnRow = 1
	l := newTestLevel(t, cfg, "....", "###.", "....")
	l.SpawnLemming()

	runUntil(l, 500, func() bool { return len(l.Lemmings()) == 0 })
	if len(l.Lemmings()) != 0 {
		t.Fatalf("lemming never left the map")
	}
	if l.LostCount() != 1 || l.ExitCount() != 0 {
		t.Fatalf("lost=%d exits=%d", l.LostCount(), l.ExitCount())
	}
	if l.Finished() {
		t.Fatalf("unlimited release should not fail")
	}
}

func TestScenario_LemmingsCollectOnFloorBetweenWalls(t *testing.T) {
	cfg := testConfig()
	cfg.SpawnInterval = 500 * time.Millisecond
	cfg.ReleaseCount = 3
	l := newTestLevel(t, cfg,
		"#......#",
		"#......#",
		"#......#",
		"########",
	)
	runUntil(l, 60*20, func() bool { return false })

	if l.SpawnedCount() != 3 || len(l.Lemmings()) != 3 {
		t.Fatalf("spawned=%d live=%d", l.SpawnedCount(), len(l.Lemmings()))
	}
	for _, lm := range l.Lemmings() {
		if lm.Bottom() != 48 {
			t.Fatalf("%s bottom=%v want 48", lm.ID, lm.Bottom())
		}
		if lm.X < 16 || lm.Right() > 112 {
			t.Fatalf("%s escaped walls: x=%v", lm.ID, lm.X)
		}
	}
}
