package levelset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pixelpioneers.io/internal/sim/terrain"
	"pixelpioneers.io/internal/sim/tuning"
)

const repoRoot = "../../.."

func TestLoad_RepoLevelsYAML(t *testing.T) {
	cfg, err := Load(filepath.Join(repoRoot, "configs/levels.yaml"))
	if err != nil {
		t.Fatalf("load levels.yaml: %v", err)
	}
	if cfg.DefaultLevelID != "level1" {
		t.Fatalf("default=%q", cfg.DefaultLevelID)
	}
	for _, spec := range cfg.Levels {
		if _, err := os.Stat(spec.MapPath(repoRoot)); err != nil {
			t.Fatalf("level %s map missing: %v", spec.ID, err)
		}
	}
	l2, ok := cfg.LevelByID("level2")
	if !ok || l2.Spawn == nil || l2.TargetExits != 3 {
		t.Fatalf("level2=%+v ok=%v", l2, ok)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if _, ok := cfg.LevelByID(cfg.DefaultLevelID); !ok {
		t.Fatalf("default level %q missing", cfg.DefaultLevelID)
	}
}

func TestLoad_ErrorsArePrefixed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "levels.yaml")
	if err := os.WriteFile(p, []byte("default_level_id: nope\nlevels:\n  - id: a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(p)
	if err == nil || !strings.HasPrefix(err.Error(), "levels.yaml: ") {
		t.Fatalf("err=%v", err)
	}
}

func TestNormalize_FillsIDsMapsAndDefault(t *testing.T) {
	cfg := Config{Levels: []LevelSpec{{}, {ID: " b "}}}
	cfg.Normalize()
	if cfg.Levels[0].ID != "level1" || cfg.Levels[1].ID != "b" {
		t.Fatalf("ids=%q,%q", cfg.Levels[0].ID, cfg.Levels[1].ID)
	}
	if cfg.Levels[1].Map != filepath.Join("levels", "b.txt") {
		t.Fatalf("map=%q", cfg.Levels[1].Map)
	}
	if cfg.DefaultLevelID != "level1" {
		t.Fatalf("default=%q", cfg.DefaultLevelID)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"duplicate", Config{Levels: []LevelSpec{{ID: "a"}, {ID: "a"}}}},
		{"unknown default", Config{DefaultLevelID: "x", Levels: []LevelSpec{{ID: "a"}}}},
		{"negative target", Config{Levels: []LevelSpec{{ID: "a", TargetExits: -1}}}},
		{"target above release", Config{Levels: []LevelSpec{{ID: "a", TargetExits: 5, ReleaseCount: 2}}}},
		{"negative time", Config{Levels: []LevelSpec{{ID: "a", TimeLimitSec: -1}}}},
		{"negative spawn", Config{Levels: []LevelSpec{{ID: "a", Spawn: &tuning.TilePos{Col: -1}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLevelConfig_OverridesTuning(t *testing.T) {
	tu := tuning.Defaults()
	spec := LevelSpec{ID: "x", TargetExits: 4, ReleaseCount: 9, TimeLimitSec: 30, Spawn: &tuning.TilePos{Col: 7, Row: 3}}
	cfg := spec.LevelConfig(tu)
	if cfg.ID != "x" || cfg.TargetExits != 4 || cfg.ReleaseCount != 9 || cfg.TimeLimit != 30*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.SpawnCol != 7 || cfg.SpawnRow != 3 {
		t.Fatalf("spawn=(%d,%d)", cfg.SpawnCol, cfg.SpawnRow)
	}
	if cfg.TileSize != tu.TileSize || cfg.SpawnInterval != tu.SpawnInterval() {
		t.Fatalf("tuning not inherited: %+v", cfg)
	}

	plain := LevelSpec{ID: "y"}.LevelConfig(tu)
	if plain.TargetExits != tu.TargetExits || plain.SpawnCol != tu.Spawn.Col {
		t.Fatalf("plain=%+v", plain)
	}
}

func TestOpen_MissingMap(t *testing.T) {
	spec := LevelSpec{ID: "ghost", Map: "nope.txt"}
	_, err := spec.Open(t.TempDir(), tuning.Defaults())
	if !errors.Is(err, terrain.ErrLevelNotFound) {
		t.Fatalf("err=%v want ErrLevelNotFound", err)
	}
}

func TestOpen_SpawnOutsideMap(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tiny.txt"), []byte("..\n##\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	spec := LevelSpec{ID: "tiny", Map: "tiny.txt", Spawn: &tuning.TilePos{Col: 5, Row: 1}}
	if _, err := spec.Open(dir, tuning.Defaults()); err == nil {
		t.Fatalf("expected spawn bounds error")
	}
}

func TestOpen_Level1IsCompletableWithoutSkills(t *testing.T) {
	cfg, err := Load(filepath.Join(repoRoot, "configs/levels.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	spec, _ := cfg.LevelByID("level1")
	l, err := spec.Open(repoRoot, tuning.Defaults())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dt := l.Config().TickDuration()
	for i := 0; i < 60*120 && !l.Finished(); i++ {
		l.Step(dt)
	}
	if !l.Completed() {
		t.Fatalf("completed=%v failed=%v exits=%d lost=%d", l.Completed(), l.Failed(), l.ExitCount(), l.LostCount())
	}
	if l.ExitCount() != spec.TargetExits {
		t.Fatalf("exits=%d want %d", l.ExitCount(), spec.TargetExits)
	}
}
