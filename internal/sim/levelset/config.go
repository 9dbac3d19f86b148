package levelset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pixelpioneers.io/internal/sim/level"
	"pixelpioneers.io/internal/sim/terrain"
	"pixelpioneers.io/internal/sim/tuning"
)

type Config struct {
	DefaultLevelID string      `yaml:"default_level_id"`
	Levels         []LevelSpec `yaml:"levels"`
}

// LevelSpec names a map file and the per-level overrides of the tuning
// defaults. Zero values inherit from tuning.
type LevelSpec struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title,omitempty"`
	Map   string `yaml:"map"`

	TargetExits  int             `yaml:"target_exits"`
	ReleaseCount int             `yaml:"release_count"`
	TimeLimitSec int             `yaml:"time_limit_sec"`
	Spawn        *tuning.TilePos `yaml:"spawn,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// A file replaces the default level list rather than merging into it.
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("levels.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("levels.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultLevelID: "level1",
		Levels: []LevelSpec{
			{ID: "level1", Map: "levels/level1.txt"},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Levels {
		c.Levels[i].ID = strings.TrimSpace(c.Levels[i].ID)
		if c.Levels[i].ID == "" {
			c.Levels[i].ID = fmt.Sprintf("level%d", i+1)
		}
		c.Levels[i].Map = strings.TrimSpace(c.Levels[i].Map)
		if c.Levels[i].Map == "" {
			c.Levels[i].Map = filepath.Join("levels", c.Levels[i].ID+".txt")
		}
		if c.Levels[i].Title == "" {
			c.Levels[i].Title = c.Levels[i].ID
		}
	}
	c.DefaultLevelID = strings.TrimSpace(c.DefaultLevelID)
	if c.DefaultLevelID == "" && len(c.Levels) > 0 {
		c.DefaultLevelID = c.Levels[0].ID
	}
}

func (c Config) Validate() error {
	c.Levels = append([]LevelSpec(nil), c.Levels...)
	c.Normalize()
	if len(c.Levels) == 0 {
		return fmt.Errorf("levels must not be empty")
	}
	seen := map[string]bool{}
	for _, l := range c.Levels {
		if seen[l.ID] {
			return fmt.Errorf("duplicate level id: %s", l.ID)
		}
		seen[l.ID] = true
		if l.TargetExits < 0 {
			return fmt.Errorf("level %s target_exits must be >= 0", l.ID)
		}
		if l.ReleaseCount < 0 {
			return fmt.Errorf("level %s release_count must be >= 0", l.ID)
		}
		if l.ReleaseCount > 0 && l.TargetExits > l.ReleaseCount {
			return fmt.Errorf("level %s target_exits %d exceeds release_count %d", l.ID, l.TargetExits, l.ReleaseCount)
		}
		if l.TimeLimitSec < 0 {
			return fmt.Errorf("level %s time_limit_sec must be >= 0", l.ID)
		}
		if l.Spawn != nil && (l.Spawn.Col < 0 || l.Spawn.Row < 0) {
			return fmt.Errorf("level %s spawn must be non-negative", l.ID)
		}
	}
	if !seen[c.DefaultLevelID] {
		return fmt.Errorf("default_level_id %q not found in levels", c.DefaultLevelID)
	}
	return nil
}

func (c Config) LevelByID(id string) (LevelSpec, bool) {
	for _, l := range c.Levels {
		if l.ID == id {
			return l, true
		}
	}
	return LevelSpec{}, false
}

// LevelConfig merges the spec's overrides onto the tuning defaults.
func (s LevelSpec) LevelConfig(t tuning.Tuning) level.Config {
	cfg := level.ConfigFromTuning(s.ID, t)
	if s.TargetExits > 0 {
		cfg.TargetExits = s.TargetExits
	}
	if s.ReleaseCount > 0 {
		cfg.ReleaseCount = s.ReleaseCount
	}
	if s.TimeLimitSec > 0 {
		cfg.TimeLimit = time.Duration(s.TimeLimitSec) * time.Second
	}
	if s.Spawn != nil {
		cfg.SpawnCol = s.Spawn.Col
		cfg.SpawnRow = s.Spawn.Row
	}
	return cfg
}

// MapPath resolves the map file against root unless it is absolute.
func (s LevelSpec) MapPath(root string) string {
	if filepath.IsAbs(s.Map) || root == "" {
		return s.Map
	}
	return filepath.Join(root, s.Map)
}

// Open loads the spec's map from root and builds a ready-to-run level.
func (s LevelSpec) Open(root string, t tuning.Tuning) (*level.Level, error) {
	g, err := terrain.Load(s.MapPath(root), t.TileSize)
	if err != nil {
		return nil, fmt.Errorf("level %s: %w", s.ID, err)
	}
	cfg := s.LevelConfig(t)
	if cfg.SpawnCol >= g.Cols() || cfg.SpawnRow >= g.Rows() {
		return nil, fmt.Errorf("level %s: spawn (%d,%d) outside %dx%d map", s.ID, cfg.SpawnCol, cfg.SpawnRow, g.Cols(), g.Rows())
	}
	return level.New(cfg, g)
}
