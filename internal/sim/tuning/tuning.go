package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the level constants that are not part of a map file.
// Speeds and gravity are pixels per tick.
type Tuning struct {
	TileSize    int `yaml:"tile_size"`
	LemmingSize int `yaml:"lemming_size"`

	WalkSpeed    float64 `yaml:"walk_speed"`
	Gravity      float64 `yaml:"gravity"`
	MaxFallSpeed float64 `yaml:"max_fall_speed"`

	TickRateHz      int `yaml:"tick_rate_hz"`
	SpawnIntervalMs int `yaml:"spawn_interval_ms"`

	TargetExits  int      `yaml:"target_exits"`
	ReleaseCount int      `yaml:"release_count"`
	TimeLimitSec int      `yaml:"time_limit_sec"`
	Spawn        TilePos  `yaml:"spawn"`
	Viewport     Viewport `yaml:"viewport"`
}

type TilePos struct {
	Col int `yaml:"col"`
	Row int `yaml:"row"`
}

type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func Defaults() Tuning {
	return Tuning{
		TileSize:        16,
		LemmingSize:     8,
		WalkSpeed:       1.0,
		Gravity:         0.2,
		MaxFallSpeed:    4.0,
		TickRateHz:      60,
		SpawnIntervalMs: 2000,
		TargetExits:     1,
		Spawn:           TilePos{Col: 2, Row: 2},
		Viewport:        Viewport{Width: 800, Height: 600},
	}
}

// Load overlays the file at path onto Defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TileSize <= 0 {
		return fmt.Errorf("tile_size must be > 0")
	}
	if t.LemmingSize <= 0 || t.LemmingSize > t.TileSize {
		return fmt.Errorf("lemming_size must be in (0, tile_size]")
	}
	if t.WalkSpeed < 0 {
		return fmt.Errorf("walk_speed must be >= 0")
	}
	if t.Gravity <= 0 {
		return fmt.Errorf("gravity must be > 0")
	}
	// A faster fall could skip a whole row between landing probes.
	if t.MaxFallSpeed <= 0 || t.MaxFallSpeed >= float64(t.TileSize) {
		return fmt.Errorf("max_fall_speed must be in (0, tile_size)")
	}
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.SpawnIntervalMs <= 0 {
		return fmt.Errorf("spawn_interval_ms must be > 0")
	}
	if t.TargetExits <= 0 {
		return fmt.Errorf("target_exits must be > 0")
	}
	if t.ReleaseCount < 0 {
		return fmt.Errorf("release_count must be >= 0")
	}
	if t.TimeLimitSec < 0 {
		return fmt.Errorf("time_limit_sec must be >= 0")
	}
	if t.Spawn.Col < 0 || t.Spawn.Row < 0 {
		return fmt.Errorf("spawn must be non-negative")
	}
	if t.Viewport.Width <= 0 || t.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be > 0")
	}
	return nil
}

func (t Tuning) SpawnInterval() time.Duration {
	return time.Duration(t.SpawnIntervalMs) * time.Millisecond
}

func (t Tuning) TickInterval() time.Duration {
	if t.TickRateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(t.TickRateHz)
}

func (t Tuning) TimeLimit() time.Duration {
	return time.Duration(t.TimeLimitSec) * time.Second
}
