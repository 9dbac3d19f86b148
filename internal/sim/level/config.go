package level

import (
	"time"

	"pixelpioneers.io/internal/sim/lemming"
	"pixelpioneers.io/internal/sim/tuning"
)

type Config struct {
	ID string

	TileSize    int
	LemmingSize int

	WalkSpeed    float64
	Gravity      float64
	MaxFallSpeed float64

	TickRateHz    int
	SpawnInterval time.Duration

	TargetExits int
	// ReleaseCount caps total spawns; 0 means unlimited.
	ReleaseCount int
	// TimeLimit fails the level when reached; 0 means none.
	TimeLimit time.Duration

	SpawnCol int
	SpawnRow int

	ViewportWidth  int
	ViewportHeight int
}

// ConfigFromTuning copies the tunable constants into a level config.
func ConfigFromTuning(id string, t tuning.Tuning) Config {
	return Config{
		ID:             id,
		TileSize:       t.TileSize,
		LemmingSize:    t.LemmingSize,
		WalkSpeed:      t.WalkSpeed,
		Gravity:        t.Gravity,
		MaxFallSpeed:   t.MaxFallSpeed,
		TickRateHz:     t.TickRateHz,
		SpawnInterval:  t.SpawnInterval(),
		TargetExits:    t.TargetExits,
		ReleaseCount:   t.ReleaseCount,
		TimeLimit:      t.TimeLimit(),
		SpawnCol:       t.Spawn.Col,
		SpawnRow:       t.Spawn.Row,
		ViewportWidth:  t.Viewport.Width,
		ViewportHeight: t.Viewport.Height,
	}
}

func (c *Config) applyDefaults() {
	d := tuning.Defaults()
	if c.ID == "" {
		c.ID = "level"
	}
	if c.TileSize <= 0 {
		c.TileSize = d.TileSize
	}
	if c.LemmingSize <= 0 {
		c.LemmingSize = c.TileSize / 2
		if c.LemmingSize <= 0 {
			c.LemmingSize = 1
		}
	}
	if c.WalkSpeed <= 0 {
		c.WalkSpeed = d.WalkSpeed
	}
	if c.Gravity <= 0 {
		c.Gravity = d.Gravity
	}
	if c.MaxFallSpeed <= 0 {
		c.MaxFallSpeed = d.MaxFallSpeed
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.SpawnInterval <= 0 {
		c.SpawnInterval = d.SpawnInterval()
	}
	if c.TargetExits <= 0 {
		c.TargetExits = d.TargetExits
	}
	if c.ReleaseCount < 0 {
		c.ReleaseCount = 0
	}
	if c.TimeLimit < 0 {
		c.TimeLimit = 0
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = d.Viewport.Width
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = d.Viewport.Height
	}
}

func (c Config) lemmingParams() lemming.Params {
	size := float64(c.LemmingSize)
	return lemming.Params{
		TileSize:     c.TileSize,
		Width:        size,
		Height:       size,
		WalkSpeed:    c.WalkSpeed,
		Gravity:      c.Gravity,
		MaxFallSpeed: c.MaxFallSpeed,
	}
}

// TickDuration is the fixed simulation step the runtime uses per tick.
func (c Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}
