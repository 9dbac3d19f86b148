package level

import (
	"pixelpioneers.io/internal/protocol"
	"pixelpioneers.io/internal/sim/lemming"
)

// View is a read-only copy of everything a presentation layer draws.
type View struct {
	LevelID  string
	Tick     uint64
	TileSize int
	Cols     int
	Rows     int
	Tiles    []string

	Lemmings []LemmingView
	Viewport Rect

	ExitCount     int
	TargetExits   int
	Spawned       int
	Lost          int
	ReleaseCount  int
	Score         int
	ElapsedMs     int64
	Completed     bool
	Failed        bool
	SelectedSkill lemming.Skill
}

type LemmingView struct {
	ID     string
	X, Y   float64
	W, H   float64
	Facing int
	State  lemming.State
}

func (l *Level) View() View {
	v := View{
		LevelID:       l.cfg.ID,
		Tick:          l.tick.Load(),
		TileSize:      l.grid.TileSize(),
		Cols:          l.grid.Cols(),
		Rows:          l.grid.Rows(),
		Tiles:         l.grid.TextRows(),
		Lemmings:      make([]LemmingView, 0, len(l.lemmings)),
		Viewport:      l.viewport,
		ExitCount:     l.exitCount,
		TargetExits:   l.cfg.TargetExits,
		Spawned:       l.spawned,
		Lost:          l.lostCount,
		ReleaseCount:  l.cfg.ReleaseCount,
		Score:         l.Score(),
		ElapsedMs:     l.elapsed.Milliseconds(),
		Completed:     l.completed,
		Failed:        l.failed,
		SelectedSkill: l.selected,
	}
	for _, lm := range l.lemmings {
		v.Lemmings = append(v.Lemmings, LemmingView{
			ID:     lm.ID,
			X:      lm.X,
			Y:      lm.Y,
			W:      lm.W,
			H:      lm.H,
			Facing: lm.Facing,
			State:  lm.State,
		})
	}
	return v
}

func (l *Level) buildState(nowTick uint64, digest string, resync bool) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		LevelID:         l.cfg.ID,
		Lemmings:        make([]protocol.LemmingState, 0, len(l.lemmings)),
		Viewport:        [4]int{l.viewport.X, l.viewport.Y, l.viewport.W, l.viewport.H},
		ExitCount:       l.exitCount,
		TargetExits:     l.cfg.TargetExits,
		Spawned:         l.spawned,
		Lost:            l.lostCount,
		Score:           l.Score(),
		ElapsedMs:       l.elapsed.Milliseconds(),
		Completed:       l.completed,
		Failed:          l.failed,
		SelectedSkill:   string(l.selected),
		Digest:          digest,
	}
	for _, lm := range l.lemmings {
		msg.Lemmings = append(msg.Lemmings, protocol.LemmingState{
			ID:     lm.ID,
			Box:    [4]float64{lm.X, lm.Y, lm.W, lm.H},
			Facing: lm.Facing,
			State:  lm.State.String(),
		})
	}
	if resync {
		msg.Tiles = l.grid.TextRows()
	} else if len(l.rec.edits) > 0 {
		msg.Edits = append([]protocol.TileEdit(nil), l.rec.edits...)
	}
	return msg
}

func (l *Level) welcome(clientID string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        clientID,
		LevelID:         l.cfg.ID,
		Level: protocol.LevelParams{
			TickRateHz:   l.cfg.TickRateHz,
			TileSize:     l.cfg.TileSize,
			Cols:         l.grid.Cols(),
			Rows:         l.grid.Rows(),
			TargetExits:  l.cfg.TargetExits,
			ReleaseCount: l.cfg.ReleaseCount,
			TimeLimitSec: int(l.cfg.TimeLimit.Seconds()),
			Viewport:     [2]int{l.cfg.ViewportWidth, l.cfg.ViewportHeight},
			Spawn:        [2]int{l.cfg.SpawnCol, l.cfg.SpawnRow},
			Skills:       []string{string(lemming.SkillDig), string(lemming.SkillBuild), string(lemming.SkillBlock)},
		},
		Tiles: l.grid.TextRows(),
	}
}
