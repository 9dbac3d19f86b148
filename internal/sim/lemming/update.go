package lemming

import "math"

// Update advances the lemming by one tick. others is the level's lemming
// list in spawn order; it may contain l itself and removed lemmings.
func (l *Lemming) Update(t Terrain, others []*Lemming) {
	l.consumeSkill()

	switch l.State {
	case Walking:
		l.walk(t, others)
	case Falling:
		l.fall(t)
	case Digging:
		l.dig(t)
	case Building:
		l.build(t)
	case Blocking:
	}
}

func (l *Lemming) consumeSkill() {
	s := l.pending
	if s == SkillNone {
		return
	}
	l.pending = SkillNone

	switch s {
	case SkillDig:
		if l.State == Walking {
			l.State = Digging
		}
	case SkillBuild:
		if l.State == Walking {
			l.State = Building
		}
	case SkillBlock:
		if l.State == Walking || l.State == Falling {
			l.State = Blocking
			l.VX = 0
			l.VY = 0
		}
	}
}

func (l *Lemming) walk(t Terrain, others []*Lemming) {
	nextX := l.X + l.VX*float64(l.Facing)
	bottom := l.Bottom()

	lead := nextX
	if l.Facing > 0 {
		lead = nextX + l.W
	}
	if t.IsSolidAtPoint(lead, bottom-1) {
		l.Facing = -l.Facing
		return
	}

	for _, o := range others {
		if o == l || o.removed || o.State != Blocking {
			continue
		}
		if overlaps(nextX, l.Y, l.W, l.H, o) {
			l.Facing = -l.Facing
			return
		}
	}

	// Ground is probed from the current position, ahead of the body.
	probeX := l.CenterX() + l.W/2*float64(l.Facing)
	if !t.IsSolidAtPoint(probeX, bottom+1) {
		l.State = Falling
		l.VY = 0
		return
	}

	l.X = nextX
}

func (l *Lemming) fall(t Terrain) {
	l.VY = math.Min(l.VY+l.gravity, l.maxFallSpeed)

	if l.VX != 0 {
		driftX := l.X + l.VX*float64(l.Facing)
		lead := driftX
		if l.Facing > 0 {
			lead = driftX + l.W
		}
		bottom := l.Bottom()
		if !t.IsSolidAtPoint(lead, l.CenterY()) && !t.IsSolidAtPoint(lead, bottom-1) {
			l.X = driftX
		}
	}

	l.Y += l.VY

	probeY := l.Bottom() + 1
	if t.IsSolidAtPoint(l.CenterX(), probeY) {
		row := tileOf(probeY, t.TileSize())
		l.Y = float64(row*t.TileSize()) - l.H
		l.State = Walking
		l.VY = 0
	}
}

func (l *Lemming) dig(t Terrain) {
	ts := t.TileSize()
	t.RemoveTile(tileOf(l.CenterX(), ts), tileOf(l.Bottom(), ts))
	l.State = Falling
	l.VY = 0
}

func (l *Lemming) build(t Terrain) {
	ts := t.TileSize()
	col := tileOf(l.CenterX(), ts) + l.Facing
	row := tileOf(l.Bottom(), ts) - 1
	t.AddSolid(col, row)
	l.State = Walking
}
