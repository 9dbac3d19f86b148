package level

import (
	"pixelpioneers.io/internal/protocol"
	"pixelpioneers.io/internal/sim/terrain"
)

// auditedTerrain is the grid as lemmings see it. Every change it makes is
// recorded for the audit log and the next STATE message.
type auditedTerrain struct {
	l     *Level
	actor string
}

func (a *auditedTerrain) TileSize() int { return a.l.grid.TileSize() }

func (a *auditedTerrain) IsSolidAtPoint(x, y float64) bool {
	return a.l.grid.IsSolidAtPoint(x, y)
}

func (a *auditedTerrain) RemoveTile(col, row int) {
	a.set("DIG", col, row, terrain.Empty)
}

func (a *auditedTerrain) AddSolid(col, row int) {
	a.set("BUILD", col, row, terrain.Solid)
}

func (a *auditedTerrain) set(action string, col, row int, to terrain.Tile) {
	g := a.l.grid
	if !g.InBounds(col, row) {
		return
	}
	from := g.TileAt(col, row)
	if from == to {
		return
	}
	g.AddTile(col, row, to)

	l := a.l
	l.terrainEdits.Add(1)
	l.rec.edits = append(l.rec.edits, protocol.TileEdit{Col: col, Row: row, Tile: to.String()})
	if l.auditLogger != nil {
		_ = l.auditLogger.WriteAudit(AuditEntry{
			Tick:    l.tick.Load(),
			LevelID: l.cfg.ID,
			Actor:   a.actor,
			Action:  action,
			Col:     col,
			Row:     row,
			From:    from.String(),
			To:      to.String(),
		})
	}
}
