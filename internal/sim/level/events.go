package level

import (
	"time"

	"pixelpioneers.io/internal/sim/lemming"
)

type CommandKind string

const (
	CmdSelectSkill CommandKind = "SELECT_SKILL"
	CmdClick       CommandKind = "CLICK"
)

// Command is one input from a player. Click coordinates are world pixels.
type Command struct {
	Actor string        `json:"actor,omitempty"`
	Kind  CommandKind   `json:"kind"`
	Skill lemming.Skill `json:"skill,omitempty"`
	X     float64       `json:"x,omitempty"`
	Y     float64       `json:"y,omitempty"`
}

func SelectSkill(s lemming.Skill) Command {
	return Command{Kind: CmdSelectSkill, Skill: s}
}

// Click targets the lemming under (x,y). An empty skill falls back to the selected one.
func Click(x, y float64, s lemming.Skill) Command {
	return Command{Kind: CmdClick, X: x, Y: y, Skill: s}
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	LevelID  string            `json:"level_id"`
	DtNanos  int64             `json:"dt_ns"`
	Reset    bool              `json:"reset,omitempty"`
	Commands []RecordedCommand `json:"commands,omitempty"`
	Spawned  []string          `json:"spawned,omitempty"`
	Exited   []string          `json:"exited,omitempty"`
	Lost     []string          `json:"lost,omitempty"`
	Outcome  string            `json:"outcome,omitempty"`
	Digest   string            `json:"digest"`
}

type RecordedCommand struct {
	Command
	// Target is the lemming that accepted the skill, if any.
	Target string `json:"target,omitempty"`
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	LevelID string `json:"level_id"`
	Actor   string `json:"actor"`
	Action  string `json:"action"` // DIG or BUILD
	Col     int    `json:"col"`
	Row     int    `json:"row"`
	From    string `json:"from"`
	To      string `json:"to"`
}

const (
	OutcomeCompleted = "COMPLETED"
	OutcomeFailed    = "FAILED"
)

// Result summarizes a finished run of a level.
type Result struct {
	LevelID     string    `json:"level_id"`
	Outcome     string    `json:"outcome"`
	ExitCount   int       `json:"exit_count"`
	TargetExits int       `json:"target_exits"`
	Spawned     int       `json:"spawned"`
	Lost        int       `json:"lost"`
	Score       int       `json:"score"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	Tick        uint64    `json:"tick"`
	FinishedAt  time.Time `json:"finished_at"`
}
