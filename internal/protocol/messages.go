package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ClientID        string      `json:"client_id"`
	LevelID         string      `json:"level_id"`
	Level           LevelParams `json:"level"`
	Tiles           []string    `json:"tiles"`
}

type LevelParams struct {
	TickRateHz   int      `json:"tick_rate_hz"`
	TileSize     int      `json:"tile_size"`
	Cols         int      `json:"cols"`
	Rows         int      `json:"rows"`
	TargetExits  int      `json:"target_exits"`
	ReleaseCount int      `json:"release_count"`
	TimeLimitSec int      `json:"time_limit_sec"`
	Viewport     [2]int   `json:"viewport"`
	Spawn        [2]int   `json:"spawn"`
	Skills       []string `json:"skills"`
}

// CMD (client -> server)
type CmdMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Cmd             string  `json:"cmd"`
	Skill           string  `json:"skill,omitempty"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
}

// STATE (server -> client), one per simulated tick.
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	LevelID         string         `json:"level_id"`
	Lemmings        []LemmingState `json:"lemmings"`
	Edits           []TileEdit     `json:"edits,omitempty"`
	Tiles           []string       `json:"tiles,omitempty"`
	Viewport        [4]int         `json:"viewport"`
	ExitCount       int            `json:"exit_count"`
	TargetExits     int            `json:"target_exits"`
	Spawned         int            `json:"spawned"`
	Lost            int            `json:"lost"`
	Score           int            `json:"score"`
	ElapsedMs       int64          `json:"elapsed_ms"`
	Completed       bool           `json:"completed"`
	Failed          bool           `json:"failed"`
	SelectedSkill   string         `json:"selected_skill,omitempty"`
	Digest          string         `json:"digest,omitempty"`
}

type LemmingState struct {
	ID     string     `json:"id"`
	Box    [4]float64 `json:"box"`
	Facing int        `json:"facing"`
	State  string     `json:"state"`
}

type TileEdit struct {
	Col  int    `json:"col"`
	Row  int    `json:"row"`
	Tile string `json:"tile"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
