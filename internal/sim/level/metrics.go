package level

// Metrics is a thread-safe read-only view of key level runtime signals.
// It is updated from the level loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	LevelID string `json:"level_id"`
	Tick    uint64 `json:"tick"`

	Live        int   `json:"live"`
	Spawned     int   `json:"spawned"`
	Exited      int   `json:"exited"`
	Lost        int   `json:"lost"`
	TargetExits int   `json:"target_exits"`
	Score       int   `json:"score"`
	ElapsedMs   int64 `json:"elapsed_ms"`
	Completed   bool  `json:"completed"`
	Failed      bool  `json:"failed"`

	Clients      int    `json:"clients"`
	TerrainEdits uint64 `json:"terrain_edits"`
	ResetTotal   uint64 `json:"reset_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
	Reset int `json:"reset"`
}

func (l *Level) Metrics() Metrics {
	if l == nil {
		return Metrics{}
	}
	v := l.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (l *Level) publishMetrics(nowTick uint64, stepMS float64) {
	l.metrics.Store(Metrics{
		LevelID:      l.cfg.ID,
		Tick:         nowTick,
		Live:         len(l.lemmings),
		Spawned:      l.spawned,
		Exited:       l.exitCount,
		Lost:         l.lostCount,
		TargetExits:  l.cfg.TargetExits,
		Score:        l.Score(),
		ElapsedMs:    l.elapsed.Milliseconds(),
		Completed:    l.completed,
		Failed:       l.failed,
		Clients:      len(l.clients),
		TerrainEdits: l.terrainEdits.Load(),
		ResetTotal:   l.resetTotal.Load(),
		QueueDepths: QueueDepths{
			Inbox: len(l.inbox),
			Join:  len(l.join),
			Leave: len(l.leave),
			Reset: len(l.reset),
		},
		StepMS: stepMS,
	})
}
