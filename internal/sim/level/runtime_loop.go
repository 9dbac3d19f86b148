package level

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pixelpioneers.io/internal/protocol"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	ClientID string
	Welcome  protocol.WelcomeMsg
}

// ResetRequest asks the runtime to restart the level at the next tick boundary.
type ResetRequest struct {
	Resp chan ResetResponse
}

type ResetResponse struct {
	Tick uint64
}

type clientState struct {
	Name string
	Out  chan []byte
}

func (l *Level) Inbox() chan<- Command              { return l.inbox }
func (l *Level) Join() chan<- JoinRequest           { return l.join }
func (l *Level) Leave() chan<- string               { return l.leave }
func (l *Level) ResetRequests() chan<- ResetRequest { return l.reset }

// Run drives the level at TickRateHz with a fixed dt per tick. Commands and
// resets received between ticks are applied at the next tick boundary in
// arrival order.
func (l *Level) Run(ctx context.Context) error {
	interval := l.cfg.TickDuration()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []Command
	var pendingResets []ResetRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case req := <-l.join:
			l.handleJoin(req)
		case id := <-l.leave:
			l.handleLeave(id)
		case req := <-l.reset:
			pendingResets = append(pendingResets, req)
		case cmd := <-l.inbox:
			pendingCmds = append(pendingCmds, cmd)
		case <-ticker.C:
			tick, _, _ := l.stepInternal(pendingCmds, len(pendingResets) > 0, interval)
			for _, r := range pendingResets {
				if r.Resp != nil {
					r.Resp <- ResetResponse{Tick: tick}
				}
			}
			pendingCmds = pendingCmds[:0]
			pendingResets = pendingResets[:0]
		}
	}
}

func (l *Level) Stop() { close(l.stop) }

// StepOnce advances the level by a single tick using the same ordering as
// Run: reset, then commands in order, then Step(dt). It is intended for
// replays, tests and in-process clients. If the level is finished and there
// is nothing to apply, nothing happens and digest is empty.
func (l *Level) StepOnce(cmds []Command, reset bool, dt time.Duration) (tick uint64, digest string) {
	tick, digest, _ = l.stepInternal(cmds, reset, dt)
	return tick, digest
}

func (l *Level) stepInternal(cmds []Command, reset bool, dt time.Duration) (uint64, string, bool) {
	stepStart := time.Now()
	nowTick := l.tick.Load()

	// A finished level is idle until something can change it.
	if !reset && len(cmds) == 0 && l.Finished() {
		l.publishMetrics(nowTick, 0)
		return nowTick, "", false
	}

	l.rec.clear()
	if reset {
		l.Reset()
		l.logf("level %s: reset at tick %d", l.cfg.ID, nowTick)
	}
	wasFinished := l.Finished()

	recorded := make([]RecordedCommand, 0, len(cmds))
	for _, c := range cmds {
		target := l.HandleCommand(c)
		recorded = append(recorded, RecordedCommand{Command: c, Target: target})
	}

	l.Step(dt)

	digest := l.stateDigest(nowTick)

	outcome := ""
	if !wasFinished && l.Finished() {
		res := l.result(nowTick, time.Now())
		outcome = res.Outcome
		l.logf("level %s: %s at tick %d exits=%d/%d score=%d", l.cfg.ID, res.Outcome, nowTick, res.ExitCount, res.TargetExits, res.Score)
		if l.resultSink != nil {
			select {
			case l.resultSink <- res:
			default:
				l.logf("level %s: result sink full, dropping result for tick %d", l.cfg.ID, nowTick)
			}
		}
	}

	if l.tickLogger != nil {
		_ = l.tickLogger.WriteTick(TickLogEntry{
			Tick:     nowTick,
			LevelID:  l.cfg.ID,
			DtNanos:  int64(dt),
			Reset:    reset,
			Commands: recorded,
			Spawned:  append([]string(nil), l.rec.spawned...),
			Exited:   append([]string(nil), l.rec.exited...),
			Lost:     append([]string(nil), l.rec.lost...),
			Outcome:  outcome,
			Digest:   digest,
		})
	}

	l.broadcast(nowTick, digest, reset)

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	l.tick.Add(1)
	l.publishMetrics(nowTick, stepMS)
	return nowTick, digest, true
}

func (l *Level) broadcast(nowTick uint64, digest string, resync bool) {
	if len(l.clients) == 0 {
		return
	}
	b, err := json.Marshal(l.buildState(nowTick, digest, resync))
	if err != nil {
		return
	}
	for _, c := range l.clients {
		sendLatest(c.Out, b)
	}
}

func (l *Level) handleJoin(req JoinRequest) {
	n := l.nextClientNum.Add(1)
	id := fmt.Sprintf("C%06d", n)
	l.clients[id] = &clientState{Name: req.Name, Out: req.Out}
	if req.Resp != nil {
		req.Resp <- JoinResponse{ClientID: id, Welcome: l.welcome(id)}
	}
	// Late joiners get the current state immediately, without waiting for a tick.
	if req.Out != nil {
		if b, err := json.Marshal(l.buildState(l.tick.Load(), "", false)); err == nil {
			sendLatest(req.Out, b)
		}
	}
	l.logf("level %s: client %s (%s) joined", l.cfg.ID, id, req.Name)
}

func (l *Level) handleLeave(clientID string) {
	if _, ok := l.clients[clientID]; !ok {
		return
	}
	delete(l.clients, clientID)
	l.logf("level %s: client %s left", l.cfg.ID, clientID)
}

func sendLatest(ch chan []byte, b []byte) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
