package main

import (
	"fmt"
	"time"

	persistlog "pixelpioneers.io/internal/persistence/log"
	"pixelpioneers.io/internal/sim/level"
)

type options struct {
	FromTick uint64
	ToTick   uint64 // 0 means no limit
}

type stats struct {
	Runs     int
	Checked  uint64
	LastTick uint64
}

// MismatchError reports the first tick whose recomputed digest differs from
// the logged one.
type MismatchError struct {
	Tick uint64
	Got  string
	Want string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("digest mismatch at tick %d: got=%s want=%s", e.Tick, e.Got, e.Want)
}

// replay re-runs every logged tick against a fresh level from open and
// compares digests. A log entry for tick 0 after later ticks marks a server
// restart, so the level is rebuilt.
func replay(open func() (*level.Level, error), levelDir string, opts options) (stats, error) {
	var (
		st   stats
		l    *level.Level
		done bool
	)
	err := persistlog.ReadTickLog(levelDir, func(e level.TickLogEntry) error {
		if done {
			return nil
		}
		if l == nil || (e.Tick == 0 && l.CurrentTick() != 0) {
			nl, err := open()
			if err != nil {
				return err
			}
			l = nl
			st.Runs++
		}
		if e.Tick != l.CurrentTick() {
			return fmt.Errorf("tick gap: want=%d got=%d", l.CurrentTick(), e.Tick)
		}
		if opts.ToTick != 0 && e.Tick > opts.ToTick {
			done = true
			return nil
		}

		cmds := make([]level.Command, 0, len(e.Commands))
		for _, rc := range e.Commands {
			cmds = append(cmds, rc.Command)
		}
		tick, digest := l.StepOnce(cmds, e.Reset, time.Duration(e.DtNanos))
		if tick != e.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, e.Tick)
		}
		st.LastTick = tick
		if tick >= opts.FromTick {
			st.Checked++
			if digest != e.Digest {
				return &MismatchError{Tick: tick, Got: digest, Want: e.Digest}
			}
		}
		return nil
	})
	return st, err
}
