package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell"

	persistlog "pixelpioneers.io/internal/persistence/log"
	"pixelpioneers.io/internal/sim/levelset"
	"pixelpioneers.io/internal/sim/tuning"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		levelsPath = flag.String("levels", "", "path to levels.yaml (default: <configs>/levels.yaml)")
		levelID    = flag.String("level", "", "level id (default: default_level_id from levels.yaml)")
		rootDir    = flag.String("root", ".", "directory level map paths are resolved against")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		recordDir  = flag.String("record", "", "write a replayable tick log under <record>/levels/<id> (optional)")
	)
	flag.Parse()

	if err := run(*configDir, *levelsPath, *levelID, *rootDir, *tuningPath, *recordDir); err != nil {
		log.Fatalln(err)
	}
}

func run(configDir, levelsPath, levelID, rootDir, tuningPath, recordDir string) error {
	tp := strings.TrimSpace(tuningPath)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	lp := strings.TrimSpace(levelsPath)
	if lp == "" {
		lp = filepath.Join(configDir, "levels.yaml")
	}
	levels, err := levelset.Load(lp)
	if err != nil {
		return fmt.Errorf("load levels: %w", err)
	}
	id := strings.TrimSpace(levelID)
	if id == "" {
		id = levels.DefaultLevelID
	}
	spec, ok := levels.LevelByID(id)
	if !ok {
		return fmt.Errorf("unknown level %q", id)
	}
	lvl, err := spec.Open(rootDir, tune)
	if err != nil {
		return err
	}
	if recordDir != "" {
		tl := persistlog.NewTickLogger(filepath.Join(recordDir, "levels", spec.ID))
		defer tl.Close()
		lvl.SetTickLogger(tl)
	}

	scr, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := scr.Init(); err != nil {
		return err
	}
	defer scr.Fini()
	scr.EnableMouse()
	scr.HideCursor()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := scr.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	g := newGame(lvl)
	ticker := time.NewTicker(g.dt)
	defer ticker.Stop()
	g.draw(scr)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, ok := ev.(*tcell.EventResize); ok {
				scr.Sync()
			}
			if g.handle(ev) {
				return nil
			}
			g.draw(scr)
		case <-ticker.C:
			g.step()
			g.draw(scr)
		}
	}
}
