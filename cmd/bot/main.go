package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"pixelpioneers.io/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "player name")
		every  = flag.Uint64("every", 60, "ticks between skill assignments")
		skills = flag.String("skills", "build,dig,block", "comma-separated skill rotation")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	p := newPlanner(*every, strings.Split(*skills, ","))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME client_id=%s level=%s %dx%d target=%d", w.ClientID, w.LevelID, w.Level.Cols, w.Level.Rows, w.Level.TargetExits)

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			for _, c := range p.plan(&st) {
				if err := conn.WriteJSON(c); err != nil {
					return
				}
			}
			if st.Completed || st.Failed {
				logger.Printf("tick=%d finished completed=%v saved=%d/%d score=%d", st.Tick, st.Completed, st.ExitCount, st.TargetExits, st.Score)
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}
		}
	}
}

// planner assigns the next skill in rotation to one walking lemming every
// few ticks. Each lemming is targeted at most once.
type planner struct {
	every    uint64
	skills   []string
	next     int
	lastTick uint64
	started  bool
	assigned map[string]bool
}

func newPlanner(every uint64, skills []string) *planner {
	if every == 0 {
		every = 1
	}
	p := &planner{every: every, assigned: map[string]bool{}}
	for _, s := range skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			p.skills = append(p.skills, s)
		}
	}
	return p
}

func (p *planner) plan(st *protocol.StateMsg) []protocol.CmdMsg {
	if len(p.skills) == 0 || st.Completed || st.Failed {
		return nil
	}
	if st.Tick < p.lastTick {
		// Level restarted; lemming ids are reused.
		p.assigned = map[string]bool{}
		p.started = false
	}
	if p.started && st.Tick-p.lastTick < p.every {
		return nil
	}
	for _, lm := range st.Lemmings {
		if lm.State != "WALKING" || p.assigned[lm.ID] {
			continue
		}
		skill := p.skills[p.next%len(p.skills)]
		p.next++
		p.assigned[lm.ID] = true
		p.lastTick = st.Tick
		p.started = true
		return []protocol.CmdMsg{
			{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, Cmd: protocol.CmdSelectSkill, Skill: skill},
			{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, Cmd: protocol.CmdClick, X: lm.Box[0] + lm.Box[2]/2, Y: lm.Box[1] + lm.Box[3]/2},
		}
	}
	return nil
}
