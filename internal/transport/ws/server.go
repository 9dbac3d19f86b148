package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pixelpioneers.io/internal/protocol"
	"pixelpioneers.io/internal/sim/lemming"
	"pixelpioneers.io/internal/sim/level"
)

const (
	stateQueue        = 8
	errorQueue        = 8
	defaultCmdsPerSec = 30
)

type Server struct {
	level     *level.Level
	validator *protocol.Validator
	log       *log.Logger

	// MaxCmdsPerSec caps CMD messages per connection per second. <=0 disables the cap.
	MaxCmdsPerSec int

	upgrader websocket.Upgrader
}

// NewServer serves one shared level. validator may be nil, in which case
// inbound messages are only checked field by field.
func NewServer(l *level.Level, validator *protocol.Validator, logger *log.Logger) *Server {
	return &Server{
		level:         l,
		validator:     validator,
		log:           logger,
		MaxCmdsPerSec: defaultCmdsPerSec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID, out := s.handshake(conn)
		if clientID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errs := make(chan []byte, errorQueue)

		// Writer goroutine. It owns every write after WELCOME.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-errs:
					if err := writeRaw(conn, b); err != nil {
						cancel()
						return
					}
				case b, ok := <-out:
					if !ok {
						return
					}
					if err := writeRaw(conn, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		notify := func(code, msg string) {
			b, err := json.Marshal(protocol.NewError(code, msg))
			if err != nil {
				return
			}
			select {
			case errs <- b:
			default:
			}
		}

		lim := window{max: s.MaxCmdsPerSec}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			cmd, code, reason := s.decodeCmd(clientID, msg)
			if code != "" {
				notify(code, reason)
				continue
			}
			if !lim.allow(time.Now()) {
				notify(protocol.ErrRateLimit, "too many commands")
				continue
			}
			if cmd.Skill != lemming.SkillNone && !cmd.Skill.Known() {
				// Still forwarded: the level accepts the assignment and drops it when consumed.
				notify(protocol.ErrUnknownSkill, fmt.Sprintf("unknown skill %q", cmd.Skill))
			}
			select {
			case s.level.Inbox() <- cmd:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		// Cleanup.
		select {
		case s.level.Leave() <- clientID:
		case <-time.After(5 * time.Second):
			s.logf("client %s: leave timed out", clientID)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (clientID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		rejectHandshake(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return "", nil
	}
	if base.ProtocolVersion != protocol.Version {
		rejectHandshake(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return "", nil
	}
	if s.validator != nil {
		if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
			rejectHandshake(conn, protocol.ErrProtoBadRequest, err.Error())
			return "", nil
		}
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		rejectHandshake(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return "", nil
	}
	name := strings.TrimSpace(hello.PlayerName)
	if name == "" {
		name = "player"
	}

	out = make(chan []byte, stateQueue)
	respCh := make(chan level.JoinResponse, 1)
	select {
	case s.level.Join() <- level.JoinRequest{Name: name, Out: out, Resp: respCh}:
	case <-time.After(5 * time.Second):
		rejectHandshake(conn, protocol.ErrLevelBusy, "level not accepting players")
		return "", nil
	}
	var resp level.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(5 * time.Second):
		rejectHandshake(conn, protocol.ErrLevelBusy, "level not accepting players")
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	s.logf("client %s (%s) connected", resp.ClientID, name)
	return resp.ClientID, out
}

// decodeCmd turns a CMD message into a level command for clientID. A non-empty
// code means the message was rejected.
func (s *Server) decodeCmd(clientID string, msg []byte) (cmd level.Command, code, reason string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return cmd, protocol.ErrProtoBadRequest, "invalid json"
	}
	if base.Type != protocol.TypeCmd {
		return cmd, protocol.ErrProtoBadRequest, "unexpected message type " + base.Type
	}
	if base.ProtocolVersion != protocol.Version {
		return cmd, protocol.ErrProtoVersion, "bad protocol_version"
	}
	if s.validator != nil {
		if err := s.validator.Validate(protocol.TypeCmd, msg); err != nil {
			return cmd, protocol.ErrBadRequest, err.Error()
		}
	}
	var m protocol.CmdMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return cmd, protocol.ErrBadRequest, "bad CMD"
	}
	skill := lemming.Skill(strings.ToLower(strings.TrimSpace(m.Skill)))
	switch m.Cmd {
	case protocol.CmdSelectSkill:
		cmd = level.SelectSkill(skill)
	case protocol.CmdClick:
		cmd = level.Click(m.X, m.Y, skill)
	default:
		return cmd, protocol.ErrBadRequest, "unknown cmd " + m.Cmd
	}
	cmd.Actor = clientID
	return cmd, "", ""
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// window is a fixed one-second command budget.
type window struct {
	max   int
	start time.Time
	n     int
}

func (w *window) allow(now time.Time) bool {
	if w.max <= 0 {
		return true
	}
	if now.Sub(w.start) >= time.Second {
		w.start = now
		w.n = 0
	}
	if w.n >= w.max {
		return false
	}
	w.n++
	return true
}

func rejectHandshake(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return writeRaw(conn, b)
}

func writeRaw(conn *websocket.Conn, b []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
