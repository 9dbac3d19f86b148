package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"pixelpioneers.io/internal/protocol"
	"pixelpioneers.io/internal/sim/level"
	"pixelpioneers.io/internal/sim/terrain"
)

func startLevel(t *testing.T) *level.Level {
	t.Helper()
	cfg := level.Config{
		ID:            "ws",
		TileSize:      16,
		LemmingSize:   8,
		WalkSpeed:     1,
		Gravity:       0.2,
		MaxFallSpeed:  4,
		TickRateHz:    100,
		SpawnInterval: time.Hour,
		TargetExits:   1,
		SpawnCol:      1,
		SpawnRow:      1,
	}
	g, err := terrain.ParseString("......\n######\n", cfg.TileSize)
	require.NoError(t, err)
	l, err := level.New(cfg, g)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func startServer(t *testing.T, l *level.Level, opts ...func(*Server)) (*Server, string) {
	t.Helper()
	v, err := protocol.NewValidator()
	require.NoError(t, err)
	s := NewServer(l, v, nil)
	for _, o := range opts {
		o(s)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil reads messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func([]byte) bool) []byte {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, b, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		base, err := protocol.DecodeBase(b)
		require.NoError(t, err)
		if base.Type == typ && (match == nil || match(b)) {
			return b
		}
	}
}

func hello(name string) protocol.HelloMsg {
	return protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: name}
}

func cmdMsg(cmd, skill string, x, y float64) protocol.CmdMsg {
	return protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, Cmd: cmd, Skill: skill, X: x, Y: y}
}

func errorCode(t *testing.T, b []byte) string {
	t.Helper()
	var e protocol.ErrorMsg
	require.NoError(t, json.Unmarshal(b, &e))
	return e.Code
}

func join(t *testing.T, url string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn := dial(t, url)
	send(t, conn, hello("tester"))
	var w protocol.WelcomeMsg
	require.NoError(t, json.Unmarshal(readUntil(t, conn, protocol.TypeWelcome, nil), &w))
	return conn, w
}

func TestServer_HandshakeAndState(t *testing.T) {
	l := startLevel(t)
	s, url := startServer(t, l)

	conn, w := join(t, url)
	require.Equal(t, "C000001", w.ClientID)
	require.Equal(t, "ws", w.LevelID)
	require.Len(t, w.Tiles, 2)
	require.NoError(t, s.validator.ValidateValue(protocol.TypeWelcome, w))

	b := readUntil(t, conn, protocol.TypeState, nil)
	require.NoError(t, s.validator.Validate(protocol.TypeState, b))
}

func TestServer_SelectSkillReachesLevel(t *testing.T) {
	l := startLevel(t)
	_, url := startServer(t, l)
	conn, _ := join(t, url)

	send(t, conn, cmdMsg(protocol.CmdSelectSkill, "build", 0, 0))
	readUntil(t, conn, protocol.TypeState, func(b []byte) bool {
		var st protocol.StateMsg
		return json.Unmarshal(b, &st) == nil && st.SelectedSkill == "build"
	})
}

func TestServer_RejectsBadHello(t *testing.T) {
	l := startLevel(t)
	_, url := startServer(t, l)

	cases := []struct {
		name string
		msg  any
		code string
	}{
		{"wrong type", cmdMsg(protocol.CmdClick, "", 1, 1), protocol.ErrProtoBadRequest},
		{"wrong version", protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.9", PlayerName: "x"}, protocol.ErrProtoVersion},
		{"missing name", map[string]any{"type": "HELLO", "protocol_version": protocol.Version}, protocol.ErrProtoBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := dial(t, url)
			send(t, conn, tc.msg)
			b := readUntil(t, conn, protocol.TypeError, nil)
			require.Equal(t, tc.code, errorCode(t, b))

			_, _, err := conn.ReadMessage()
			require.Error(t, err)
		})
	}
}

func TestServer_CommandErrors(t *testing.T) {
	l := startLevel(t)
	_, url := startServer(t, l)
	conn, _ := join(t, url)

	cases := []struct {
		name string
		msg  any
		code string
	}{
		{"version", protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: "2.0", Cmd: protocol.CmdClick}, protocol.ErrProtoVersion},
		{"type", hello("again"), protocol.ErrProtoBadRequest},
		{"schema", map[string]any{"type": "CMD", "protocol_version": protocol.Version, "cmd": "JUMP"}, protocol.ErrBadRequest},
		{"click without coordinates", map[string]any{"type": "CMD", "protocol_version": protocol.Version, "cmd": "CLICK"}, protocol.ErrBadRequest},
		{"unknown skill", cmdMsg(protocol.CmdSelectSkill, "umbrella", 0, 0), protocol.ErrUnknownSkill},
	}
	for _, tc := range cases {
		send(t, conn, tc.msg)
		b := readUntil(t, conn, protocol.TypeError, nil)
		require.Equal(t, tc.code, errorCode(t, b), tc.name)
	}

	// The connection survives rejected commands and the unknown skill was still selected.
	readUntil(t, conn, protocol.TypeState, func(b []byte) bool {
		var st protocol.StateMsg
		return json.Unmarshal(b, &st) == nil && st.SelectedSkill == "umbrella"
	})
}

func TestServer_RateLimit(t *testing.T) {
	l := startLevel(t)
	_, url := startServer(t, l, func(s *Server) { s.MaxCmdsPerSec = 2 })
	conn, _ := join(t, url)

	for i := 0; i < 3; i++ {
		send(t, conn, cmdMsg(protocol.CmdClick, "", 1, 1))
	}
	b := readUntil(t, conn, protocol.TypeError, nil)
	require.Equal(t, protocol.ErrRateLimit, errorCode(t, b))
}

func TestServer_LeaveOnClose(t *testing.T) {
	l := startLevel(t)
	_, url := startServer(t, l)
	conn, _ := join(t, url)
	require.Eventually(t, func() bool { return l.Metrics().Clients == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return l.Metrics().Clients == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestWindow(t *testing.T) {
	now := time.Unix(100, 0)
	w := window{max: 2}
	require.True(t, w.allow(now))
	require.True(t, w.allow(now.Add(100*time.Millisecond)))
	require.False(t, w.allow(now.Add(200*time.Millisecond)))
	require.True(t, w.allow(now.Add(time.Second)))

	unlimited := window{}
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.allow(now))
	}
}
