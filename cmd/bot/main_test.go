package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelpioneers.io/internal/protocol"
)

func walking(id string, x, y float64) protocol.LemmingState {
	return protocol.LemmingState{ID: id, Box: [4]float64{x, y, 8, 8}, Facing: 1, State: "WALKING"}
}

func TestPlannerRotatesSkills(t *testing.T) {
	p := newPlanner(10, []string{" Build", "dig", ""})
	require.Equal(t, []string{"build", "dig"}, p.skills)

	cmds := p.plan(&protocol.StateMsg{Tick: 5, Lemmings: []protocol.LemmingState{walking("L000001", 16, 32)}})
	require.Len(t, cmds, 2)
	assert.Equal(t, protocol.CmdSelectSkill, cmds[0].Cmd)
	assert.Equal(t, "build", cmds[0].Skill)
	assert.Equal(t, protocol.CmdClick, cmds[1].Cmd)
	assert.Equal(t, 20.0, cmds[1].X)
	assert.Equal(t, 36.0, cmds[1].Y)

	// Too soon.
	assert.Nil(t, p.plan(&protocol.StateMsg{Tick: 9, Lemmings: []protocol.LemmingState{walking("L000002", 0, 0)}}))

	// Already assigned lemmings are skipped.
	cmds = p.plan(&protocol.StateMsg{Tick: 15, Lemmings: []protocol.LemmingState{
		walking("L000001", 16, 32),
		walking("L000002", 40, 32),
	}})
	require.Len(t, cmds, 2)
	assert.Equal(t, "dig", cmds[0].Skill)
	assert.Equal(t, 44.0, cmds[1].X)
}

func TestPlannerSkipsBusyAndFinished(t *testing.T) {
	p := newPlanner(1, []string{"block"})
	busy := protocol.LemmingState{ID: "L000001", State: "FALLING"}
	assert.Nil(t, p.plan(&protocol.StateMsg{Tick: 1, Lemmings: []protocol.LemmingState{busy}}))
	assert.Nil(t, p.plan(&protocol.StateMsg{Tick: 2, Completed: true, Lemmings: []protocol.LemmingState{walking("L000002", 0, 0)}}))
}

func TestPlannerForgetsAfterRestart(t *testing.T) {
	p := newPlanner(1, []string{"dig"})
	require.Len(t, p.plan(&protocol.StateMsg{Tick: 100, Lemmings: []protocol.LemmingState{walking("L000001", 0, 0)}}), 2)
	assert.Nil(t, p.plan(&protocol.StateMsg{Tick: 101, Lemmings: []protocol.LemmingState{walking("L000001", 0, 0)}}))
	require.Len(t, p.plan(&protocol.StateMsg{Tick: 3, Lemmings: []protocol.LemmingState{walking("L000001", 0, 0)}}), 2)
}
