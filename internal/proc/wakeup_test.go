package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestWakeupTransitionsOnlyMatchingSleepers drives Table.wakeup directly
// against hand-set slot state, the way Exit and Kill both rely on it:
// only Sleeping processes waiting on the given channel move to
// Runnable, the actor itself is skipped even if it matches, and
// processes sleeping on a different channel are left untouched
// (§4.7 "Sleep/wakeup").
func TestWakeupTransitionsOnlyMatchingSleepers(t *testing.T) {
	table, _ := newTestTable(t, 8)
	hart := NewHart(0, NewSoftIntr(), nil)

	const chanA = "chan-a"
	const chanB = "chan-b"

	matching := table.procs[0]
	matching.state = Sleeping
	matching.channel = chanA

	other := table.procs[1]
	other.state = Sleeping
	other.channel = chanB

	actor := table.procs[2]
	actor.state = Sleeping
	actor.channel = chanA

	notSleeping := table.procs[3]
	notSleeping.state = Runnable
	notSleeping.channel = chanA

	table.wakeup(hart, actor, chanA)

	assert.Equal(t, Runnable, matching.state)
	assert.Equal(t, Sleeping, other.state, "sleeper on a different channel should not be woken")
	assert.Equal(t, Sleeping, actor.state, "actor should not wake itself")
	assert.Equal(t, Runnable, notSleeping.state)
}

func TestKillWakesSleepingTarget(t *testing.T) {
	table, _ := newTestTable(t, 8)
	hart := NewHart(0, NewSoftIntr(), nil)

	target := table.procs[0]
	target.pid = 7
	target.state = Sleeping
	target.channel = "somewhere"

	caller := table.procs[1]
	caller.pid = 99
	caller.curHart = hart

	assert.Equal(t, int32(0), table.Kill(caller, 7))
	assert.True(t, target.killed)
	assert.Equal(t, Runnable, target.state)
}

func TestKillUnknownPidFails(t *testing.T) {
	table, _ := newTestTable(t, 8)
	hart := NewHart(0, NewSoftIntr(), nil)
	caller := table.procs[0]
	caller.curHart = hart

	assert.Equal(t, int32(-1), table.Kill(caller, 12345))
}

func TestKillDoesNotWakeRunningTarget(t *testing.T) {
	table, _ := newTestTable(t, 8)
	hart := NewHart(0, NewSoftIntr(), nil)

	target := table.procs[0]
	target.pid = 3
	target.state = Running

	caller := table.procs[1]
	caller.curHart = hart

	table.Kill(caller, 3)
	assert.Equal(t, Running, target.state)
}
