package proc

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPickRunnableLotteryBias exercises the Open Questions' lottery
// scheduler over many draws: a process with 99 tickets against one
// with 1 should win the large majority of the time, with no fixed
// guarantee of an exact ratio (SPEC_FULL.md §5).
func TestPickRunnableLotteryBias(t *testing.T) {
	table, _ := newTestTable(t, 8)

	heavy := table.procs[0]
	heavy.state = Runnable
	heavy.tickets = 99

	light := table.procs[1]
	light.state = Runnable
	light.tickets = 1

	rnd := rand.New(rand.NewPCG(1, 2))

	const draws = 10000
	heavyWins := 0
	for i := 0; i < draws; i++ {
		switch table.pickRunnable(rnd) {
		case heavy:
			heavyWins++
		case light:
		default:
			t.Fatalf("pickRunnable returned an unexpected process")
		}
	}

	ratio := float64(heavyWins) / float64(draws)
	assert.GreaterOrEqual(t, ratio, 0.95, "heavy ticket holder should win at least 95%% of draws")
	assert.LessOrEqual(t, ratio, 1.0)
}

func TestPickRunnableNoRunnableProcesses(t *testing.T) {
	table, _ := newTestTable(t, 8)
	rnd := rand.New(rand.NewPCG(1, 2))
	assert.Nil(t, table.pickRunnable(rnd))
}

func TestPickRunnableIgnoresZeroTicketProcesses(t *testing.T) {
	table, _ := newTestTable(t, 8)
	only := table.procs[0]
	only.state = Runnable
	only.tickets = 0

	rnd := rand.New(rand.NewPCG(1, 2))
	assert.Nil(t, table.pickRunnable(rnd))
}
