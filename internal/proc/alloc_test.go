package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-os/sprout/internal/pstat"
)

func TestAllocProcFreeRoundTrip(t *testing.T) {
	table, _ := newTestTable(t, 64)
	hart := NewHart(0, NewSoftIntr(), nil)

	freeBefore := table.alloc.NumFree()

	p, err := table.AllocProc(hart)
	require.NoError(t, err)
	assert.Equal(t, Used, p.state)
	assert.NotZero(t, p.pid)
	assert.NotNil(t, p.pagetable)
	assert.NotNil(t, p.trapframe)

	table.freeProcLocked(p)
	p.lock.Release(hart)

	assert.Equal(t, freeBefore, table.alloc.NumFree())
	assert.Equal(t, Unused, p.state)
}

func TestAllocProcExhaustion(t *testing.T) {
	table, _ := newTestTable(t, 512)
	hart := NewHart(0, NewSoftIntr(), nil)

	var got []*Proc
	for {
		p, err := table.AllocProc(hart)
		if err != nil {
			break
		}
		p.lock.Release(hart)
		got = append(got, p)
	}
	assert.Len(t, got, len(table.procs))

	_, err := table.AllocProc(hart)
	assert.ErrorIs(t, err, ErrNoProc)
}

func TestGrowprocGrowAndShrink(t *testing.T) {
	table, _ := newTestTable(t, 64)
	hart := NewHart(0, NewSoftIntr(), nil)

	p, err := table.AllocProc(hart)
	require.NoError(t, err)
	p.lock.Release(hart)

	assert.Equal(t, 0, p.Growproc(8192))
	assert.EqualValues(t, 8192, p.sz)

	assert.Equal(t, 0, p.Growproc(-4096))
	assert.EqualValues(t, 4096, p.sz)
}

func TestSetTicketsAndProcinfo(t *testing.T) {
	table, _ := newTestTable(t, 64)
	hart := NewHart(0, NewSoftIntr(), nil)

	p, err := table.AllocProc(hart)
	require.NoError(t, err)
	p.curHart = hart
	p.lock.Release(hart)

	assert.Equal(t, int32(-1), p.SetTickets(0))
	assert.Equal(t, int32(-1), p.SetTickets(-5))
	assert.Equal(t, int32(0), p.SetTickets(42))

	snapshot := &pstat.Pstat{}
	table.Procinfo(snapshot)
	assert.EqualValues(t, 42, snapshot.Tickets[p.slot])
	assert.Equal(t, p.pid, snapshot.Pid[p.slot])
}
