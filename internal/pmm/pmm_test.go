package pmm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-os/sprout/internal/riscv"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	ar := newTestArena(4)
	a := ar.newAllocator()
	require.Equal(t, 4, a.NumFree())

	pa := a.Alloc()
	require.NotZero(t, pa)
	assert.Equal(t, 3, a.NumFree())

	a.Free(pa)
	assert.Equal(t, 4, a.NumFree())
}

func TestAllocExhaustion(t *testing.T) {
	ar := newTestArena(2)
	a := ar.newAllocator()

	p1 := a.Alloc()
	p2 := a.Alloc()
	require.NotZero(t, p1)
	require.NotZero(t, p2)
	assert.NotEqual(t, p1, p2)

	assert.Zero(t, a.Alloc(), "allocator must return 0 once exhausted")
}

func TestFreePanicsOnMisalignedOrOutOfRange(t *testing.T) {
	ar := newTestArena(2)
	a := ar.newAllocator()

	assert.Panics(t, func() { a.Free(ar.start() + 1) }, "misaligned free must panic")
	assert.Panics(t, func() { a.Free(ar.end()) }, "out-of-range free must panic")
	assert.Panics(t, func() { a.Free(0) }, "free below range must panic")
}

func TestAllocatorIsConcurrencySafe(t *testing.T) {
	const n = 64
	ar := newTestArena(n)
	a := ar.newAllocator()

	got := make(chan riscv.Pa, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got <- a.Alloc()
		}()
	}
	wg.Wait()
	close(got)

	seen := make(map[riscv.Pa]bool)
	for pa := range got {
		require.NotZero(t, pa)
		require.False(t, seen[pa], "frame handed out twice: %x", pa)
		seen[pa] = true
	}
	assert.Len(t, seen, n)
	assert.Zero(t, a.NumFree())
}
