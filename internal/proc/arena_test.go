package proc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/vmm"
)

// testArena is a plain Go byte slice standing in for physical RAM,
// backing both the frame allocator and the page-table engine exactly
// as internal/vmm's own tests do.
type testArena struct {
	mem   []byte
	start riscv.Pa
}

func newTestArena(npages int) *testArena {
	return &testArena{mem: make([]byte, npages*riscv.PGSIZE), start: riscv.Pa(riscv.PGSIZE)}
}

func (a *testArena) end() riscv.Pa { return a.start + riscv.Pa(len(a.mem)) }

func (a *testArena) slice(pa riscv.Pa) []byte {
	off := int(pa - a.start)
	return a.mem[off : off+riscv.PGSIZE]
}

func (a *testArena) PTE(pa riscv.Pa) *[512]riscv.Pte {
	return (*[512]riscv.Pte)(unsafe.Pointer(&a.slice(pa)[0]))
}

func (a *testArena) Bytes(pa riscv.Pa) []byte { return a.slice(pa) }

func (a *testArena) newAllocator() *pmm.Allocator {
	return pmm.NewWithByteArena(a.start, a.end(), a.slice)
}

func newTestTable(t *testing.T, npages int) (*Table, *testArena) {
	t.Helper()
	ar := newTestArena(npages)
	alloc := ar.newAllocator()
	var mem vmm.Mem = ar
	table, err := NewTable(alloc, mem)
	require.NoError(t, err)
	return table, ar
}
