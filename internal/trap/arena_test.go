package trap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/proc"
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/vmm"
)

// testArena is the same in-process byte-slice-backed physical RAM
// stand-in internal/proc's own tests use, reimplemented here since
// it's unexported there.
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

func newTestTable(t *testing.T, npages int) *proc.Table {
	t.Helper()
	ar := newTestArena(npages)
	alloc := pmm.NewWithByteArena(ar.start, ar.end(), ar.slice)
	var mem vmm.Mem = ar
	table, err := proc.NewTable(alloc, mem)
	require.NoError(t, err)
	return table
}
