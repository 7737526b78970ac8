package boot

import (
	"unsafe"

	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/vmm"
)

// testArena is the same in-process byte-slice-backed physical RAM
// stand-in every other package's tests use, reimplemented here since
// it's unexported in each of them.
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

func newTestConfig(npages int) Config {
	ar := newTestArena(npages)
	alloc := pmm.NewWithByteArena(ar.start, ar.end(), ar.slice)
	var mem vmm.Mem = ar
	return Config{Alloc: alloc, Mem: mem, Initcode: []byte{0}}
}
