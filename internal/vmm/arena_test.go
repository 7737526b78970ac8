package vmm

import (
	"unsafe"

	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/riscv"
)

// testArena backs both a pmm.Allocator and a vmm.Mem with the same Go
// byte slice, so page tables can be built and walked entirely in
// host memory. pa 0 is kept out of range, matching pmm's own test
// arena convention (it is the free-list/unmapped sentinel).
type testArena struct {
	base riscv.Pa
	mem  []byte
}

func newTestArena(npages int) *testArena {
	const base = riscv.Pa(riscv.PGSIZE)
	return &testArena{base: base, mem: make([]byte, npages*riscv.PGSIZE)}
}

func (ar *testArena) start() riscv.Pa { return ar.base }
func (ar *testArena) end() riscv.Pa   { return ar.base + riscv.Pa(len(ar.mem)) }

func (ar *testArena) slice(pa riscv.Pa) []byte {
	off := int(pa - ar.base)
	return ar.mem[off : off+riscv.PGSIZE]
}

func (ar *testArena) PTE(pa riscv.Pa) *[512]riscv.Pte {
	return (*[512]riscv.Pte)(unsafe.Pointer(&ar.slice(pa)[0]))
}

func (ar *testArena) Bytes(pa riscv.Pa) []byte {
	return ar.slice(pa)
}

func (ar *testArena) newAllocator() *pmm.Allocator {
	return pmm.NewWithByteArena(ar.start(), ar.end(), ar.slice)
}
