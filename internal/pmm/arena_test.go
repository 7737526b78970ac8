package pmm

import (
	"unsafe"

	"github.com/sprout-os/sprout/internal/riscv"
)

// testArena backs an Allocator with an ordinary Go byte slice so the
// free-list logic can be exercised without real physical memory. pa 0
// is reserved as the "empty list" sentinel, so the arena is addressed
// starting at a nonzero base.
type testArena struct {
	base riscv.Pa
	mem  []byte
}

func newTestArena(npages int) *testArena {
	const base = riscv.Pa(riscv.PGSIZE) // keep pa 0 out of range
	return &testArena{
		base: base,
		mem:  make([]byte, npages*riscv.PGSIZE),
	}
}

func (ar *testArena) start() riscv.Pa { return ar.base }
func (ar *testArena) end() riscv.Pa   { return ar.base + riscv.Pa(len(ar.mem)) }

func (ar *testArena) at(pa riscv.Pa) *frame {
	off := int(pa - ar.base)
	return (*frame)(unsafe.Pointer(&ar.mem[off]))
}

func (ar *testArena) newAllocator() *Allocator {
	return NewWithArena(ar.start(), ar.end(), ar.at)
}
