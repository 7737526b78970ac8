//go:build riscv64

package pmm

import (
	"unsafe"

	"github.com/sprout-os/sprout/internal/riscv"
)

// New creates an allocator over [start, end) of real physical memory,
// addressed through the kernel's direct map (identity-mapped, so a
// physical address is also a valid virtual address once paging is
// enabled). This is the constructor boot code uses; tests use
// NewWithArena directly over a Go-managed byte slice instead.
func New(start, end riscv.Pa) *Allocator {
	return NewWithArena(start, end, directMap)
}

func directMap(pa riscv.Pa) *frame {
	return (*frame)(unsafe.Pointer(uintptr(pa)))
}
