// Package pmm is the physical frame allocator: a single free list of
// 4 KiB pages feeding every other subsystem (page-table pages, kernel
// stacks, trap frames, user memory, pipe buffers). It does no zeroing;
// callers zero a frame themselves when the contents matter.
package pmm

import (
	"sync"
	"unsafe"

	"github.com/sprout-os/sprout/internal/riscv"
)

// frame is the free-list node overlaid on an otherwise-unused page.
// Like the teacher's kalloc.c, the list is threaded through the pages
// themselves rather than a side structure.
type frame struct {
	next riscv.Pa
}

// Allocator hands out and reclaims 4 KiB physical frames from the
// range [start, end) given to NewWithArena. It is safe for concurrent use.
type Allocator struct {
	mu       sync.Mutex
	freehead riscv.Pa // 0 means empty; frame at pa 0 is never handed out
	start    riscv.Pa
	end      riscv.Pa

	// at translates a physical address into the Go memory backing it,
	// so the free list can be threaded through the frames themselves.
	// In a freestanding kernel this is the kernel direct map; tests
	// supply an in-process arena instead of real physical memory.
	at func(riscv.Pa) *frame
}

// NewWithArena creates an allocator over [start, end) using at to
// translate a physical address into the backing Go memory for it. Real
// boot code backs this with the kernel's direct map; tests back it with
// an ordinary Go byte slice standing in for physical RAM.
func NewWithArena(start, end riscv.Pa, at func(riscv.Pa) *frame) *Allocator {
	a := &Allocator{start: start, end: end, at: at}
	a.seed()
	return a
}

// NewWithByteArena is NewWithArena for a caller that already has a
// plain byte-slice view of the backing memory — notably internal/vmm's
// tests, which back a PageTable and its Allocator with the same arena.
func NewWithByteArena(start, end riscv.Pa, bytes func(riscv.Pa) []byte) *Allocator {
	return NewWithArena(start, end, func(pa riscv.Pa) *frame {
		return (*frame)(unsafe.Pointer(&bytes(pa)[0]))
	})
}

// seed pushes every page-aligned frame in [PGROUNDUP(start), end) onto
// the free list.
func (a *Allocator) seed() {
	first := riscv.Pa(riscv.PGRoundUp(uintptr(a.start)))
	for pa := first; pa+riscv.PGSIZE <= a.end; pa += riscv.PGSIZE {
		a.free(pa)
	}
}

// Alloc pops one frame off the free list, or returns 0 if the list is
// exhausted. The returned frame's contents are unspecified.
func (a *Allocator) Alloc() riscv.Pa {
	a.mu.Lock()
	defer a.mu.Unlock()

	pa := a.freehead
	if pa == 0 {
		return 0
	}
	a.freehead = a.at(pa).next
	return pa
}

// Free returns pa to the free list. It panics if pa is not a
// page-aligned address within the range this allocator governs, since
// that can only mean caller corruption.
func (a *Allocator) Free(pa riscv.Pa) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free(pa)
}

func (a *Allocator) free(pa riscv.Pa) {
	if pa%riscv.PGSIZE != 0 || pa < a.start || pa >= a.end {
		panic("pmm: free of unaligned or out-of-range frame")
	}
	a.at(pa).next = a.freehead
	a.freehead = pa
}

// NumFree walks the free list and counts it. It is O(n) and meant for
// tests and diagnostics, not the hot path.
func (a *Allocator) NumFree() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for pa := a.freehead; pa != 0; pa = a.at(pa).next {
		n++
	}
	return n
}
