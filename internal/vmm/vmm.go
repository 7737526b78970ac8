// Package vmm implements the Sv39 three-level page table: walking,
// mapping, unmapping, and the user/kernel copy primitives built on top
// (§4.2). It allocates its page-table pages and user frames from an
// internal/pmm.Allocator, and never touches physical memory directly —
// everything goes through a Mem translator, so the whole engine is
// testable on a host with no real MMU.
package vmm

import (
	"errors"

	"github.com/sprout-os/sprout/internal/pmm"
	"github.com/sprout-os/sprout/internal/riscv"
)

var (
	ErrVAOutOfRange  = errors.New("vmm: virtual address out of range")
	ErrNoMem         = errors.New("vmm: out of physical memory")
	ErrRemap         = errors.New("vmm: remap of already-mapped page")
	ErrNotMapped     = errors.New("vmm: address not mapped")
	ErrStringTooLong = errors.New("vmm: user string exceeds max length")
)

// Mem turns a physical frame address into the Go memory backing it —
// the kernel direct map in production, an in-process arena in tests.
// It plays the same role for page tables that pmm's `at` callback
// plays for the free list.
type Mem interface {
	// PTE views the page at pa as a 512-entry Sv39 page-table page.
	PTE(pa riscv.Pa) *[512]riscv.Pte
	// Bytes views the page at pa as PGSIZE bytes of raw content.
	Bytes(pa riscv.Pa) []byte
}

// PageTable is one Sv39 address space: a root page plus the
// intermediate and leaf pages reachable from it.
type PageTable struct {
	root  riscv.Pa
	alloc *pmm.Allocator
	mem   Mem
}

// New allocates a fresh, empty page table.
func New(alloc *pmm.Allocator, mem Mem) (*PageTable, error) {
	root := alloc.Alloc()
	if root == 0 {
		return nil, ErrNoMem
	}
	zeroPage(mem.Bytes(root))
	return &PageTable{root: root, alloc: alloc, mem: mem}, nil
}

// Root is the physical address of the root page-table page.
func (pt *PageTable) Root() riscv.Pa { return pt.root }

// Satp is the value to load into the satp CSR to switch to this
// address space.
func (pt *PageTable) Satp() uint64 { return riscv.MakeSatp(pt.root) }

// Walk returns the address of the PTE for va. When alloc is set, it
// allocates any missing intermediate page-table pages along the way;
// otherwise a missing intermediate page is reported as ErrNotMapped.
func (pt *PageTable) Walk(va riscv.Va, alloc bool) (*riscv.Pte, error) {
	if uintptr(va) >= riscv.MAXVA {
		return nil, ErrVAOutOfRange
	}

	pagetable := pt.root
	for level := 2; level > 0; level-- {
		pte := &pt.mem.PTE(pagetable)[riscv.PX(level, va)]
		if *pte&riscv.PteV != 0 {
			pagetable = riscv.PTE2PA(*pte)
			continue
		}
		if !alloc {
			return nil, ErrNotMapped
		}
		child := pt.alloc.Alloc()
		if child == 0 {
			return nil, ErrNoMem
		}
		zeroPage(pt.mem.Bytes(child))
		*pte = riscv.PA2PTE(child) | riscv.PteV
		pagetable = child
	}
	return &pt.mem.PTE(pagetable)[riscv.PX(0, va)], nil
}

// Walkaddr translates a user virtual address to its backing physical
// address, or reports an error if va is unmapped, out of range, or not
// user-accessible.
func (pt *PageTable) Walkaddr(va riscv.Va) (riscv.Pa, error) {
	pte, err := pt.Walk(va, false)
	if err != nil {
		return 0, err
	}
	if *pte&riscv.PteV == 0 || *pte&riscv.PteU == 0 {
		return 0, ErrNotMapped
	}
	return riscv.PTE2PA(*pte), nil
}

// MapPages installs PTEs mapping the page-aligned range starting at va
// for size bytes to the physical range starting at pa. It errors
// rather than silently overwriting an already-valid PTE.
func (pt *PageTable) MapPages(va riscv.Va, pa riscv.Pa, size uintptr, perm riscv.Pte) error {
	if size == 0 {
		panic("vmm: mappages of zero size")
	}
	a := riscv.PGRoundDown(uintptr(va))
	last := riscv.PGRoundDown(uintptr(va) + size - 1)
	for {
		pte, err := pt.Walk(riscv.Va(a), true)
		if err != nil {
			return err
		}
		if *pte&riscv.PteV != 0 {
			return ErrRemap
		}
		*pte = riscv.PA2PTE(pa) | perm | riscv.PteV
		if a == last {
			return nil
		}
		a += riscv.PGSIZE
		pa += riscv.PGSIZE
	}
}

// Unmap clears npages PTEs starting at va, which must be page-aligned.
// It panics if any page in the range is not a valid leaf mapping —
// the same invariant violation the teacher treats as fatal. When
// freePhys is set, the underlying physical frame is returned to alloc.
func (pt *PageTable) Unmap(va riscv.Va, npages uintptr, freePhys bool) {
	if uintptr(va)%riscv.PGSIZE != 0 {
		panic("vmm: unmap of unaligned va")
	}
	for off := uintptr(0); off < npages*riscv.PGSIZE; off += riscv.PGSIZE {
		a := riscv.Va(uintptr(va) + off)
		pte, err := pt.Walk(a, false)
		if err != nil || *pte&riscv.PteV == 0 {
			panic("vmm: unmap of unmapped page")
		}
		if riscv.PTEFlags(*pte) == riscv.PteV {
			panic("vmm: unmap of non-leaf page-table entry")
		}
		if freePhys {
			pt.alloc.Free(riscv.PTE2PA(*pte))
		}
		*pte = 0
	}
}

// UvmAlloc grows a user address space from oldsz to newsz, allocating
// and zeroing a frame for each new page and mapping it with xperm
// added to the default user-readable permission. It unwinds any
// partial growth on allocation failure.
func (pt *PageTable) UvmAlloc(oldsz, newsz uintptr, xperm riscv.Pte) (uintptr, error) {
	if newsz < oldsz {
		return oldsz, nil
	}
	oldsz = riscv.PGRoundUp(oldsz)
	for a := oldsz; a < newsz; a += riscv.PGSIZE {
		pa := pt.alloc.Alloc()
		if pa == 0 {
			pt.UvmDealloc(a, oldsz)
			return 0, ErrNoMem
		}
		zeroPage(pt.mem.Bytes(pa))
		perm := riscv.PteR | riscv.PteU | xperm
		if err := pt.MapPages(riscv.Va(a), pa, riscv.PGSIZE, perm); err != nil {
			pt.alloc.Free(pa)
			pt.UvmDealloc(a, oldsz)
			return 0, err
		}
	}
	return newsz, nil
}

// UvmDealloc shrinks a user address space from oldsz to newsz,
// unmapping and freeing the pages in between. It is a no-op if newsz
// is not smaller than oldsz.
func (pt *PageTable) UvmDealloc(oldsz, newsz uintptr) uintptr {
	if newsz >= oldsz {
		return oldsz
	}
	if riscv.PGRoundUp(newsz) < riscv.PGRoundUp(oldsz) {
		npages := (riscv.PGRoundUp(oldsz) - riscv.PGRoundUp(newsz)) / riscv.PGSIZE
		pt.Unmap(riscv.Va(riscv.PGRoundUp(newsz)), npages, true)
	}
	return newsz
}

// freeWalk recursively frees the page-table pages rooted at pa. It
// panics if it encounters a leaf mapping still present — callers must
// unmap user memory with UvmDealloc before calling this.
func (pt *PageTable) freeWalk(pa riscv.Pa) {
	table := pt.mem.PTE(pa)
	for i := range table {
		pte := table[i]
		if pte&riscv.PteV == 0 {
			continue
		}
		if pte&(riscv.PteR|riscv.PteW|riscv.PteX) != 0 {
			panic("vmm: freewalk found a leaf page still mapped")
		}
		pt.freeWalk(riscv.PTE2PA(pte))
		table[i] = 0
	}
	pt.alloc.Free(pa)
}

// UvmFree unmaps and frees every user page below sz, then frees the
// page table itself. The PageTable must not be used afterward.
func (pt *PageTable) UvmFree(sz uintptr) {
	if sz > 0 {
		pt.UvmDealloc(riscv.PGRoundUp(sz), 0)
	}
	pt.freeWalk(pt.root)
}

// UvmCopy duplicates the user mappings below sz from pt into dst,
// allocating fresh frames and copying their contents — a real copy,
// not copy-on-write. It unmaps any pages it had already installed in
// dst before returning an error.
func (pt *PageTable) UvmCopy(dst *PageTable, sz uintptr) error {
	for i := uintptr(0); i < sz; i += riscv.PGSIZE {
		pte, err := pt.Walk(riscv.Va(i), false)
		if err != nil || *pte&riscv.PteV == 0 {
			panic("vmm: uvmcopy of unmapped page")
		}
		pa := riscv.PTE2PA(*pte)
		flags := riscv.Pte(riscv.PTEFlags(*pte))

		newpa := pt.alloc.Alloc()
		if newpa == 0 {
			if i > 0 {
				dst.Unmap(riscv.Va(0), i/riscv.PGSIZE, true)
			}
			return ErrNoMem
		}
		copy(pt.mem.Bytes(newpa), pt.mem.Bytes(pa))

		if err := dst.MapPages(riscv.Va(i), newpa, riscv.PGSIZE, flags); err != nil {
			pt.alloc.Free(newpa)
			if i > 0 {
				dst.Unmap(riscv.Va(0), i/riscv.PGSIZE, true)
			}
			return err
		}
	}
	return nil
}

// CopyToUser copies src into user memory starting at dstva, crossing
// page boundaries as needed.
func (pt *PageTable) CopyToUser(dstva riscv.Va, src []byte) error {
	n := uintptr(len(src))
	for off := uintptr(0); off < n; {
		va0 := riscv.Va(riscv.PGRoundDown(uintptr(dstva) + off))
		pa0, err := pt.Walkaddr(va0)
		if err != nil {
			return err
		}
		pageOff := (uintptr(dstva) + off) - uintptr(va0)
		chunk := riscv.PGSIZE - pageOff
		if rem := n - off; chunk > rem {
			chunk = rem
		}
		copy(pt.mem.Bytes(pa0)[pageOff:pageOff+chunk], src[off:off+chunk])
		off += chunk
	}
	return nil
}

// CopyFromUser copies len(dst) bytes out of user memory starting at
// srcva into dst, crossing page boundaries as needed.
func (pt *PageTable) CopyFromUser(dst []byte, srcva riscv.Va) error {
	n := uintptr(len(dst))
	for off := uintptr(0); off < n; {
		va0 := riscv.Va(riscv.PGRoundDown(uintptr(srcva) + off))
		pa0, err := pt.Walkaddr(va0)
		if err != nil {
			return err
		}
		pageOff := (uintptr(srcva) + off) - uintptr(va0)
		chunk := riscv.PGSIZE - pageOff
		if rem := n - off; chunk > rem {
			chunk = rem
		}
		copy(dst[off:off+chunk], pt.mem.Bytes(pa0)[pageOff:pageOff+chunk])
		off += chunk
	}
	return nil
}

// CopyInString copies a NUL-terminated string out of user memory
// starting at srcva, stopping at maxLen bytes without finding a NUL.
func (pt *PageTable) CopyInString(srcva riscv.Va, maxLen int) (string, error) {
	out := make([]byte, 0, 64)
	off := uintptr(0)
	for len(out) < maxLen {
		va0 := riscv.Va(riscv.PGRoundDown(uintptr(srcva) + off))
		pa0, err := pt.Walkaddr(va0)
		if err != nil {
			return "", err
		}
		page := pt.mem.Bytes(pa0)
		pageOff := (uintptr(srcva) + off) - uintptr(va0)

		for pageOff < riscv.PGSIZE {
			c := page[pageOff]
			if c == 0 {
				return string(out), nil
			}
			out = append(out, c)
			if len(out) >= maxLen {
				return "", ErrStringTooLong
			}
			pageOff++
			off++
		}
	}
	return "", ErrStringTooLong
}

func zeroPage(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
