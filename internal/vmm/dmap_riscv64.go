//go:build riscv64

package vmm

import (
	"unsafe"

	"github.com/sprout-os/sprout/internal/riscv"
)

// DirectMap is the Mem implementation real boot code uses: physical
// addresses are read through the kernel's identity direct map, the
// same assumption internal/pmm's New makes.
type DirectMap struct{}

func (DirectMap) PTE(pa riscv.Pa) *[512]riscv.Pte {
	return (*[512]riscv.Pte)(unsafe.Pointer(uintptr(pa)))
}

func (DirectMap) Bytes(pa riscv.Pa) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(pa))), riscv.PGSIZE)
}
