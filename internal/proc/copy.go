package proc

import (
	"github.com/sprout-os/sprout/internal/riscv"
	"github.com/sprout-os/sprout/internal/vmm"
)

// EitherCopyOut writes src to dst: through pt's page table when
// userDst is true, or directly into kernelDst otherwise — the single
// code path pipe and console writes share whether the reader is a user
// process or an in-kernel caller (§4 supplemented features,
// either_copyout). Unlike the source's raw pointer cast, the kernel
// side takes an ordinary Go byte slice rather than treating dst as a
// dereferenceable address, since that cast has no safe Go equivalent.
func EitherCopyOut(pt *vmm.PageTable, userDst bool, dst riscv.Va, kernelDst []byte, src []byte) error {
	if userDst {
		return pt.CopyToUser(dst, src)
	}
	copy(kernelDst, src)
	return nil
}

// EitherCopyIn is EitherCopyOut's mirror image for reads
// (either_copyin): copies out of user memory via pt when userSrc is
// true, or out of kernelSrc otherwise.
func EitherCopyIn(pt *vmm.PageTable, userSrc bool, dst []byte, srcva riscv.Va, kernelSrc []byte) error {
	if userSrc {
		return pt.CopyFromUser(dst, srcva)
	}
	copy(dst, kernelSrc)
	return nil
}
