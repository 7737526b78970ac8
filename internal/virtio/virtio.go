// Package virtio specifies the narrow block-device surface the buffer
// cache demands of a disk driver, without implementing a VirtIO MMIO
// transport — §1 places UART/VirtIO driver internals out of scope,
// leaving only the interface the core calls through.
package virtio

import "github.com/sprout-os/sprout/internal/riscv"

// BlockSize is the size of one disk block, matching the page size so a
// block buffer and a physical frame are interchangeable.
const BlockSize = riscv.PGSIZE

// BlockDevice is what bufcache_get's virtio_disk_rw call is reduced
// to: read and write one BlockSize block at a time, addressed by
// device and block number, the way a real driver would service a
// descriptor-ring request under the hood.
type BlockDevice interface {
	ReadBlock(dev, blockno uint32, data []byte) error
	WriteBlock(dev, blockno uint32, data []byte) error
}
