// Package bio is the block buffer cache: a fixed pool of NBuf buffers
// kept on an LRU list, handing out at most one cached copy of any
// (dev, blockno) pair at a time (§4.4).
package bio

import (
	"fmt"

	"github.com/sprout-os/sprout/internal/klock"
	"github.com/sprout-os/sprout/internal/virtio"
)

// NBuf is the size of the buffer pool. xv7-riscv ships with 30; there
// is nothing spec-critical about the number itself, only that it is
// fixed and that exhaustion is a panic (§8, "Buffer cache recycles the
// least-recently-used zero-refcount buffer; if all NBuf have refcount
// > 0, read panics").
const NBuf = 30

// Buffer is one cached disk block. The sleep lock must be held by
// whoever is reading or writing Data; Release drops it.
type Buffer struct {
	dev     uint32
	blockno uint32
	valid   bool
	refcnt  int
	lock    *klock.Sleeplock

	prev, next *Buffer // LRU list, guarded by Cache.guard

	Data [virtio.BlockSize]byte
}

func (b *Buffer) Dev() uint32     { return b.dev }
func (b *Buffer) Blockno() uint32 { return b.blockno }

// Cache is the global buffer pool and its LRU list. head.next is most
// recently used, head.prev is least recently used, exactly mirroring
// the teacher's sentinel-node convention.
type Cache struct {
	guard *klock.Spinlock
	buf   [NBuf]Buffer
	head  Buffer

	disk virtio.BlockDevice
}

// NewCache wires the buffer pool to disk, the sole collaborator bio
// needs from the out-of-scope driver layer.
func NewCache(disk virtio.BlockDevice) *Cache {
	c := &Cache{guard: klock.NewSpinlock("bcache"), disk: disk}
	c.head.prev = &c.head
	c.head.next = &c.head
	for i := range c.buf {
		b := &c.buf[i]
		b.lock = klock.NewSleeplock(fmt.Sprintf("buf%d", i))
		b.next = c.head.next
		b.prev = &c.head
		c.head.next.prev = b
		c.head.next = b
	}
	return c
}

// get returns a locked buffer for (dev, blockno): an existing cached
// copy with its refcount bumped, or a recycled zero-refcount buffer
// repurposed for this block. It panics if every buffer is pinned.
func (c *Cache) get(h klock.Waiter, dev, blockno uint32) *Buffer {
	c.guard.Acquire(h)

	for b := c.head.next; b != &c.head; b = b.next {
		if b.dev == dev && b.blockno == blockno {
			b.refcnt++
			c.guard.Release(h)
			b.lock.Acquire(h)
			return b
		}
	}

	for b := c.head.prev; b != &c.head; b = b.prev {
		if b.refcnt == 0 {
			b.dev = dev
			b.blockno = blockno
			b.valid = false
			b.refcnt = 1
			c.guard.Release(h)
			b.lock.Acquire(h)
			return b
		}
	}

	panic("bio: no buffers, all NBuf are pinned")
}

// Read returns a locked buffer holding the contents of (dev, blockno),
// reading it from disk the first time it is cached.
func (c *Cache) Read(h klock.Waiter, dev, blockno uint32) (*Buffer, error) {
	b := c.get(h, dev, blockno)
	if !b.valid {
		if err := c.disk.ReadBlock(dev, blockno, b.Data[:]); err != nil {
			b.lock.Release(h)
			return nil, err
		}
		b.valid = true
	}
	return b, nil
}

// Write issues a synchronous write of b's contents to disk. The caller
// must already hold b's sleep lock.
func (c *Cache) Write(h klock.Waiter, b *Buffer) error {
	if !b.lock.Holding(h) {
		panic("bio: write of buffer not locked by caller")
	}
	return c.disk.WriteBlock(b.dev, b.blockno, b.Data[:])
}

// Release drops b's sleep lock and, if no one else references it,
// moves it to the head of the LRU list.
func (c *Cache) Release(h klock.Waiter, b *Buffer) {
	if !b.lock.Holding(h) {
		panic("bio: release of buffer not locked by caller")
	}
	b.lock.Release(h)

	c.guard.Acquire(h)
	defer c.guard.Release(h)
	b.refcnt--
	if b.refcnt == 0 {
		b.next.prev = b.prev
		b.prev.next = b.next
		b.next = c.head.next
		b.prev = &c.head
		c.head.next.prev = b
		c.head.next = b
	}
}

// Pin increments b's refcount without touching its LRU position, for
// the external log subsystem to keep a dirty buffer resident.
func (c *Cache) Pin(h klock.HartInterrupts, b *Buffer) {
	c.guard.Acquire(h)
	b.refcnt++
	c.guard.Release(h)
}

// Unpin is Pin's inverse.
func (c *Cache) Unpin(h klock.HartInterrupts, b *Buffer) {
	c.guard.Acquire(h)
	b.refcnt--
	c.guard.Release(h)
}
