package bio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprout-os/sprout/internal/klock"
	"github.com/sprout-os/sprout/internal/virtio"
)

// fakeHart is the minimal klock.Waiter this package's tests need; see
// internal/klock's own test suite for the fuller rationale of this
// shape (push_off/pop_off bookkeeping plus a shared wait table for
// sleep/wakeup).
type fakeHart struct {
	id     int
	noff   int
	wt     *waitTable
}

type waitTable struct {
	mu    sync.Mutex
	cond  *sync.Cond
	woken map[any]bool
}

func newWaitTable() *waitTable {
	w := &waitTable{woken: make(map[any]bool)}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func newFakeHart(id int, wt *waitTable) *fakeHart { return &fakeHart{id: id, wt: wt} }

func (h *fakeHart) ID() int      { return h.id }
func (h *fakeHart) PushOff()     { h.noff++ }
func (h *fakeHart) PopOff()      { h.noff-- }

func (h *fakeHart) Sleep(chanID any, guard *klock.Spinlock) {
	guard.Release(h)
	h.wt.mu.Lock()
	for !h.wt.woken[chanID] {
		h.wt.cond.Wait()
	}
	h.wt.mu.Unlock()
	guard.Acquire(h)
}

func (h *fakeHart) Wakeup(chanID any) {
	h.wt.mu.Lock()
	h.wt.woken[chanID] = true
	h.wt.cond.Broadcast()
	h.wt.mu.Unlock()
}

func TestReadCachesAndReusesBuffer(t *testing.T) {
	wt := newWaitTable()
	h := newFakeHart(0, wt)
	disk := virtio.NewMemBackend()
	payload := make([]byte, virtio.BlockSize)
	payload[0] = 42
	require.NoError(t, disk.WriteBlock(0, 5, payload))

	c := NewCache(disk)
	b, err := c.Read(h, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, byte(42), b.Data[0])
	c.Release(h, b)

	b2, err := c.Read(h, 0, 5)
	require.NoError(t, err)
	assert.Same(t, b, b2, "second read of the same block must hit the cache")
	c.Release(h, b2)
}

func TestWriteRequiresHoldingTheBufferLock(t *testing.T) {
	wt := newWaitTable()
	h := newFakeHart(0, wt)
	c := NewCache(virtio.NewMemBackend())

	b, err := c.Read(h, 0, 0)
	require.NoError(t, err)
	b.Data[0] = 9
	require.NoError(t, c.Write(h, b))
	c.Release(h, b)

	assert.Panics(t, func() { c.Write(h, b) }, "write after release must panic")
}

func TestLRURecyclesLeastRecentlyUsedZeroRefcountBuffer(t *testing.T) {
	wt := newWaitTable()
	h := newFakeHart(0, wt)
	c := NewCache(virtio.NewMemBackend())

	// Touch and release every buffer's worth of distinct blocks plus
	// one more: the (NBuf+1)'th distinct block forces a recycle.
	for i := uint32(0); i < NBuf; i++ {
		b, err := c.Read(h, 0, i)
		require.NoError(t, err)
		c.Release(h, b)
	}

	bNew, err := c.Read(h, 0, NBuf)
	require.NoError(t, err)
	assert.Equal(t, uint32(NBuf), bNew.Blockno())
	c.Release(h, bNew)
}

func TestReadPanicsWhenAllBuffersArePinned(t *testing.T) {
	wt := newWaitTable()
	h := newFakeHart(0, wt)
	c := NewCache(virtio.NewMemBackend())

	for i := uint32(0); i < NBuf; i++ {
		_, err := c.Read(h, 0, i)
		require.NoError(t, err)
		// deliberately not releasing: refcount stays 1
	}

	assert.Panics(t, func() { c.Read(h, 0, NBuf) })
}

func TestPinUnpinLeavesLRUPositionAlone(t *testing.T) {
	wt := newWaitTable()
	h := newFakeHart(0, wt)
	c := NewCache(virtio.NewMemBackend())

	b, err := c.Read(h, 0, 1)
	require.NoError(t, err)
	c.Release(h, b) // refcnt 0, moved to LRU head

	c.Pin(h, b)
	assert.Same(t, b, c.head.next, "pin must not move the buffer in the LRU list")
	c.Unpin(h, b)
}
