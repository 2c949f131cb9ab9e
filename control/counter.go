package control

import (
	"sync"

	"github.com/nwtnni/hoplite-go/cmn"
)

// OutboundCounter is the per-node table of currently-running outbound
// transfers. The per-id cap of 1 is modeled as set membership rather than
// an integer counter, since the slot never legitimately holds anything
// but reserved or free: a `sync.Mutex`-guarded `map[cmn.ObjectID]bool`
// where true means a serve-path currently holds the slot for that id.
// Entries persist once created — reaping them is explicitly not required
// for correctness.
type OutboundCounter struct {
	mu   sync.Mutex
	busy map[cmn.ObjectID]bool
}

// NewOutboundCounter returns an empty counter.
func NewOutboundCounter() *OutboundCounter {
	return &OutboundCounter{busy: make(map[cmn.ObjectID]bool)}
}

// TryReserve attempts to claim the outbound slot for id. It reports true
// (and reserves the slot) iff the id was not already reserved.
func (c *OutboundCounter) TryReserve(id cmn.ObjectID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy[id] {
		return false
	}
	c.busy[id] = true
	return true
}

// Release frees the outbound slot for id, regardless of exit path. Calling
// Release on an id that isn't reserved is a programming error.
func (c *OutboundCounter) Release(id cmn.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmn.Assert(c.busy[id], "control: release of unreserved outbound slot for ", id)
	delete(c.busy, id)
}
