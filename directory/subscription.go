package directory

import (
	"context"
	"sync"

	"github.com/nwtnni/hoplite-go/cmn"
)

// Subscription is a single subscriber's pending/ready split, guarded by its
// own mutex+condition pair: pending holds ids still awaiting notification,
// ready holds ids whose ObjectIsReady has arrived but not yet been
// consumed by Wait. pending and ready are always disjoint.
type Subscription struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending map[cmn.ObjectID]struct{}
	ready   map[cmn.ObjectID]struct{}

	// ids remembers the original subscribe set so Unsubscribe can tell
	// the backend which per-id registrations to drop.
	ids []cmn.ObjectID
}

func newSubscription(ids []cmn.ObjectID) *Subscription {
	s := &Subscription{
		pending: make(map[cmn.ObjectID]struct{}, len(ids)),
		ready:   make(map[cmn.ObjectID]struct{}),
		ids:     append([]cmn.ObjectID(nil), ids...),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, id := range ids {
		s.pending[id] = struct{}{}
	}
	return s
}

// deliver moves id from pending to ready and wakes a waiter. An id not in
// pending (never subscribed, or already delivered) is silently dropped.
func (s *Subscription) deliver(id cmn.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return
	}
	delete(s.pending, id)
	s.ready[id] = struct{}{}
	s.cond.Broadcast()
}

// Wait blocks until ready is non-empty, then returns and atomically clears
// the entire ready set. Concurrent Wait calls on the same Subscription are
// undefined; Subscription is single-consumer.
func (s *Subscription) Wait(ctx context.Context) (map[cmn.ObjectID]struct{}, error) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.ready) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.cond.Wait()
	}
	ready := s.ready
	s.ready = make(map[cmn.ObjectID]struct{})
	return ready, nil
}
