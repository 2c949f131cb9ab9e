package transport

import (
	"context"
	"io"
	"net"

	"github.com/nwtnni/hoplite-go/cluster"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/cmn/nlog"
)

// Receiver runs the bulk-port accept loop: accept a connection, read the
// header, ask the local allocator for a mutable blob, loop bytes in,
// ack, seal. Multiple inbound transfers proceed concurrently via a bounded
// worker pool gated by a semaphore channel rather than one goroutine per
// connection unbounded.
type Receiver struct {
	store    cluster.BlobStore
	semaCh   chan struct{}
	onSealed func(id cmn.ObjectID)
}

// NewReceiver returns a Receiver storing inbound blobs in store, calling
// onSealed (if non-nil) after each blob is durably sealed — the
// orchestrator's hook to publish(object_id, my_address) and
// publish_completion(object_id). maxInflight bounds concurrently
// in-progress inbound transfers.
func NewReceiver(store cluster.BlobStore, maxInflight int, onSealed func(cmn.ObjectID)) *Receiver {
	return &Receiver{
		store:    store,
		semaCh:   make(chan struct{}, maxInflight),
		onSealed: onSealed,
	}
}

// Serve runs the accept loop against ln until ctx is done or Accept fails.
func (r *Receiver) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		r.semaCh <- struct{}{}
		go func() {
			defer func() { <-r.semaCh }()
			r.handle(conn)
		}()
	}
}

func (r *Receiver) handle(conn net.Conn) {
	defer conn.Close()

	id, size, err := readHeader(conn)
	if err != nil {
		nlog.Warningln("transport: receive header:", err)
		return
	}

	handle, err := r.store.Create(id, size)
	if err != nil {
		nlog.Warningln("transport: create blob", id, ":", err)
		return
	}

	// recv loop: io.CopyN tolerates short reads internally, looping until
	// exactly size bytes have been copied or an error/EOF occurs.
	if _, err := io.CopyN(handle.Writer(), conn, size); err != nil {
		nlog.Warningln("transport: receive", id, ":", err)
		r.store.Delete(id) // discard partial blob, do not seal
		return
	}

	if err := writeAck(conn); err != nil {
		nlog.Warningln("transport: ack", id, ":", err)
		r.store.Delete(id)
		return
	}

	if err := r.store.Seal(id); err != nil {
		nlog.Errorln("transport: seal", id, ":", err)
		return
	}

	if nlog.FastV(4, nlog.SmoduleTransport) {
		nlog.Infoln("transport: sealed", id, "size", size)
	}

	if r.onSealed != nil {
		r.onSealed(id)
	}
}
