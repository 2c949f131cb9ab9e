// Package hopnode wires a single node's collaborators — blob store,
// directory client, control plane, bulk transport — into the object
// lifecycle end to end: Put seals an object locally and advertises it; Get
// resolves an unknown object via the directory and pulls it from whichever
// node holds it.
//
// Every collaborator is constructed by New before any goroutine starts, and
// Stop joins every goroutine it started before returning: a Node is either
// fully wired or not constructed at all, never half-started.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package hopnode

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/nwtnni/hoplite-go/cluster"
	"github.com/nwtnni/hoplite-go/cluster/meta"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/cmn/certloader"
	"github.com/nwtnni/hoplite-go/cmn/nlog"
	"github.com/nwtnni/hoplite-go/control"
	"github.com/nwtnni/hoplite-go/directory"
	"github.com/nwtnni/hoplite-go/reduce"
	"github.com/nwtnni/hoplite-go/transport"
)

// tlsReloadInterval is how often a configured certificate is re-stat'd for
// rotation. Not exposed as a config knob: cfg.TLS only needs to say whether
// TLS is on, not how eagerly to pick up a renewed certificate.
const tlsReloadInterval = 5 * time.Minute

// Node is one participant in the fabric: it answers control-plane Pull
// requests and bulk transfers against its own store, and originates both
// when asked to Get an object it doesn't hold.
type Node struct {
	cfg   *cmn.Config
	store cluster.BlobStore

	dir      *directory.Client
	notifyLn *directory.Listener
	plane    *control.Plane
	recv     *transport.Receiver

	controlSrv *http.Server
	bulkLn     net.Listener

	groups *groupState

	certLoader *certloader.Loader
	certStop   func()

	running atomic.Bool
	wg      sync.WaitGroup
	errCh   chan error
}

// New constructs every collaborator against cfg and store, and registers a
// Backend directory client against directoryBaseURL (e.g. an in-process
// directory/memdirectory.Backend's httptest server, or a real deployment's
// directory node). It does not bind any listener or start any goroutine —
// call Start for that.
func New(cfg *cmn.Config, store cluster.BlobStore, directoryBaseURL string) *Node {
	n := &Node{
		cfg:   cfg,
		store: store,
		dir:   directory.NewClient(directoryBaseURL, cfg.Net.Address),
		plane:  control.NewPlane(store, cfg.Net.BulkPort, cfg.Control.BusyRetryInterval.D()),
		errCh:  make(chan error, 3),
		groups: newGroupState(),
	}
	n.notifyLn = directory.NewListener(cfg.Net.Address+":"+strconv.Itoa(cfg.Net.NotifyPort), n.dir)
	n.recv = transport.NewReceiver(store, cfg.Transport.MaxInflightRecv, n.onSealed)
	n.controlSrv = &http.Server{
		Addr:    cfg.Net.Address + ":" + strconv.Itoa(cfg.Net.ControlPort),
		Handler: n.plane.Handler(),
	}
	return n
}

// Start binds the bulk and control listeners and runs each accept loop, and
// the notification listener, in its own goroutine. Start returns once the
// bulk and control ports are bound; the notification listener binds its
// port inside its goroutine, so a failure there (like any other goroutine
// failure) surfaces through Err rather than from Start. If cfg.TLS names a
// certificate and key, all three listeners terminate TLS using it instead
// of plain TCP/HTTP.
func (n *Node) Start(ctx context.Context) error {
	var tlsConfig *tls.Config
	if n.cfg.TLS.CertFile != "" && n.cfg.TLS.KeyFile != "" {
		loader, err := certloader.New(n.cfg.TLS.CertFile, n.cfg.TLS.KeyFile)
		if err != nil {
			return errors.Wrap(err, "hopnode: load TLS certificate")
		}
		n.certLoader = loader
		n.certStop = loader.Watch(tlsReloadInterval)
		tlsConfig = &tls.Config{GetCertificate: loader.GetCertificate}
	}

	bulkLn, err := net.Listen("tcp", n.cfg.Net.Address+":"+strconv.Itoa(n.cfg.Net.BulkPort))
	if err != nil {
		return errors.Wrap(err, "hopnode: bind bulk port")
	}
	if tlsConfig != nil {
		bulkLn = tls.NewListener(bulkLn, tlsConfig)
	}
	n.bulkLn = bulkLn

	controlLn, err := net.Listen("tcp", n.controlSrv.Addr)
	if err != nil {
		bulkLn.Close()
		return errors.Wrap(err, "hopnode: bind control port")
	}
	if tlsConfig != nil {
		n.controlSrv.TLSConfig = tlsConfig
		n.notifyLn.UseTLS(tlsConfig)
	}

	n.running.Store(true)

	n.wg.Add(3)
	go func() {
		defer n.wg.Done()
		if err := n.recv.Serve(ctx, bulkLn); err != nil {
			n.errCh <- errors.Wrap(err, "hopnode: bulk accept loop")
		}
	}()
	go func() {
		defer n.wg.Done()
		var err error
		if tlsConfig != nil {
			err = n.controlSrv.ServeTLS(controlLn, "", "")
		} else {
			err = n.controlSrv.Serve(controlLn)
		}
		if err != nil && err != http.ErrServerClosed {
			n.errCh <- errors.Wrap(err, "hopnode: control server")
		}
	}()
	go func() {
		defer n.wg.Done()
		if err := n.notifyLn.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.errCh <- errors.Wrap(err, "hopnode: notify listener")
		}
	}()

	nlog.Infoln("hopnode: started at", n.cfg.Net.Address,
		"control:", n.cfg.Net.ControlPort, "bulk:", n.cfg.Net.BulkPort, "notify:", n.cfg.Net.NotifyPort)
	return nil
}

// Err returns the channel background goroutine failures are sent on (room
// for one per goroutine Start runs). Callers typically select on it
// alongside their own shutdown trigger.
func (n *Node) Err() <-chan error { return n.errCh }

// Stop shuts every listener down and joins every goroutine Start began.
// Safe to call once Start has returned, whether or not Start succeeded.
func (n *Node) Stop(ctx context.Context) error {
	if !n.running.CompareAndSwap(true, false) {
		return nil
	}
	if n.certStop != nil {
		n.certStop()
	}
	var errs []error
	if n.bulkLn != nil {
		if err := n.bulkLn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := n.controlSrv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := n.notifyLn.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	n.wg.Wait()
	if len(errs) > 0 {
		return errors.Errorf("hopnode: shutdown errors: %v", errs)
	}
	return nil
}

// UpdateGroup installs gmd as this node's view of a reduce group's
// membership, planning (or replanning) the group's topology in the same
// step, provided gmd is newer than whatever this node last saw for the
// same group id. It reports whether the update was accepted.
func (n *Node) UpdateGroup(gmd *meta.GroupMD) (bool, error) {
	return n.groups.UpdateGroup(gmd, n.cfg.Reduce.MaxChainLength)
}

// GroupTopology returns the most recently planned reduce.Topology for
// groupID, or nil if this node has not observed membership for it yet.
func (n *Node) GroupTopology(groupID cmn.ObjectID) *reduce.Topology {
	return n.groups.Topology(groupID)
}

// onSealed is the Receiver hook: once a bulk transfer lands and the blob is
// sealed, this node is the new owner of record, so it advertises itself and
// fires the completion fan-out in one step.
func (n *Node) onSealed(id cmn.ObjectID) {
	ctx := context.Background()
	if err := n.dir.Publish(ctx, id); err != nil {
		nlog.Warningln("hopnode: publish", id, "after pull:", err)
		return
	}
	if err := n.dir.PublishCompletion(ctx, id); err != nil {
		nlog.Warningln("hopnode: publish-completion", id, "after pull:", err)
	}
}

// Put seals size bytes read from payload under id in the local store and
// advertises the result to the rest of the cluster.
func (n *Node) Put(ctx context.Context, id cmn.ObjectID, size int64, payload io.Reader) error {
	handle, err := n.store.Create(id, size)
	if err != nil {
		return errors.Wrapf(err, "hopnode: create %s", id)
	}
	if _, err := io.CopyN(handle.Writer(), payload, size); err != nil {
		n.store.Delete(id)
		return errors.Wrapf(err, "hopnode: fill %s", id)
	}
	if err := n.store.Seal(id); err != nil {
		return errors.Wrapf(err, "hopnode: seal %s", id)
	}
	if err := n.dir.Publish(ctx, id); err != nil {
		return errors.Wrapf(err, "hopnode: publish %s", id)
	}
	if err := n.dir.PublishCompletion(ctx, id); err != nil {
		return errors.Wrapf(err, "hopnode: publish-completion %s", id)
	}
	return nil
}

// Get returns a handle to id's bytes, pulling them from whichever node owns
// the object if this node doesn't have them yet. controlPort is the
// fixed-per-deployment port every node's control plane listens on.
func (n *Node) Get(ctx context.Context, id cmn.ObjectID, controlPort int) (cluster.BlobHandle, error) {
	// a non-blocking probe: if id is already a known, sealed local blob,
	// Get returns immediately regardless of context state; anything else
	// (unknown id, or known-but-still-filling) falls through to the
	// directory/pull path below rather than blocking on it here.
	probeCtx, cancel := context.WithCancel(ctx)
	cancel()
	if handle, err := n.store.Get(probeCtx, id); err == nil {
		return handle, nil
	}

	addr, err := n.dir.Lookup(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "hopnode: lookup %s", id)
	}
	if addr.Empty() {
		sub, err := n.dir.Subscribe(ctx, []cmn.ObjectID{id}, true)
		if err != nil {
			return nil, errors.Wrapf(err, "hopnode: subscribe %s", id)
		}
		defer n.dir.Unsubscribe(ctx, sub)
		if _, err := sub.Wait(ctx); err != nil {
			return nil, errors.Wrapf(err, "hopnode: wait for %s", id)
		}
		addr, err = n.dir.Lookup(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "hopnode: lookup %s after wait", id)
		}
		if addr.Empty() {
			return nil, cmn.ErrObjectUnknown
		}
	}

	if err := n.plane.PullObject(ctx, addr, controlPort, n.cfg.Net.Address, id); err != nil {
		return nil, errors.Wrapf(err, "hopnode: pull %s from %s", id, addr)
	}
	return n.store.Get(ctx, id)
}
