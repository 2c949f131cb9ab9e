// Package memblobstore is a reference, in-process cluster.BlobStore backed
// by plain Go byte slices instead of a shared-memory arena. It exists for
// standalone daemons and tests exercising the transport/reduce paths
// without a real Plasma-style allocator wired up, the same role the
// teacher's in-memory cluster/mock implementations play against its own
// interfaces.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package memblobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cluster"
	"github.com/nwtnni/hoplite-go/cmn"
)

type entry struct {
	mu     sync.Mutex
	id     cmn.ObjectID
	size   int64
	buf    []byte
	sealed bool
	sealCh chan struct{}
}

// Store is a cluster.BlobStore keeping every blob's bytes in process
// memory, guarded by a single map-level mutex plus a per-blob mutex for the
// fill/seal transition.
type Store struct {
	mu      sync.Mutex
	entries map[cmn.ObjectID]*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[cmn.ObjectID]*entry)}
}

var _ cluster.BlobStore = (*Store)(nil)

func (s *Store) Create(id cmn.ObjectID, size int64) (cluster.BlobHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok && e != nil {
		return nil, errors.Errorf("memblobstore: %s already exists", id)
	}
	e := &entry{
		id:     id,
		size:   size,
		buf:    make([]byte, 0, size),
		sealCh: make(chan struct{}),
	}
	s.entries[id] = e
	return &handle{e: e}, nil
}

func (s *Store) Seal(id cmn.ObjectID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return errors.Wrapf(cmn.ErrObjectUnknown, "memblobstore: seal %s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return errors.Errorf("memblobstore: %s already sealed", id)
	}
	e.sealed = true
	close(e.sealCh)
	return nil
}

func (s *Store) Get(ctx context.Context, id cmn.ObjectID) (cluster.BlobHandle, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(cmn.ErrObjectUnknown, "memblobstore: get %s", id)
	}

	// an already-sealed blob is returned even when ctx is already done.
	select {
	case <-e.sealCh:
		return &handle{e: e}, nil
	default:
	}

	select {
	case <-e.sealCh:
		return &handle{e: e}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) Delete(id cmn.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// handle is the cluster.BlobHandle a caller holds across a
// create->fill->seal or get->read sequence.
type handle struct {
	e *entry
}

var _ cluster.BlobHandle = (*handle)(nil)

func (h *handle) ID() cmn.ObjectID { return h.e.id }
func (h *handle) Size() int64      { return h.e.size }

func (h *handle) Writer() io.Writer {
	return &fillWriter{e: h.e}
}

func (h *handle) Reader() (io.ReadCloser, error) {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	if !h.e.sealed {
		return nil, errors.Errorf("memblobstore: %s not sealed", h.e.id)
	}
	return io.NopCloser(bytes.NewReader(h.e.buf)), nil
}

// fillWriter appends to the blob's backing buffer while it is still
// mutable; writing after Seal panics, mirroring the allocator contract
// that a handle's Writer is only valid during create->fill->seal.
type fillWriter struct {
	e *entry
}

func (w *fillWriter) Write(p []byte) (int, error) {
	w.e.mu.Lock()
	defer w.e.mu.Unlock()
	if w.e.sealed {
		panic("memblobstore: write after seal: " + w.e.id.String())
	}
	w.e.buf = append(w.e.buf, p...)
	return len(p), nil
}
