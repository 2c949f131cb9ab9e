// Package cluster defines the interfaces hopnode uses to reach its two
// out-of-process collaborators: the shared-memory blob allocator (Plasma in
// the original system) and, via the sibling directory package, the
// cluster-wide control store. Keeping these as interfaces rather than
// concrete types lets hopnode run standalone against memblobstore in tests
// while a real deployment swaps in a shared-memory-backed implementation
// without touching transport or control code, mirroring the way the
// teacher's own cluster package sits between ais/ (the daemon) and fs/ (the
// on-disk reality) behind a handful of interfaces.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cluster

import (
	"context"
	"io"

	"github.com/nwtnni/hoplite-go/cmn"
)

type (
	// BlobHandle is a reference to one object's bytes, mutable until
	// sealed and immutable (safe for concurrent readers) afterward.
	BlobHandle interface {
		ID() cmn.ObjectID
		Size() int64

		// Writer returns the sink to fill while the blob is mutable.
		// Writing to it after Seal panics.
		Writer() io.Writer

		// Reader opens a fresh reader over the sealed blob's bytes. It
		// does not wait for the seal: on a blob not yet sealed it
		// returns an error. Waiting for the seal is BlobStore.Get's job.
		Reader() (io.ReadCloser, error)
	}

	// BlobStore stands in for the object store client collaborator:
	// create a mutable blob, fill it, seal it, and later retrieve a
	// handle to the sealed bytes by id.
	BlobStore interface {
		// Create allocates a new mutable blob of exactly size bytes.
		// It is an error to Create twice for the same id without an
		// intervening Delete.
		Create(id cmn.ObjectID, size int64) (BlobHandle, error)

		// Seal freezes the blob referenced by id, making it safe for
		// concurrent Reader calls and waking any Get callers blocked
		// on it. Seal on an already-sealed or unknown id is an error.
		Seal(id cmn.ObjectID) error

		// Get returns a handle to the blob referenced by id, blocking
		// until it has been sealed or ctx is done. Get does not
		// itself create the blob.
		Get(ctx context.Context, id cmn.ObjectID) (BlobHandle, error)

		// Delete releases the blob's storage. Safe to call on an
		// unknown id (no-op).
		Delete(id cmn.ObjectID)
	}
)
