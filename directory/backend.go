// Package directory is this node's view of the cluster-wide directory: the
// "global control store" that maps an object id to its owning node's
// address and fans completion notifications out to subscribers. Client is
// the node-facing API (publish/lookup/subscribe/publish_completion);
// Backend is the RPC surface a directory server exposes, implemented
// in-process by directory/memdirectory for standalone runs and tests, or
// reachable over HTTP via Client against a real deployment.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package directory

import "github.com/nwtnni/hoplite-go/cmn"

// Backend is the five operations the directory exposes on the wire.
// Client drives one of these over HTTP; directory/memdirectory implements
// one directly for standalone deployments.
type Backend interface {
	// WriteObjectLocation durably records that id now lives at addr.
	WriteObjectLocation(id cmn.ObjectID, addr cmn.Address) error

	// GetObjectLocation returns the recorded owner, or "" if unknown. It
	// never blocks waiting for the object to appear.
	GetObjectLocation(id cmn.ObjectID) (cmn.Address, error)

	// Subscribe registers subscriber as wanting ObjectIsReady deliveries
	// for id.
	Subscribe(subscriber cmn.Address, id cmn.ObjectID) error

	// Unsubscribe detaches subscriber's interest in id.
	Unsubscribe(subscriber cmn.Address, id cmn.ObjectID) error

	// ObjectComplete broadcasts an ObjectIsReady(id) event to every
	// address subscribed to id.
	ObjectComplete(id cmn.ObjectID) error
}
