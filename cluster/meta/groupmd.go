// Package meta carries cluster-level metadata that outlives any single
// connection: here, the membership list a reduce operation plans its
// tree-of-chains topology against, distributed as a versioned document to
// every node in the cluster.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package meta

import "github.com/nwtnni/hoplite-go/cmn"

type (
	// GroupMD is the versioned list of node addresses participating in
	// one reduce operation, in the rank order reduce.Plan assigns tree
	// positions against. A node importing a newer GroupMD (larger
	// Version) for the same group id discards any Topology it already
	// built from an older one.
	GroupMD struct {
		GroupID cmn.ObjectID `json:"group_id"`
		Members []cmn.Address `json:"members"`
		Version int64         `json:"version"`
	}
)

// Newer reports whether other carries a strictly larger version than gmd,
// i.e. whether a node observing other should supersede gmd with it.
func (gmd *GroupMD) Newer(other *GroupMD) bool {
	return other != nil && (gmd == nil || other.Version > gmd.Version)
}