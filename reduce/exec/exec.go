// Package exec is a thin driver over a planned reduce.Topology: given the
// position (rank) a caller is responsible for, it decides whether that
// position contributes fresh data or combines its children's results, and
// recurses down to resolve whatever that requires. It introduces no new
// wire format — contribute and combine are supplied by the caller and are
// exactly where a real deployment's directory.Client/control.Plane calls
// live; exec only ever touches topology pointers.
//
// Run is written for a single process resolving its own subtree (e.g. a
// standalone node looping over every chain head locally, or a unit test
// driving the whole topology), not for coordinating separate physical
// processes across the network: topology planning is the well-defined
// part of reduce execution, and this package leaves the distributed
// coordination protocol to the caller's contribute/combine callbacks.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package exec

import (
	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/reduce"
)

// Run resolves topo.Map[rank] and everything beneath it, returning the
// ObjectID that position ultimately produces.
//
// contribute is called once per chain head encountered (a position with no
// left child): it must produce or fetch that position's own data. combine
// is called once per tree interior node with both children present, given
// the already-resolved ids of its left and right subtrees. A chain
// position with a left child has nothing of its own to compute — its
// result is simply its predecessor's, so Run recurses without calling
// either callback.
func Run(
	topo *reduce.Topology,
	rank int,
	contribute func() (cmn.ObjectID, error),
	combine func(left, right cmn.ObjectID) (cmn.ObjectID, error),
) (cmn.ObjectID, error) {
	if rank < 0 || rank >= len(topo.Map) {
		return cmn.NilObjectID, errors.Errorf("reduce/exec: rank %d out of range [0, %d)", rank, len(topo.Map))
	}
	return resultAt(topo.Map[rank], contribute, combine)
}

func resultAt(
	n *reduce.Node,
	contribute func() (cmn.ObjectID, error),
	combine func(left, right cmn.ObjectID) (cmn.ObjectID, error),
) (cmn.ObjectID, error) {
	if !n.IsTreeNode {
		if n.Left == nil {
			return contribute()
		}
		return resultAt(n.Left, contribute, combine)
	}

	var left, right cmn.ObjectID
	var err error
	if n.Left != nil {
		if left, err = resultAt(n.Left, contribute, combine); err != nil {
			return cmn.NilObjectID, err
		}
	}
	if n.Right != nil {
		if right, err = resultAt(n.Right, contribute, combine); err != nil {
			return cmn.NilObjectID, err
		}
	}

	switch {
	case n.Left != nil && n.Right != nil:
		return combine(left, right)
	case n.Left != nil:
		return left, nil
	case n.Right != nil:
		return right, nil
	default:
		return contribute()
	}
}
