package exec_test

import (
	"encoding/binary"
	"testing"

	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/reduce"
	"github.com/nwtnni/hoplite-go/reduce/exec"
)

// idFor and valueOf let the test treat an ObjectID as a little-endian
// encoded int so contribute/combine can be pure arithmetic: no store, no
// network, just enough to check exec walks the topology correctly.
func idFor(v int64) cmn.ObjectID {
	var id cmn.ObjectID
	binary.LittleEndian.PutUint64(id[:8], uint64(v))
	return id
}

func valueOf(id cmn.ObjectID) int64 {
	return int64(binary.LittleEndian.Uint64(id[:8]))
}

func TestRunSumsAllContributions(t *testing.T) {
	const n, k = 15, 1
	topo, err := reduce.Plan(n, k)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	next := int64(1)
	contribute := func() (cmn.ObjectID, error) {
		v := next
		next++
		return idFor(v), nil
	}
	combine := func(left, right cmn.ObjectID) (cmn.ObjectID, error) {
		return idFor(valueOf(left) + valueOf(right)), nil
	}

	root := topo.Tree[0].Order
	result, err := exec.Run(topo, root, contribute, combine)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// every chain head contributes exactly once; the root's result must be
	// the sum 1..leafCount regardless of how many leaves there are.
	leafCount := next - 1
	want := leafCount * (leafCount + 1) / 2
	if valueOf(result) != want {
		t.Fatalf("Run(root) = %d, want %d (leafCount=%d)", valueOf(result), want, leafCount)
	}
}

func TestRunDegenerateChainForwardsHeadValue(t *testing.T) {
	topo, err := reduce.Plan(4, 100) // depth collapses to 0: single chain
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(topo.Tree) != 0 {
		t.Fatalf("expected degenerate topology, got %d tree nodes", len(topo.Tree))
	}

	calls := 0
	contribute := func() (cmn.ObjectID, error) {
		calls++
		return idFor(42), nil
	}
	combine := func(left, right cmn.ObjectID) (cmn.ObjectID, error) {
		t.Fatal("combine should never be called for a pure chain")
		return cmn.NilObjectID, nil
	}

	tail := topo.Chains[0][len(topo.Chains[0])-1].Order
	result, err := exec.Run(topo, tail, contribute, combine)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if valueOf(result) != 42 {
		t.Fatalf("Run(tail) = %d, want 42", valueOf(result))
	}
	if calls != 1 {
		t.Fatalf("contribute called %d times, want 1", calls)
	}
}

func TestRunRejectsOutOfRangeRank(t *testing.T) {
	topo, err := reduce.Plan(3, 1)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	_, err = exec.Run(topo, len(topo.Map), nil, nil)
	if err == nil {
		t.Fatal("expected error for out-of-range rank")
	}
}
