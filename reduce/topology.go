// Package reduce builds a tree-of-chains topology: a full binary tree of
// interior nodes whose leaves are replaced by chains, used to schedule a
// reduction so that a handful of interior nodes combine partial results in
// O(log N) depth instead of a flat N-way fan-in. Nodes reference neighbors
// by pointer, but every pointer is owned by one Topology value built in a
// single Plan call, so there is no global state and no
// partially-constructed node is ever observed from outside the package.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package reduce

import "github.com/pkg/errors"

type (
	// Node is one position in the combined tree-of-chains structure,
	// either a tree interior node (IsTreeNode) or a chain element. Chain
	// elements only ever populate Left (the previous chain element);
	// Right is reserved for tree interior nodes.
	Node struct {
		IsTreeNode  bool
		SubtreeSize int
		Order       int // in-order rank, [0, N)
		Parent      *Node
		Left, Right *Node
	}

	// Topology is the planner's output: a flat arena of tree nodes, a
	// slice of chains (each a flat arena of chain nodes), and Map giving
	// O(1) access to any node by its in-order rank.
	Topology struct {
		ObjectCount    int
		MaxChainLength int
		Tree           []*Node
		Chains         [][]*Node
		Map            []*Node
	}
)

// Plan builds the topology for objectCount total nodes (interior tree
// nodes plus chain nodes combined) constrained to chains no longer than
// approximately 2*maxChainLength. Plan is a pure function: no network
// resources, no collaborator calls.
func Plan(objectCount, maxChainLength int) (*Topology, error) {
	if objectCount < 1 {
		return nil, errors.Errorf("reduce: object_count must be >= 1, got %d", objectCount)
	}
	if maxChainLength < 1 {
		return nil, errors.Errorf("reduce: maximum_chain_length must be >= 1, got %d", maxChainLength)
	}

	n := int64(objectCount)
	k := int64(maxChainLength)
	depth := ceilLog2Ratio(n+1, k+1)
	if dmax := floorLog2(n + 1); dmax < depth {
		depth = dmax
	}

	topo := &Topology{ObjectCount: objectCount, MaxChainLength: maxChainLength}

	var root *Node
	if depth <= 0 {
		chain := buildChain(objectCount)
		topo.Chains = [][]*Node{chain}
		if len(chain) > 0 {
			root = chain[len(chain)-1]
		}
	} else {
		tree, chains, err := buildTree(int(depth), objectCount)
		if err != nil {
			return nil, err
		}
		topo.Tree = tree
		topo.Chains = chains
		root = tree[0]
	}

	topo.Map = make([]*Node, objectCount)
	order := 0
	inorder(root, topo.Map, &order)
	if order != objectCount {
		return nil, errors.Errorf("reduce: internal error, labeled %d of %d nodes", order, objectCount)
	}
	return topo, nil
}

// buildChain constructs a single linear chain of length n: chain[0] is the
// head (no child), each subsequent node's Left is the previous node.
func buildChain(n int) []*Node {
	chain := make([]*Node, n)
	for i := range chain {
		chain[i] = &Node{SubtreeSize: i + 1}
		if i > 0 {
			chain[i].Left = chain[i-1]
			chain[i-1].Parent = chain[i]
		}
	}
	return chain
}

// buildTree constructs the full binary tree of depth `depth` (T = 2^depth -
// 1 interior nodes) and its 2^depth chains, wiring the bottom tree row to
// chain tails and every other row by the standard heap-index relation.
func buildTree(depth, objectCount int) (tree []*Node, chains [][]*Node, err error) {
	t := 1<<uint(depth) - 1
	tree = make([]*Node, t)
	for i := range tree {
		tree[i] = &Node{IsTreeNode: true}
	}

	remaining := objectCount - t
	if remaining < 0 {
		return nil, nil, errors.Errorf("reduce: internal error, tree alone needs %d nodes > object_count %d", t, objectCount)
	}
	c := 1 << uint(depth)
	chains = make([][]*Node, c)
	for i := 0; i < c; i++ {
		length := remaining / c
		if i < remaining%c {
			length++
		}
		chains[i] = buildChain(length)
	}

	// bottom row: each node adopts two chains' tails.
	w := depth - 1
	front := 1<<uint(w) - 1
	end := 1<<uint(w+1) - 1
	for i := front; i < end; i++ {
		node := tree[i]
		node.SubtreeSize = 1
		left := chains[(i-front)<<1]
		right := chains[((i-front)<<1)+1]
		if len(left) > 0 {
			node.Left = left[len(left)-1]
			node.Left.Parent = node
			node.SubtreeSize += node.Left.SubtreeSize
		}
		if len(right) > 0 {
			node.Right = right[len(right)-1]
			node.Right.Parent = node
			node.SubtreeSize += node.Right.SubtreeSize
		}
	}

	// upper rows: standard (left=2i+1, right=2i+2) relation.
	for w := depth - 2; w >= 0; w-- {
		front := 1<<uint(w) - 1
		end := 1<<uint(w+1) - 1
		for i := front; i < end; i++ {
			node := tree[i]
			node.Left = tree[2*i+1]
			node.Right = tree[2*i+2]
			node.Left.Parent = node
			node.Right.Parent = node
			node.SubtreeSize = 1 + node.Left.SubtreeSize + node.Right.SubtreeSize
		}
	}
	return tree, chains, nil
}

// inorder assigns Order by a plain left-self-right traversal. Treating
// chain nodes and tree nodes uniformly this way works because a chain is
// exactly a binary tree that never populates Right: walking it in-order
// visits chain[0], chain[1], ... chain[len-1], a contiguous range.
func inorder(n *Node, out []*Node, counter *int) {
	if n == nil {
		return
	}
	inorder(n.Left, out, counter)
	n.Order = *counter
	out[*counter] = n
	*counter++
	inorder(n.Right, out, counter)
}

// ceilLog2Ratio returns the smallest integer e such that den*2^e >= num,
// i.e. ceil(log2(num/den)), computed with exact integer arithmetic to
// avoid floating-point boundary errors at exact powers of two.
func ceilLog2Ratio(num, den int64) int64 {
	if num <= den {
		return 0
	}
	var e int64
	cur := den
	for cur < num {
		cur <<= 1
		e++
	}
	return e
}

// floorLog2 returns the largest integer e such that 2^e <= n.
func floorLog2(n int64) int64 {
	var e int64
	for 1<<uint(e+1) <= n {
		e++
	}
	return e
}
