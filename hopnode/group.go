package hopnode

import (
	"sync"

	"github.com/nwtnni/hoplite-go/cluster/meta"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/reduce"
)

// groupState caches the most recently observed membership for each reduce
// group this node has been told about, and the topology planned from it.
// Replacing a GroupMD compares versions before accepting an update, and
// never accepts a stale one out of order.
type groupState struct {
	mu     sync.Mutex
	latest map[cmn.ObjectID]*groupEntry
}

type groupEntry struct {
	gmd  *meta.GroupMD
	topo *reduce.Topology
}

func newGroupState() *groupState {
	return &groupState{latest: make(map[cmn.ObjectID]*groupEntry)}
}

// UpdateGroup installs gmd as the current membership for its group if it is
// newer than whatever this node last saw, replanning the reduce topology
// against the new member count in the same step. It reports whether the
// update was accepted.
func (g *groupState) UpdateGroup(gmd *meta.GroupMD, maxChainLength int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := gmd.GroupID
	cur := g.latest[key]
	var curMD *meta.GroupMD
	if cur != nil {
		curMD = cur.gmd
	}
	if !curMD.Newer(gmd) {
		return false, nil
	}

	topo, err := reduce.Plan(len(gmd.Members), maxChainLength)
	if err != nil {
		return false, err
	}
	g.latest[key] = &groupEntry{gmd: gmd, topo: topo}
	return true, nil
}

// Topology returns the most recently planned topology for a group, or nil
// if this node has never observed membership for it.
func (g *groupState) Topology(groupID cmn.ObjectID) *reduce.Topology {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := g.latest[groupID]
	if e == nil {
		return nil
	}
	return e.topo
}
