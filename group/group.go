package group

import (
	"fmt"
	"sort"

	"github.com/cloudhut/ksim/cluster"
)

// Group states as reported by the describe-groups view and the exporter.
// Rebalancing is instantaneous in the simulation, so a group is either empty
// or stable; the transitional Kafka states never surface.
const (
	StateEmpty  = "Empty"
	StateStable = "Stable"
)

// Protocol metadata reported for stable groups.
const (
	ProtocolType = "consumer"
	Protocol     = "roundrobin"
)

// Consumer is a named member of exactly one group. IDs are assigned
// stack-wise per group: c1..cN, with the most recently added member removed
// first.
type Consumer struct {
	ID string
}

// ConsumerGroup tracks membership, the current partition assignment, and
// per-partition committed offsets. Assignments and offsets are keyed by the
// explicit (topic, partition) pair.
//
// Offsets deliberately outlive the partitions they point at: topology changes
// and rebalances never clear them, only an explicit reset does. A key whose
// partition no longer exists simply goes stale and yields negative raw lag,
// which the display layer clamps.
type ConsumerGroup struct {
	ID          string
	Members     []Consumer
	Assignments map[cluster.TopicPartition]string
	Offsets     map[cluster.TopicPartition]int64
}

// New returns an empty consumer group with the given ID.
func New(id string) *ConsumerGroup {
	return &ConsumerGroup{
		ID:          id,
		Assignments: make(map[cluster.TopicPartition]string),
		Offsets:     make(map[cluster.TopicPartition]int64),
	}
}

// State derives the coarse group state from membership size.
func (g *ConsumerGroup) State() string {
	if len(g.Members) == 0 {
		return StateEmpty
	}
	return StateStable
}

// AddMember appends a new consumer and returns it. The ID continues the
// c1..cN sequence, so after removing cN a subsequent add reuses that slot.
func (g *ConsumerGroup) AddMember() Consumer {
	member := Consumer{ID: fmt.Sprintf("c%d", len(g.Members)+1)}
	g.Members = append(g.Members, member)
	return member
}

// RemoveMember pops the most recently added consumer. It returns false when
// the group is already empty.
func (g *ConsumerGroup) RemoveMember() (Consumer, bool) {
	if len(g.Members) == 0 {
		return Consumer{}, false
	}
	last := g.Members[len(g.Members)-1]
	g.Members = g.Members[:len(g.Members)-1]
	return last, true
}

// PartitionsAssignedTo returns the partitions currently owned by the given
// member, sorted by topic then partition ID.
func (g *ConsumerGroup) PartitionsAssignedTo(memberID string) []cluster.TopicPartition {
	var owned []cluster.TopicPartition
	for tp, owner := range g.Assignments {
		if owner == memberID {
			owned = append(owned, tp)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].Topic != owned[j].Topic {
			return owned[i].Topic < owned[j].Topic
		}
		return owned[i].Partition < owned[j].Partition
	})
	return owned
}

// Clone returns a deep copy of the group.
func (g *ConsumerGroup) Clone() ConsumerGroup {
	clone := ConsumerGroup{
		ID:          g.ID,
		Members:     make([]Consumer, len(g.Members)),
		Assignments: make(map[cluster.TopicPartition]string, len(g.Assignments)),
		Offsets:     make(map[cluster.TopicPartition]int64, len(g.Offsets)),
	}
	copy(clone.Members, g.Members)
	for tp, owner := range g.Assignments {
		clone.Assignments[tp] = owner
	}
	for tp, offset := range g.Offsets {
		clone.Offsets[tp] = offset
	}
	return clone
}
