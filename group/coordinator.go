package group

import "github.com/cloudhut/ksim/cluster"

// Commit records one committed-offset advance produced by ConsumeStep.
type Commit struct {
	Partition cluster.TopicPartition
	Offset    int64
}

// Rebalance recomputes the group's partition assignment from scratch. All
// partitions across all topics are enumerated in a fixed order (topic list
// order, then ascending partition ID) and the i-th partition goes to
// members[i mod memberCount]. With p partitions and m members every member
// ends up owning either p/m or p/m+1 partitions.
//
// The assignment is not sticky: any membership or topology change may move a
// partition to a different member without handoff. An empty group simply
// loses all assignments. Offsets are untouched either way.
func (g *ConsumerGroup) Rebalance(topics []cluster.Topic) {
	g.Assignments = make(map[cluster.TopicPartition]string)
	if len(g.Members) == 0 {
		return
	}

	i := 0
	for _, t := range topics {
		for _, p := range t.Partitions {
			owner := g.Members[i%len(g.Members)]
			g.Assignments[cluster.TopicPartition{Topic: t.Name, Partition: p.ID}] = owner.ID
			i++
		}
	}
}

// ConsumeStep advances every assigned partition that still has records to
// read by exactly one committed offset, one simulated record per partition
// per call regardless of how far behind the group is. Partitions without an
// assigned consumer make no progress. The returned commits describe what
// moved.
func (g *ConsumerGroup) ConsumeStep(c *cluster.Cluster) []Commit {
	var commits []Commit
	for tp := range g.Assignments {
		t, ok := c.Topic(tp.Topic)
		if !ok || int(tp.Partition) >= len(t.Partitions) {
			continue
		}

		end := t.Partitions[tp.Partition].EndOffset
		committed := g.Offsets[tp]
		if committed >= end {
			continue
		}
		g.Offsets[tp] = committed + 1
		commits = append(commits, Commit{Partition: tp, Offset: committed + 1})
	}
	return commits
}

// ResetOffsets drops every committed offset, equivalent to setting all of
// them to zero.
func (g *ConsumerGroup) ResetOffsets() {
	g.Offsets = make(map[cluster.TopicPartition]int64)
}

// Lag returns the raw lag for one partition: end offset minus committed
// offset, either side defaulting to zero when absent. The value is not
// clamped. A stale offset on a shrunk or removed partition yields a negative
// number; turning that into a displayable zero is the reader's job.
func (g *ConsumerGroup) Lag(c *cluster.Cluster, tp cluster.TopicPartition) int64 {
	var end int64
	if t, ok := c.Topic(tp.Topic); ok && int(tp.Partition) < len(t.Partitions) {
		end = t.Partitions[tp.Partition].EndOffset
	}
	return end - g.Offsets[tp]
}
