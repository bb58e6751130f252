package cluster

// NoLeader marks a partition that currently has no elected leader. A partition
// whose leader is NoLeader is offline until one of its replica brokers comes
// back up.
const NoLeader int32 = -1

// Broker is one simulated cluster node. Identity is the numeric ID; Name is
// the display name ("b0".."b(n-1)") reported in metrics and metadata views.
// The Up flag is flipped only by engine commands.
type Broker struct {
	ID   int32
	Name string
	Up   bool
}

// Partition models one replicated, append-only log. Replicas are broker IDs
// in preference order: Replicas[0] is the preferred leader chosen at creation
// time. EndOffset is the next offset a produced record would get; it only ever
// grows and is advanced solely by the Router.
type Partition struct {
	Topic     string
	ID        int32
	Leader    int32
	Replicas  []int32
	Offline   bool
	EndOffset int64
}

// Topic groups its partitions in ascending partition-ID order.
type Topic struct {
	Name       string
	Partitions []Partition
}

// TopicPartition identifies a single partition across topic boundaries. Group
// assignments and committed offsets are keyed by this struct rather than a
// formatted string so keys can never collide or need parsing.
type TopicPartition struct {
	Topic     string
	Partition int32
}

// Cluster is the root of the simulated metadata plane: brokers ordered by ID
// and topics in creation order. The creation order matters, it drives the
// enumeration order of group rebalancing.
type Cluster struct {
	Brokers []Broker
	Topics  []Topic
}

// Broker returns a pointer to the broker with the given ID so callers can
// mutate it in place, or false if the ID is unknown.
func (c *Cluster) Broker(id int32) (*Broker, bool) {
	for i := range c.Brokers {
		if c.Brokers[i].ID == id {
			return &c.Brokers[i], true
		}
	}
	return nil, false
}

// Topic returns a pointer to the named topic, or false if it doesn't exist.
func (c *Cluster) Topic(name string) (*Topic, bool) {
	for i := range c.Topics {
		if c.Topics[i].Name == name {
			return &c.Topics[i], true
		}
	}
	return nil, false
}

// HasTopic reports whether a topic with the given name exists.
func (c *Cluster) HasTopic(name string) bool {
	_, ok := c.Topic(name)
	return ok
}

// BrokerUp reports whether the broker exists and is currently up.
func (c *Cluster) BrokerUp(id int32) bool {
	b, ok := c.Broker(id)
	return ok && b.Up
}

// UpBrokerIDs returns the IDs of all currently up brokers in ascending order.
func (c *Cluster) UpBrokerIDs() []int32 {
	ids := make([]int32, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		if b.Up {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// AliveReplicas returns the subsequence of the partition's replicas whose
// broker is up, preserving preference order. This is the partition's ISR.
func (c *Cluster) AliveReplicas(p Partition) []int32 {
	alive := make([]int32, 0, len(p.Replicas))
	for _, id := range p.Replicas {
		if c.BrokerUp(id) {
			alive = append(alive, id)
		}
	}
	return alive
}

// DownReplicas returns the partition's replicas whose broker is down, in
// preference order.
func (c *Cluster) DownReplicas(p Partition) []int32 {
	down := make([]int32, 0, len(p.Replicas))
	for _, id := range p.Replicas {
		if !c.BrokerUp(id) {
			down = append(down, id)
		}
	}
	return down
}

// PartitionsHostedBy returns a copy of every partition that names the broker
// as leader or as any replica.
func (c *Cluster) PartitionsHostedBy(brokerID int32) []Partition {
	var hosted []Partition
	for _, t := range c.Topics {
		for _, p := range t.Partitions {
			if p.Leader == brokerID || contains(p.Replicas, brokerID) {
				hosted = append(hosted, p.Clone())
			}
		}
	}
	return hosted
}

// PartitionCount returns the total number of partitions across all topics.
func (c *Cluster) PartitionCount() int {
	n := 0
	for _, t := range c.Topics {
		n += len(t.Partitions)
	}
	return n
}

// ---- deep copies ----
//
// The engine hands out snapshots, never references into its own state, so
// every level of the tree must be structurally independent after cloning.

// Clone returns a deep copy of the cluster.
func (c *Cluster) Clone() *Cluster {
	clone := &Cluster{
		Brokers: make([]Broker, len(c.Brokers)),
		Topics:  make([]Topic, 0, len(c.Topics)),
	}
	copy(clone.Brokers, c.Brokers)
	for _, t := range c.Topics {
		clone.Topics = append(clone.Topics, t.Clone())
	}
	return clone
}

// Clone returns a deep copy of the topic.
func (t Topic) Clone() Topic {
	clone := Topic{Name: t.Name, Partitions: make([]Partition, 0, len(t.Partitions))}
	for _, p := range t.Partitions {
		clone.Partitions = append(clone.Partitions, p.Clone())
	}
	return clone
}

// Clone returns a deep copy of the partition.
func (p Partition) Clone() Partition {
	clone := p
	clone.Replicas = make([]int32, len(p.Replicas))
	copy(clone.Replicas, p.Replicas)
	return clone
}

// contains reports whether v is present in xs.
func contains(xs []int32, v int32) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
