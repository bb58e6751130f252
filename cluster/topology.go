package cluster

import "fmt"

// TopicConfig describes the desired shape of one topic. All fields are
// normalized rather than validated: partition and replication counts below 1
// are raised to 1, and a replication factor above the broker count is lowered
// to the broker count.
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// NewCluster builds a fresh cluster: brokerCount brokers (all up, IDs
// 0..n-1) and one topic per config entry, in config order. Placement is
// round-robin: partition p's preferred leader is broker p mod n, and its
// replica set is the replication factor's worth of consecutive broker IDs
// from there, wrapping around. Every partition therefore gets a distinct
// replica set and, once there are at least as many partitions as brokers,
// leadership spreads evenly.
//
// Construction is pure: the initial leader is Replicas[0] regardless of
// broker state. Run ElectLeaders afterwards if any broker may be down.
func NewCluster(brokerCount int, topics []TopicConfig) *Cluster {
	if brokerCount < 1 {
		brokerCount = 1
	}

	c := &Cluster{Brokers: make([]Broker, 0, brokerCount)}
	for id := 0; id < brokerCount; id++ {
		c.Brokers = append(c.Brokers, Broker{
			ID:   int32(id),
			Name: fmt.Sprintf("b%d", id),
			Up:   true,
		})
	}

	taken := make(map[string]bool, len(topics))
	for _, cfg := range topics {
		name := UniqueTopicName(cfg.Name, taken)
		taken[name] = true
		c.Topics = append(c.Topics, Topic{
			Name:       name,
			Partitions: BuildPartitions(name, cfg.Partitions, cfg.ReplicationFactor, brokerCount),
		})
	}
	return c
}

// BuildPartitions constructs the partition list for a single topic against a
// given broker count, applying the same normalization and round-robin
// placement as NewCluster. It is reused when a topic is added to or reshaped
// within an existing cluster.
func BuildPartitions(topicName string, partitions, replicationFactor, brokerCount int) []Partition {
	if brokerCount < 1 {
		brokerCount = 1
	}
	partitions, rf := NormalizeTopicShape(partitions, replicationFactor, brokerCount)

	ps := make([]Partition, 0, partitions)
	for p := 0; p < partitions; p++ {
		preferred := p % brokerCount
		replicas := make([]int32, 0, rf)
		for i := 0; i < rf; i++ {
			replicas = append(replicas, int32((preferred+i)%brokerCount))
		}
		ps = append(ps, Partition{
			Topic:    topicName,
			ID:       int32(p),
			Leader:   replicas[0],
			Replicas: replicas,
		})
	}
	return ps
}

// NormalizeTopicShape applies the clamping rules for a topic's shape:
// partition count and replication factor are raised to at least 1, and the
// replication factor is capped at the broker count.
func NormalizeTopicShape(partitions, replicationFactor, brokerCount int) (int, int) {
	if partitions < 1 {
		partitions = 1
	}
	if replicationFactor < 1 {
		replicationFactor = 1
	}
	if replicationFactor > brokerCount {
		replicationFactor = brokerCount
	}
	return partitions, replicationFactor
}

// UniqueTopicName returns name if it is not taken, otherwise the first
// "name-2", "name-3", ... that is free. Duplicate names are disambiguated
// instead of rejected, and an empty name is replaced with "topic".
func UniqueTopicName(name string, taken map[string]bool) string {
	if name == "" {
		name = "topic"
	}
	if !taken[name] {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}
