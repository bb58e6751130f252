package sim

import (
	"fmt"

	"github.com/cloudhut/ksim/cluster"
)

// TopicConfig declares one topic of the initial topology.
type TopicConfig struct {
	Name              string `koanf:"name"`
	Partitions        int    `koanf:"partitions"`
	ReplicationFactor int    `koanf:"replicationFactor"`
}

func (c *TopicConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("topic name must be set")
	}
	if c.Partitions < 1 {
		return fmt.Errorf("topic %q must have at least 1 partition, got %d", c.Name, c.Partitions)
	}
	// A replication factor above the broker count is fine, the builder
	// lowers it. Below 1 it is an operator mistake.
	if c.ReplicationFactor < 1 {
		return fmt.Errorf("topic %q must have a replication factor of at least 1, got %d", c.Name, c.ReplicationFactor)
	}
	return nil
}

func (c TopicConfig) toCluster() cluster.TopicConfig {
	return cluster.TopicConfig{
		Name:              c.Name,
		Partitions:        c.Partitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}

func clusterTopicConfigs(configs []TopicConfig) []cluster.TopicConfig {
	out := make([]cluster.TopicConfig, 0, len(configs))
	for _, tc := range configs {
		out = append(out, tc.toCluster())
	}
	return out
}
