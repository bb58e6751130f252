package sim

import (
	"fmt"
)

// Config shapes the initial simulated cluster and seeds its randomness.
// These values are only the starting point: every part of the topology can
// be reshaped at runtime through engine commands.
type Config struct {
	// BrokerCount is the number of simulated brokers, IDs 0..n-1.
	BrokerCount int `koanf:"brokerCount"`

	// Seed fixes the randomness used for unkeyed produce routing and random
	// broker failures. 0 picks a time-based seed at startup; any other value
	// makes a run fully reproducible.
	Seed int64 `koanf:"seed"`

	Topics         []TopicConfig `koanf:"topics"`
	ConsumerGroups []GroupConfig `koanf:"consumerGroups"`
}

func (c *Config) SetDefaults() {
	c.BrokerCount = 3
	c.Topics = []TopicConfig{
		{Name: "orders", Partitions: 6, ReplicationFactor: 2},
		{Name: "payments", Partitions: 3, ReplicationFactor: 3},
		{Name: "inventory", Partitions: 1, ReplicationFactor: 1},
	}
	c.ConsumerGroups = []GroupConfig{
		{Consumers: 2},
	}
}

// Validate rejects malformed startup configuration. Engine commands normalize
// out-of-range values at runtime; config files fail instead.
func (c *Config) Validate() error {
	if c.BrokerCount < 1 {
		return fmt.Errorf("brokerCount must be at least 1, got %d", c.BrokerCount)
	}

	seen := make(map[string]bool, len(c.Topics))
	for i, tc := range c.Topics {
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("failed to validate topic config at index %d: %w", i, err)
		}
		if seen[tc.Name] {
			return fmt.Errorf("duplicate topic name %q in config", tc.Name)
		}
		seen[tc.Name] = true
	}

	seenGroups := make(map[string]bool, len(c.ConsumerGroups))
	for i, gc := range c.ConsumerGroups {
		if err := gc.Validate(); err != nil {
			return fmt.Errorf("failed to validate consumer group config at index %d: %w", i, err)
		}
		if gc.ID != "" && seenGroups[gc.ID] {
			return fmt.Errorf("duplicate consumer group id %q in config", gc.ID)
		}
		seenGroups[gc.ID] = true
	}
	return nil
}
