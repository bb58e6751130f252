package chaos

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled bool `koanf:"enabled"`

	// Seed makes a chaos run reproducible. 0 picks a time based seed.
	Seed int64 `koanf:"seed"`

	// Traffic
	ProduceInterval  time.Duration `koanf:"produceInterval"`
	ProduceBatchSize int           `koanf:"produceBatchSize"`
	KeyCardinality   int           `koanf:"keyCardinality"`
	EmptyKeyRatio    float64       `koanf:"emptyKeyRatio"`
	ConsumeInterval  time.Duration `koanf:"consumeInterval"`

	// Faults
	BrokerFailureInterval time.Duration `koanf:"brokerFailureInterval"`
	BrokerOutageDuration  time.Duration `koanf:"brokerOutageDuration"`
	MaxConcurrentOutages  int           `koanf:"maxConcurrentOutages"`

	// Optional churn, disabled when the interval is zero
	GroupResizeInterval  time.Duration `koanf:"groupResizeInterval"`
	MaxConsumersPerGroup int           `koanf:"maxConsumersPerGroup"`
	TopicChurnInterval   time.Duration `koanf:"topicChurnInterval"`
	MaxChurnTopics       int           `koanf:"maxChurnTopics"`
}

func (c *Config) SetDefaults() {
	c.Enabled = true
	c.ProduceInterval = time.Second
	c.ProduceBatchSize = 10
	c.KeyCardinality = 20
	c.EmptyKeyRatio = 0.2
	c.ConsumeInterval = 2 * time.Second
	c.BrokerFailureInterval = 90 * time.Second
	c.BrokerOutageDuration = 45 * time.Second
	c.MaxConcurrentOutages = 1
	c.GroupResizeInterval = 0
	c.MaxConsumersPerGroup = 6
	c.TopicChurnInterval = 0
	c.MaxChurnTopics = 3
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ProduceInterval <= 0 {
		return fmt.Errorf("failed to validate produceInterval config, the duration can't be zero")
	}
	if c.ConsumeInterval <= 0 {
		return fmt.Errorf("failed to validate consumeInterval config, the duration can't be zero")
	}
	if c.ProduceBatchSize < 1 {
		return fmt.Errorf("failed to validate produceBatchSize config, it must be at least 1")
	}
	if c.KeyCardinality < 1 {
		return fmt.Errorf("failed to validate keyCardinality config, it must be at least 1")
	}
	if c.EmptyKeyRatio < 0 || c.EmptyKeyRatio > 1 {
		return fmt.Errorf("failed to validate emptyKeyRatio config, it must be between 0 and 1")
	}

	if c.BrokerFailureInterval <= 0 {
		return fmt.Errorf("failed to validate brokerFailureInterval config, the duration can't be zero")
	}
	if c.BrokerOutageDuration <= 0 {
		return fmt.Errorf("failed to validate brokerOutageDuration config, the duration can't be zero")
	}
	if c.MaxConcurrentOutages < 1 {
		return fmt.Errorf("failed to validate maxConcurrentOutages config, it must be at least 1")
	}

	if c.GroupResizeInterval < 0 {
		return fmt.Errorf("failed to validate groupResizeInterval config, the duration can't be negative")
	}
	if c.GroupResizeInterval > 0 && c.MaxConsumersPerGroup < 1 {
		return fmt.Errorf("failed to validate maxConsumersPerGroup config, it must be at least 1 when group resizing is enabled")
	}
	if c.TopicChurnInterval < 0 {
		return fmt.Errorf("failed to validate topicChurnInterval config, the duration can't be negative")
	}
	if c.TopicChurnInterval > 0 && c.MaxChurnTopics < 1 {
		return fmt.Errorf("failed to validate maxChurnTopics config, it must be at least 1 when topic churn is enabled")
	}

	return nil
}
