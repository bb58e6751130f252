package prometheus

import "fmt"

const (
	// GranularityTopic aggregates watermark and lag metrics per topic.
	GranularityTopic = "topic"
	// GranularityPartition additionally exports them per partition.
	GranularityPartition = "partition"
)

type Config struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	Namespace string `koanf:"namespace"`

	// Granularity controls whether watermarks and consumer group lags are
	// exported per partition or only aggregated per topic.
	Granularity string `koanf:"granularity"`
}

func (c *Config) SetDefaults() {
	c.Port = 8080
	c.Namespace = "ksim"
	c.Granularity = GranularityPartition
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}

	switch c.Granularity {
	case GranularityPartition, GranularityTopic:
	default:
		return fmt.Errorf("granularity '%v' is invalid, must be either '%v' or '%v'",
			c.Granularity, GranularityPartition, GranularityTopic)
	}
	return nil
}
