package sim

import "fmt"

// GroupConfig declares one consumer group of the initial scenario. An empty
// ID is replaced with the next group-N identifier at startup.
type GroupConfig struct {
	ID        string `koanf:"id"`
	Consumers int    `koanf:"consumers"`
}

func (c *GroupConfig) Validate() error {
	if c.Consumers < 0 {
		return fmt.Errorf("consumer count must not be negative, got %d", c.Consumers)
	}
	return nil
}
