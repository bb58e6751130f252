package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()

	assert.Equal(t, 3, cfg.BrokerCount)
	assert.Equal(t, int64(0), cfg.Seed)
	require.Len(t, cfg.Topics, 3)
	assert.Equal(t, "orders", cfg.Topics[0].Name)
	assert.Equal(t, 6, cfg.Topics[0].Partitions)
	assert.Equal(t, 2, cfg.Topics[0].ReplicationFactor)
	require.Len(t, cfg.ConsumerGroups, 1)
	assert.Equal(t, 2, cfg.ConsumerGroups[0].Consumers)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tt := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "broker count below one",
			mutate:  func(cfg *Config) { cfg.BrokerCount = 0 },
			wantErr: true,
		},
		{
			name: "topic without a name",
			mutate: func(cfg *Config) {
				cfg.Topics = append(cfg.Topics, TopicConfig{Partitions: 1, ReplicationFactor: 1})
			},
			wantErr: true,
		},
		{
			name: "duplicate topic name",
			mutate: func(cfg *Config) {
				cfg.Topics = append(cfg.Topics, TopicConfig{Name: "orders", Partitions: 1, ReplicationFactor: 1})
			},
			wantErr: true,
		},
		{
			name: "zero partitions",
			mutate: func(cfg *Config) {
				cfg.Topics[0].Partitions = 0
			},
			wantErr: true,
		},
		{
			name: "replication factor above broker count is tolerated",
			mutate: func(cfg *Config) {
				cfg.Topics[0].ReplicationFactor = 10
			},
		},
		{
			name: "negative consumer count",
			mutate: func(cfg *Config) {
				cfg.ConsumerGroups[0].Consumers = -1
			},
			wantErr: true,
		},
		{
			name: "duplicate group id",
			mutate: func(cfg *Config) {
				cfg.ConsumerGroups = []GroupConfig{
					{ID: "analytics", Consumers: 1},
					{ID: "analytics", Consumers: 2},
				}
			},
			wantErr: true,
		},
		{
			name: "multiple anonymous groups are fine",
			mutate: func(cfg *Config) {
				cfg.ConsumerGroups = []GroupConfig{
					{Consumers: 1},
					{Consumers: 2},
				}
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{}
			cfg.SetDefaults()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
