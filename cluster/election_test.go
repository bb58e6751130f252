package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElectLeaders(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Cluster
		fail  []int32
		check func(t *testing.T, c *Cluster)
	}{
		{
			name:  "all brokers up keeps preferred leaders",
			build: func() *Cluster { return NewCluster(3, []TopicConfig{{Name: "t", Partitions: 3, ReplicationFactor: 2}}) },
			check: func(t *testing.T, c *Cluster) {
				topic, _ := c.Topic("t")
				assert.EqualValues(t, 0, topic.Partitions[0].Leader)
				assert.EqualValues(t, 1, topic.Partitions[1].Leader)
				assert.EqualValues(t, 2, topic.Partitions[2].Leader)
			},
		},
		{
			name:  "down leader fails over while unrelated leaders stay put",
			build: func() *Cluster { return NewCluster(3, []TopicConfig{{Name: "t", Partitions: 3, ReplicationFactor: 2}}) },
			fail:  []int32{0},
			check: func(t *testing.T, c *Cluster) {
				topic, _ := c.Topic("t")
				// Partition 0 (replicas 0,1) loses its leader and
				// fails over to broker 1.
				assert.EqualValues(t, 1, topic.Partitions[0].Leader)
				assert.False(t, topic.Partitions[0].Offline)
				// Partition 2 (replicas 2,0) keeps broker 2: the
				// leader is still up, losing a follower changes
				// nothing.
				assert.EqualValues(t, 2, topic.Partitions[2].Leader)
				assert.False(t, topic.Partitions[2].Offline)
			},
		},
		{
			name:  "failover promotes the earliest alive replica in preference order",
			build: func() *Cluster { return NewCluster(3, []TopicConfig{{Name: "t", Partitions: 1, ReplicationFactor: 3}}) },
			fail:  []int32{0},
			check: func(t *testing.T, c *Cluster) {
				topic, _ := c.Topic("t")
				require.Equal(t, []int32{0, 1, 2}, topic.Partitions[0].Replicas)
				assert.EqualValues(t, 1, topic.Partitions[0].Leader)
			},
		},
		{
			name:  "partition with no alive replica goes offline",
			build: func() *Cluster { return NewCluster(3, []TopicConfig{{Name: "t", Partitions: 3, ReplicationFactor: 2}}) },
			fail:  []int32{0, 1},
			check: func(t *testing.T, c *Cluster) {
				topic, _ := c.Topic("t")
				// Partition 0 lives on brokers 0 and 1 only.
				assert.Equal(t, NoLeader, topic.Partitions[0].Leader)
				assert.True(t, topic.Partitions[0].Offline)
				// Partition 1 (replicas 1,2) survives on broker 2.
				assert.EqualValues(t, 2, topic.Partitions[1].Leader)
				assert.False(t, topic.Partitions[1].Offline)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.build()
			for _, id := range tc.fail {
				setBrokerUp(t, c, id, false)
			}
			ElectLeaders(c)
			tc.check(t, c)
		})
	}
}

func TestElectLeadersRecovery(t *testing.T) {
	c := NewCluster(3, []TopicConfig{{Name: "t", Partitions: 3, ReplicationFactor: 2}})
	setBrokerUp(t, c, 0, false)
	setBrokerUp(t, c, 1, false)
	ElectLeaders(c)

	topic, _ := c.Topic("t")
	require.True(t, topic.Partitions[0].Offline)

	// Bringing broker 1 back revives partition 0 under its first alive
	// replica, which is no longer the original preferred leader.
	setBrokerUp(t, c, 1, true)
	ElectLeaders(c)
	assert.EqualValues(t, 1, topic.Partitions[0].Leader)
	assert.False(t, topic.Partitions[0].Offline)

	// The preferred leader returning does not take leadership back.
	setBrokerUp(t, c, 0, true)
	ElectLeaders(c)
	assert.EqualValues(t, 1, topic.Partitions[0].Leader)
}

func TestElectLeadersIdempotent(t *testing.T) {
	c := NewCluster(3, []TopicConfig{{Name: "t", Partitions: 6, ReplicationFactor: 2}})
	setBrokerUp(t, c, 2, false)

	ElectLeaders(c)
	snapshot := c.Clone()
	ElectLeaders(c)
	require.Equal(t, snapshot, c, "a second election without broker changes must not move anything")
}

func TestAliveReplicasTracksBrokerState(t *testing.T) {
	c := NewCluster(3, []TopicConfig{{Name: "t", Partitions: 1, ReplicationFactor: 3}})
	topic, _ := c.Topic("t")
	p := topic.Partitions[0]

	assert.Equal(t, []int32{0, 1, 2}, c.AliveReplicas(p))
	assert.Empty(t, c.DownReplicas(p))

	setBrokerUp(t, c, 1, false)
	assert.Equal(t, []int32{0, 2}, c.AliveReplicas(p))
	assert.Equal(t, []int32{1}, c.DownReplicas(p))
}

func setBrokerUp(t *testing.T, c *Cluster, id int32, up bool) {
	t.Helper()
	b, ok := c.Broker(id)
	require.True(t, ok, "broker %d does not exist", id)
	b.Up = up
}
