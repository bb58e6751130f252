package sim

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/cloudhut/ksim/cluster"
)

// scrapeCtx plants a request ID the way the exporter does before fanning out
// into the cached view functions.
func scrapeCtx() context.Context {
	return context.WithValue(context.Background(), "requestId", uuid.New().String())
}

func TestGetMetadata(t *testing.T) {
	svc := newTestService(t, nil)
	svc.SetBrokerUp(2, false)

	meta, err := svc.GetMetadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ClusterID, *meta.ClusterID)
	assert.Equal(t, int32(0), meta.ControllerID)

	// Down brokers disappear from the broker list.
	require.Len(t, meta.Brokers, 2)
	assert.Equal(t, int32(0), meta.Brokers[0].NodeID)
	assert.Equal(t, "b0", meta.Brokers[0].Host)
	assert.Equal(t, int32(brokerPortBase), meta.Brokers[0].Port)
	assert.Equal(t, int32(1), meta.Brokers[1].NodeID)

	require.Len(t, meta.Topics, 3)
	var payments kmsg.MetadataResponseTopic
	for _, topic := range meta.Topics {
		if *topic.Topic == "payments" {
			payments = topic
		}
	}
	require.Len(t, payments.Partitions, 3)
	for _, p := range payments.Partitions {
		assert.Equal(t, int16(0), p.ErrorCode)
		assert.Len(t, p.Replicas, 3)
		assert.ElementsMatch(t, []int32{0, 1}, p.ISR)
		assert.Equal(t, []int32{2}, p.OfflineReplicas)
		assert.NotEqual(t, int32(2), p.Leader)
	}
}

func TestGetMetadataOfflinePartition(t *testing.T) {
	svc := newTestService(t, nil)
	svc.SetBrokerUp(0, false)

	meta, err := svc.GetMetadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), meta.ControllerID)

	var inventory kmsg.MetadataResponseTopic
	for _, topic := range meta.Topics {
		if *topic.Topic == "inventory" {
			inventory = topic
		}
	}
	require.Len(t, inventory.Partitions, 1)
	p := inventory.Partitions[0]
	assert.Equal(t, kerr.LeaderNotAvailable.Code, p.ErrorCode)
	assert.Equal(t, cluster.NoLeader, p.Leader)
	assert.Empty(t, p.ISR)
	assert.Equal(t, []int32{0}, p.OfflineReplicas)
}

func TestGetMetadataControllerGoneWhenAllDown(t *testing.T) {
	svc := newTestService(t, nil)
	for id := int32(0); id < 3; id++ {
		svc.SetBrokerUp(id, false)
	}

	meta, err := svc.GetMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(-1), meta.ControllerID)
	assert.Empty(t, meta.Brokers)
}

func TestGetMetadataCachedIsStablePerRequest(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := scrapeCtx()

	first, err := svc.GetMetadataCached(ctx)
	require.NoError(t, err)

	svc.SetBrokerUp(1, false)

	// Same request ID: the earlier snapshot is reused.
	again, err := svc.GetMetadataCached(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A fresh request sees the change.
	fresh, err := svc.GetMetadataCached(scrapeCtx())
	require.NoError(t, err)
	assert.Len(t, fresh.Brokers, 2)
}

func TestListEndOffsets(t *testing.T) {
	svc := newTestService(t, nil)

	for i := 0; i < 5; i++ {
		_, _, ok := svc.Produce("inventory", "k")
		require.True(t, ok)
	}

	ends, err := svc.ListEndOffsets(context.Background())
	require.NoError(t, err)

	listed, ok := ends.Lookup("inventory", 0)
	require.True(t, ok)
	assert.Equal(t, int64(5), listed.Offset)
	assert.Equal(t, int64(-1), listed.Timestamp)
	assert.NoError(t, listed.Err)

	starts, err := svc.ListStartOffsets(context.Background())
	require.NoError(t, err)
	listed, ok = starts.Lookup("inventory", 0)
	require.True(t, ok)
	assert.Equal(t, int64(0), listed.Offset)
}

func TestListEndOffsetsOfflinePartitionCarriesError(t *testing.T) {
	svc := newTestService(t, nil)
	svc.SetBrokerUp(0, false)

	ends, err := svc.ListEndOffsets(context.Background())
	require.NoError(t, err)

	listed, ok := ends.Lookup("inventory", 0)
	require.True(t, ok)
	assert.ErrorIs(t, listed.Err, kerr.LeaderNotAvailable)

	// Partitions that still have a leader are unaffected.
	listed, ok = ends.Lookup("payments", 0)
	require.True(t, ok)
	assert.NoError(t, listed.Err)
}

func TestListOffsetsCachedIsStablePerRequest(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := scrapeCtx()

	first, err := svc.ListEndOffsetsCached(ctx)
	require.NoError(t, err)

	_, _, ok := svc.Produce("inventory", "k")
	require.True(t, ok)

	again, err := svc.ListEndOffsetsCached(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	fresh, err := svc.ListEndOffsetsCached(scrapeCtx())
	require.NoError(t, err)
	listed, found := fresh.Lookup("inventory", 0)
	require.True(t, found)
	assert.Equal(t, int64(1), listed.Offset)
}

func TestDescribeConsumerGroups(t *testing.T) {
	svc := newTestService(t, nil)
	emptyID := svc.AddGroup()

	res, err := svc.DescribeConsumerGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	stable := res.Groups[0]
	assert.Equal(t, "group-1", stable.Group)
	assert.Equal(t, "Stable", stable.State)
	assert.Equal(t, "consumer", stable.ProtocolType)
	assert.Equal(t, "roundrobin", stable.Protocol)
	require.Len(t, stable.Members, 2)

	// The assignment bytes must decode with the standard consumer protocol
	// decoder and agree with the engine's own assignment.
	groups := svc.GetGroups()
	for _, member := range stable.Members {
		a := kmsg.NewConsumerMemberAssignment()
		require.NoError(t, a.ReadFrom(member.MemberAssignment))

		decoded := make([]cluster.TopicPartition, 0)
		for _, topic := range a.Topics {
			for _, p := range topic.Partitions {
				decoded = append(decoded, cluster.TopicPartition{Topic: topic.Topic, Partition: p})
			}
		}
		assert.Equal(t, groups[0].PartitionsAssignedTo(member.MemberID), decoded)
	}

	empty := res.Groups[1]
	assert.Equal(t, emptyID, empty.Group)
	assert.Equal(t, "Empty", empty.State)
	assert.Equal(t, "consumer", empty.ProtocolType)
	assert.Empty(t, empty.Protocol)
	assert.Empty(t, empty.Members)
}

func TestDescribeConsumerGroupsCachedIsStablePerRequest(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := scrapeCtx()

	first, err := svc.DescribeConsumerGroupsCached(ctx)
	require.NoError(t, err)
	require.Len(t, first.Groups, 1)

	svc.AddGroup()

	again, err := svc.DescribeConsumerGroupsCached(ctx)
	require.NoError(t, err)
	assert.Len(t, again.Groups, 1)

	fresh, err := svc.DescribeConsumerGroupsCached(scrapeCtx())
	require.NoError(t, err)
	assert.Len(t, fresh.Groups, 2)
}

func TestListAllConsumerGroupOffsets(t *testing.T) {
	svc := newTestService(t, nil)

	for i := 0; i < 3; i++ {
		_, _, ok := svc.Produce("inventory", "k")
		require.True(t, ok)
	}
	svc.ConsumeStep("group-1")
	svc.ConsumeStep("group-1")

	// A keyed produce on orders lands on exactly one partition; one consume
	// step later that partition has a commit too.
	_, _, ok := svc.Produce("orders", "user-1")
	require.True(t, ok)
	svc.ConsumeStep("group-1")

	res, err := svc.ListAllConsumerGroupOffsets(context.Background())
	require.NoError(t, err)
	offsetRes, exists := res["group-1"]
	require.True(t, exists)

	got := make(map[cluster.TopicPartition]int64)
	for _, topic := range offsetRes.Topics {
		for _, p := range topic.Partitions {
			got[cluster.TopicPartition{Topic: topic.Topic, Partition: p.Partition}] = p.Offset
		}
	}
	assert.Equal(t, svc.GetGroups()[0].Offsets, got)

	// Topics arrive sorted so repeated scrapes see a stable response.
	require.Len(t, offsetRes.Topics, 2)
	assert.Equal(t, "inventory", offsetRes.Topics[0].Topic)
	assert.Equal(t, "orders", offsetRes.Topics[1].Topic)
}
