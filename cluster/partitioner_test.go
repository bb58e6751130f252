package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

func TestRecordPartitionerKeyedMatchesRouterHash(t *testing.T) {
	tp := NewRecordPartitioner(zap.NewNop()).ForTopic("t")

	keys := []string{"a", "user-42", "order-9000", "payments"}
	for _, key := range keys {
		rec := &kgo.Record{Key: []byte(key)}
		assert.True(t, tp.RequiresConsistency(rec), "keyed records must stay sticky")
		assert.Equal(t, int(PartitionForKey(key, 12)), tp.Partition(rec, 12), "key %q", key)
	}
}

func TestRecordPartitionerUnkeyed(t *testing.T) {
	tp := NewRecordPartitioner(zap.NewNop()).ForTopic("t")
	rec := &kgo.Record{}

	assert.False(t, tp.RequiresConsistency(rec))
	for i := 0; i < 50; i++ {
		p := tp.Partition(rec, 6)
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, 6)
	}
}

func TestRecordPartitionerNoPartitions(t *testing.T) {
	tp := NewRecordPartitioner(zap.NewNop()).ForTopic("t")
	assert.Equal(t, -1, tp.Partition(&kgo.Record{Key: []byte("k")}, 0))
}
