package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/cluster"
	"github.com/cloudhut/ksim/group"
)

func TestStorageProduceBookkeeping(t *testing.T) {
	st := newStorage(zap.NewNop())

	st.recordProduce("orders", 0, 1)
	st.recordProduce("orders", 0, 2)
	st.recordProduce("orders", 3, 1)
	st.recordProduce("payments", 1, 1)

	assert.Equal(t, float64(4), st.getNumberOfProducedRecords())

	byTopic := st.getProducedByTopic()
	assert.Equal(t, float64(3), byTopic["orders"])
	assert.Equal(t, float64(1), byTopic["payments"])
}

func TestStorageOffsetCommitBookkeeping(t *testing.T) {
	st := newStorage(zap.NewNop())

	tp := cluster.TopicPartition{Topic: "orders", Partition: 0}
	st.recordOffsetCommit("group-1", group.Commit{Partition: tp, Offset: 1})
	st.recordOffsetCommit("group-1", group.Commit{Partition: tp, Offset: 2})
	st.recordOffsetCommit("group-2", group.Commit{Partition: tp, Offset: 1})

	assert.Equal(t, float64(3), st.getNumberOfOffsetCommits())

	byGroup := st.getCommitCountsByGroup()
	assert.Equal(t, 2, byGroup["group-1"])
	assert.Equal(t, 1, byGroup["group-2"])
}

func TestStorageReadiness(t *testing.T) {
	st := newStorage(zap.NewNop())

	assert.False(t, st.isReady())
	st.setReadyState(true)
	assert.True(t, st.isReady())
}
