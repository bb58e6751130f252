package group

import (
	"testing"

	"github.com/cloudhut/ksim/cluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberLifecycle(t *testing.T) {
	g := New("group-1")
	assert.Equal(t, StateEmpty, g.State())

	assert.Equal(t, "c1", g.AddMember().ID)
	assert.Equal(t, "c2", g.AddMember().ID)
	assert.Equal(t, "c3", g.AddMember().ID)
	assert.Equal(t, StateStable, g.State())

	popped, ok := g.RemoveMember()
	require.True(t, ok)
	assert.Equal(t, "c3", popped.ID)

	// The freed slot is reused by the next add.
	assert.Equal(t, "c3", g.AddMember().ID)

	for i := 0; i < 3; i++ {
		_, ok := g.RemoveMember()
		require.True(t, ok)
	}
	_, ok = g.RemoveMember()
	assert.False(t, ok, "removing from an empty group must report false")
	assert.Equal(t, StateEmpty, g.State())
}

func TestPartitionsAssignedToSorted(t *testing.T) {
	g := New("group-1")
	g.AddMember()
	g.Assignments = map[cluster.TopicPartition]string{
		{Topic: "b", Partition: 1}: "c1",
		{Topic: "a", Partition: 2}: "c1",
		{Topic: "a", Partition: 0}: "c1",
		{Topic: "b", Partition: 0}: "c2",
	}

	assert.Equal(t, []cluster.TopicPartition{
		{Topic: "a", Partition: 0},
		{Topic: "a", Partition: 2},
		{Topic: "b", Partition: 1},
	}, g.PartitionsAssignedTo("c1"))
}

func TestCloneIsIndependent(t *testing.T) {
	g := New("group-1")
	g.AddMember()
	g.Assignments[cluster.TopicPartition{Topic: "t", Partition: 0}] = "c1"
	g.Offsets[cluster.TopicPartition{Topic: "t", Partition: 0}] = 3

	clone := g.Clone()
	clone.Members[0].ID = "mutated"
	clone.Assignments[cluster.TopicPartition{Topic: "t", Partition: 0}] = "someone-else"
	clone.Offsets[cluster.TopicPartition{Topic: "t", Partition: 0}] = 99

	assert.Equal(t, "c1", g.Members[0].ID)
	assert.Equal(t, "c1", g.Assignments[cluster.TopicPartition{Topic: "t", Partition: 0}])
	assert.EqualValues(t, 3, g.Offsets[cluster.TopicPartition{Topic: "t", Partition: 0}])
}
