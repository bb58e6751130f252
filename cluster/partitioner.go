package cluster

import (
	"math/rand"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

/*
	This file adapts the simulator's routing rule to franz-go's partitioner
	interfaces.

	Why would a simulator carry a client partitioner?
	So that the exact routing behavior modeled here, the 31-multiplier key
	hash with wrapping 32-bit arithmetic, can be plugged into a real producer
	via kgo.RecordPartitioner. A trace captured against the simulator then
	matches what the same keys would do against a live cluster, partition for
	partition.
*/

// Partitioner: creates a TopicPartitioner for a given topic name.
type keyHashPartitioner struct {
	logger *zap.Logger
}

// NewRecordPartitioner returns a kgo.Partitioner that routes keyed records
// with HashKey and unkeyed records uniformly at random, mirroring
// Router.Route.
func NewRecordPartitioner(logger *zap.Logger) kgo.Partitioner {
	return &keyHashPartitioner{logger: logger}
}

func (k *keyHashPartitioner) ForTopic(topicName string) kgo.TopicPartitioner {
	return &keyHashTopicPartitioner{
		logger: k.logger.With(zap.String("topic_name", topicName)),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// TopicPartitioner: determines which partition to produce a message to.
type keyHashTopicPartitioner struct {
	logger *zap.Logger

	// kgo may partition records from concurrent Produce callers.
	mu  sync.Mutex
	rng *rand.Rand
}

// OnNewBatch is called when producing a record if that record would trigger a
// new batch on its current partition.
func (k *keyHashTopicPartitioner) OnNewBatch() {}

// RequiresConsistency returns true if a record must hash to the same
// partition even if a partition is down. Keyed records must stay sticky;
// unkeyed records may go to whatever partition is available.
func (k *keyHashTopicPartitioner) RequiresConsistency(r *kgo.Record) bool {
	return len(r.Key) > 0
}

// Partition determines, among a set of n partitions, which index should be
// chosen to use for the partition for r.
func (k *keyHashTopicPartitioner) Partition(r *kgo.Record, n int) int {
	if n <= 0 {
		k.logger.Warn("partitioner invoked without any available partitions", zap.Int("partitions", n))
		return -1
	}
	if len(r.Key) == 0 {
		k.mu.Lock()
		p := k.rng.Intn(n)
		k.mu.Unlock()
		return p
	}
	return int(PartitionForKey(string(r.Key), n))
}
