package sim

import (
	"fmt"

	cmap "github.com/orcaman/concurrent-map"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/group"
)

// Storage keeps the externally observable bookkeeping of the simulation:
// how many records every partition received and how often every group
// committed. Command handlers write it while holding the engine lock; the
// exporter and the readiness endpoint read it without any lock, which is why
// the maps are concurrent and the counters atomic.
type Storage struct {
	logger *zap.Logger

	// producedRecords tracks appended record counts per partition.
	// A unique key in the format "topic:partition" is used as map key, value
	// is of type ProducedLog.
	producedRecords cmap.ConcurrentMap

	// offsetCommits tracks committed-offset advances per group partition,
	// keyed "group:topic:partition" with values of type OffsetCommit.
	offsetCommits cmap.ConcurrentMap

	isReadyBool     *atomic.Bool
	commandsApplied *atomic.Int64
	recordsProduced *atomic.Float64
	commitsApplied  *atomic.Float64
}

// ProducedLog is the value stored per partition in producedRecords.
type ProducedLog struct {
	Topic     string
	Partition int32
	Records   int64
	EndOffset int64
}

// OffsetCommit is the value stored per group partition in offsetCommits.
type OffsetCommit struct {
	Group     string
	Topic     string
	Partition int32
	Offset    int64

	// CommitCount is the number of commits for this group-topic-partition
	// combination since startup.
	CommitCount int
}

func newStorage(logger *zap.Logger) *Storage {
	return &Storage{
		logger:          logger.Named("storage"),
		producedRecords: cmap.New(),
		offsetCommits:   cmap.New(),
		isReadyBool:     atomic.NewBool(false),
		commandsApplied: atomic.NewInt64(0),
		recordsProduced: atomic.NewFloat64(0),
		commitsApplied:  atomic.NewFloat64(0),
	}
}

func (s *Storage) isReady() bool {
	return s.isReadyBool.Load()
}

func (s *Storage) setReadyState(isReady bool) {
	s.isReadyBool.Store(isReady)
}

func (s *Storage) markCommandApplied() {
	s.commandsApplied.Inc()
}

func (s *Storage) recordProduce(topic string, partition int32, endOffset int64) {
	key := fmt.Sprintf("%v:%v", topic, partition)

	records := int64(0)
	if existing, exists := s.producedRecords.Get(key); exists {
		records = existing.(ProducedLog).Records
	}
	s.producedRecords.Set(key, ProducedLog{
		Topic:     topic,
		Partition: partition,
		Records:   records + 1,
		EndOffset: endOffset,
	})
	s.recordsProduced.Add(1)
}

func (s *Storage) recordOffsetCommit(groupID string, commit group.Commit) {
	key := fmt.Sprintf("%v:%v:%v", groupID, commit.Partition.Topic, commit.Partition.Partition)

	commitCount := 0
	if existing, exists := s.offsetCommits.Get(key); exists {
		commitCount = existing.(OffsetCommit).CommitCount
	}
	s.offsetCommits.Set(key, OffsetCommit{
		Group:       groupID,
		Topic:       commit.Partition.Topic,
		Partition:   commit.Partition.Partition,
		Offset:      commit.Offset,
		CommitCount: commitCount + 1,
	})
	s.commitsApplied.Add(1)
}

// getProducedByTopic sums appended records per topic.
func (s *Storage) getProducedByTopic() map[string]float64 {
	byTopic := make(map[string]float64)
	for _, item := range s.producedRecords.Items() {
		log := item.(ProducedLog)
		byTopic[log.Topic] += float64(log.Records)
	}
	return byTopic
}

// getCommitCountsByGroup sums offset commits per group.
func (s *Storage) getCommitCountsByGroup() map[string]int {
	byGroup := make(map[string]int)
	for _, item := range s.offsetCommits.Items() {
		commit := item.(OffsetCommit)
		byGroup[commit.Group] += commit.CommitCount
	}
	return byGroup
}

func (s *Storage) getNumberOfProducedRecords() float64 {
	return s.recordsProduced.Load()
}

func (s *Storage) getNumberOfOffsetCommits() float64 {
	return s.commitsApplied.Load()
}

func (s *Storage) getNumberOfAppliedCommands() int64 {
	return s.commandsApplied.Load()
}
