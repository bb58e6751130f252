package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cloudhut/ksim/cluster"
	"github.com/cloudhut/ksim/group"
)

// Service is the cluster engine: it owns the one authoritative cluster state
// and all consumer groups, and is the only writer to either. Every command
// runs synchronously under one mutex, so commands are strictly serialized and
// no reader ever observes a half-applied change. Derived recomputation is an
// explicit post-condition inside each command: broker commands re-elect
// leaders before returning, topology and membership commands rebalance every
// group before returning. There is no implicit effect graph.
//
// All randomness (unkeyed produce routing, random broker failures) is drawn
// from one seeded source, so a fixed seed makes an entire run reproducible.
//
// Queries hand out deep copies, never references into engine state.
type Service struct {
	Cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	cluster  *cluster.Cluster
	groups   []*group.ConsumerGroup
	groupSeq int
	rng      *rand.Rand
	router   *cluster.Router

	storage *Storage

	// requestGroup deduplicates concurrent view builds within one scrape
	requestGroup *singleflight.Group
	cache        map[string]interface{}
	cacheLock    sync.RWMutex
}

// NewService validates the config, builds the initial topology and seeds the
// configured consumer groups. The engine is ready as soon as this returns.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate simulator config: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	s := &Service{
		Cfg:    cfg,
		logger: logger.Named("sim"),

		rng:    rng,
		router: cluster.NewRouter(rng),

		storage: newStorage(logger),

		requestGroup: &singleflight.Group{},
		cache:        make(map[string]interface{}),
		cacheLock:    sync.RWMutex{},
	}

	s.mu.Lock()
	s.buildTopologyLocked(cfg.BrokerCount, clusterTopicConfigs(cfg.Topics))
	for _, gc := range cfg.ConsumerGroups {
		g := s.addGroupLocked(gc.ID)
		for i := 0; i < gc.Consumers; i++ {
			g.AddMember()
		}
		g.Rebalance(s.cluster.Topics)
	}
	s.mu.Unlock()

	s.logger.Info("simulated cluster is ready",
		zap.Int64("seed", seed),
		zap.Int("broker_count", cfg.BrokerCount),
		zap.Int("topic_count", len(cfg.Topics)),
		zap.Int("consumer_group_count", len(cfg.ConsumerGroups)))
	s.storage.setReadyState(true)

	return s, nil
}

// IsReady reports whether the initial topology has been applied. Used by the
// readiness endpoint.
func (s *Service) IsReady() bool {
	return s.storage.isReady()
}

// ---- queries ----

// GetCluster returns a deep snapshot of the current cluster.
func (s *Service) GetCluster() cluster.Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cluster.Clone()
}

// GetGroups returns deep snapshots of all consumer groups in creation order.
func (s *Service) GetGroups() []group.ConsumerGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]group.ConsumerGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g.Clone())
	}
	return groups
}

// GetLag returns the raw, unclamped lag of one group on one partition:
// end offset minus committed offset, with both sides defaulting to zero for
// unknown groups, topics, or partitions.
func (s *Service) GetLag(groupID, topicName string, partition int32) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp := cluster.TopicPartition{Topic: topicName, Partition: partition}
	g, ok := s.findGroupLocked(groupID)
	if !ok {
		g = group.New(groupID)
	}
	return g.Lag(s.cluster, tp)
}

// GetPartitionsHostedBy returns copies of all partitions that name the broker
// as leader or replica.
func (s *Service) GetPartitionsHostedBy(brokerID int32) []cluster.Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cluster.PartitionsHostedBy(brokerID)
}

// ---- exporter accessors (lock-free, backed by storage) ----

// GetNumberOfProducedRecords returns how many records have been appended
// since startup.
func (s *Service) GetNumberOfProducedRecords() float64 {
	return s.storage.getNumberOfProducedRecords()
}

// GetNumberOfOffsetCommits returns how many committed-offset advances have
// been applied since startup.
func (s *Service) GetNumberOfOffsetCommits() float64 {
	return s.storage.getNumberOfOffsetCommits()
}

// GetNumberOfAppliedCommands returns how many engine commands have been
// applied since startup.
func (s *Service) GetNumberOfAppliedCommands() int64 {
	return s.storage.getNumberOfAppliedCommands()
}

// GetProducedRecordsByTopic returns appended record counts summed per topic.
func (s *Service) GetProducedRecordsByTopic() map[string]float64 {
	return s.storage.getProducedByTopic()
}

// GetCommitCountsByGroup returns offset commit counts summed per group.
func (s *Service) GetCommitCountsByGroup() map[string]int {
	return s.storage.getCommitCountsByGroup()
}

// ---- internals ----

// findGroupLocked returns the live group with the given ID. Callers must hold
// the engine lock.
func (s *Service) findGroupLocked(id string) (*group.ConsumerGroup, bool) {
	for _, g := range s.groups {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// rebalanceAllLocked recomputes every group's assignment against the current
// topology. Callers must hold the engine lock.
func (s *Service) rebalanceAllLocked() {
	for _, g := range s.groups {
		g.Rebalance(s.cluster.Topics)
	}
}

// ---- request-scoped cache ----

func (s *Service) getCachedItem(key string) (interface{}, bool) {
	s.cacheLock.RLock()
	defer s.cacheLock.RUnlock()

	val, exists := s.cache[key]
	return val, exists
}

func (s *Service) setCachedItem(key string, val interface{}, timeout time.Duration) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	go func() {
		time.Sleep(timeout)
		s.deleteCachedItem(key)
	}()

	s.cache[key] = val
}

func (s *Service) deleteCachedItem(key string) {
	s.cacheLock.Lock()
	defer s.cacheLock.Unlock()

	delete(s.cache, key)
}
