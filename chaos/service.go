package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/cluster"
	"github.com/cloudhut/ksim/sim"
)

// Service drives the simulated cluster in the background so that exported
// metrics move the way they would against a live cluster: records get
// produced, consumer groups advance and brokers go down for a while and
// come back.
type Service struct {
	cfg    Config
	logger *zap.Logger
	simSvc *sim.Service

	// sessionID tells driver instances apart in logs in case multiple
	// simulations report to the same Prometheus.
	sessionID string

	// outages tracks brokers that are currently taken down. Entries carry the
	// outage duration as TTL, the expiration callback brings the broker back.
	outages *ttlcache.Cache

	// Only the fault loop touches these.
	churnTopicNames []string
	churnSeq        int

	actions       *prometheus.CounterVec
	activeOutages prometheus.Gauge
}

func NewService(cfg Config, logger *zap.Logger, simSvc *sim.Service, metricsNamespace string) (*Service, error) {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger.Named("chaos"),
		simSvc:    simSvc,
		sessionID: uuid.NewString(),
	}

	s.outages = ttlcache.NewCache()
	s.outages.SkipTTLExtensionOnHit(true)
	if err := s.outages.SetTTL(cfg.BrokerOutageDuration); err != nil {
		return nil, fmt.Errorf("failed to configure the outage tracker: %w", err)
	}
	s.outages.SetExpirationCallback(func(key string, value interface{}) {
		brokerID := value.(int32)
		s.simSvc.SetBrokerUp(brokerID, true)
		s.activeOutages.Dec()
		s.actions.WithLabelValues("broker_recovery").Inc()
		s.logger.Info("broker recovered from its outage", zap.Int32("broker_id", brokerID))
	})

	s.actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "chaos",
		Name:      "actions_total",
		Help:      "Number of actions the chaos driver has applied to the simulated cluster, partitioned by action",
	}, []string{"action"})
	s.activeOutages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "chaos",
		Name:      "active_broker_outages",
		Help:      "Number of brokers that are currently taken down by the chaos driver",
	})

	return s, nil
}

// Start launches the traffic and the fault loop. Both run until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("chaos driver is disabled, the simulated cluster will not move on its own")
		return nil
	}

	go s.trafficLoop(ctx)
	go s.faultLoop(ctx)

	s.logger.Info("chaos driver started",
		zap.String("session_id", s.sessionID),
		zap.Int64("seed", s.cfg.Seed),
		zap.Duration("produce_interval", s.cfg.ProduceInterval),
		zap.Duration("consume_interval", s.cfg.ConsumeInterval),
		zap.Duration("broker_failure_interval", s.cfg.BrokerFailureInterval),
		zap.Duration("broker_outage_duration", s.cfg.BrokerOutageDuration))

	return nil
}

// Stop shuts down the outage tracker. Brokers still in an outage are not
// recovered.
func (s *Service) Stop() {
	_ = s.outages.Close()
}

func (s *Service) trafficLoop(ctx context.Context) {
	// Each loop owns its rand source, rand.Rand is not safe for concurrent use.
	rng := rand.New(rand.NewSource(s.cfg.Seed))

	produceTicker := time.NewTicker(s.cfg.ProduceInterval)
	consumeTicker := time.NewTicker(s.cfg.ConsumeInterval)
	defer produceTicker.Stop()
	defer consumeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stopping traffic loop, context was cancelled")
			return
		case <-produceTicker.C:
			s.produceBatch(rng)
		case <-consumeTicker.C:
			s.consumeAll()
		}
	}
}

func (s *Service) faultLoop(ctx context.Context) {
	rng := rand.New(rand.NewSource(s.cfg.Seed + 1))

	failureTicker := time.NewTicker(s.cfg.BrokerFailureInterval)
	defer failureTicker.Stop()

	// Optional churn actions keep a nil channel while disabled so their
	// select case never fires.
	var groupResizeC, topicChurnC <-chan time.Time
	if s.cfg.GroupResizeInterval > 0 {
		t := time.NewTicker(s.cfg.GroupResizeInterval)
		defer t.Stop()
		groupResizeC = t.C
	}
	if s.cfg.TopicChurnInterval > 0 {
		t := time.NewTicker(s.cfg.TopicChurnInterval)
		defer t.Stop()
		topicChurnC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stopping fault loop, context was cancelled")
			return
		case <-failureTicker.C:
			s.failBroker()
		case <-groupResizeC:
			s.resizeRandomGroup(rng)
		case <-topicChurnC:
			s.rotateChurnTopic(rng)
		}
	}
}

// produceBatch appends a batch of records to randomly picked topics.
func (s *Service) produceBatch(rng *rand.Rand) {
	topics := s.simSvc.GetCluster().Topics
	if len(topics) == 0 {
		return
	}

	for i := 0; i < s.cfg.ProduceBatchSize; i++ {
		topic := topics[rng.Intn(len(topics))]
		key := randomKey(rng, s.cfg.KeyCardinality, s.cfg.EmptyKeyRatio)
		if _, _, ok := s.simSvc.Produce(topic.Name, key); ok {
			s.actions.WithLabelValues("produce").Inc()
		}
	}
}

// consumeAll advances every consumer group by one consume step.
func (s *Service) consumeAll() {
	for _, g := range s.simSvc.GetGroups() {
		if commits := s.simSvc.ConsumeStep(g.ID); commits > 0 {
			s.actions.WithLabelValues("consume_step").Inc()
		}
	}
}

// failBroker takes one random up broker down unless the outage budget is
// already spent. Recovery is scheduled through the outage tracker.
func (s *Service) failBroker() {
	if s.outages.Count() >= s.cfg.MaxConcurrentOutages {
		s.logger.Debug("skipping broker failure, the outage budget is spent",
			zap.Int("active_outages", s.outages.Count()))
		return
	}

	brokerID, ok := s.simSvc.FailRandomUpBroker()
	if !ok {
		return
	}
	if err := s.outages.Set(strconv.Itoa(int(brokerID)), brokerID); err != nil {
		// Without a tracker entry nothing would ever bring the broker back,
		// so recover it right away.
		s.simSvc.SetBrokerUp(brokerID, true)
		s.logger.Error("failed to track the broker outage", zap.Error(err))
		return
	}

	s.activeOutages.Inc()
	s.actions.WithLabelValues("broker_failure").Inc()
	s.logger.Info("broker taken down for an outage",
		zap.Int32("broker_id", brokerID),
		zap.Duration("outage_duration", s.cfg.BrokerOutageDuration))
}

// resizeRandomGroup grows or shrinks one random consumer group by a single
// member. Groups may shrink all the way to zero members.
func (s *Service) resizeRandomGroup(rng *rand.Rand) {
	groups := s.simSvc.GetGroups()
	if len(groups) == 0 {
		return
	}

	g := groups[rng.Intn(len(groups))]
	grow := rng.Float64() < 0.5
	if grow && len(g.Members) >= s.cfg.MaxConsumersPerGroup {
		grow = false
	}

	if grow {
		if memberID, ok := s.simSvc.AddConsumer(g.ID); ok {
			s.actions.WithLabelValues("consumer_added").Inc()
			s.logger.Info("added a consumer",
				zap.String("group_id", g.ID),
				zap.String("member_id", memberID))
		}
		return
	}
	if s.simSvc.RemoveConsumer(g.ID) {
		s.actions.WithLabelValues("consumer_removed").Inc()
		s.logger.Info("removed a consumer", zap.String("group_id", g.ID))
	}
}

// rotateChurnTopic adds a fresh short-lived topic and drops the oldest one
// once the churn window is full.
func (s *Service) rotateChurnTopic(rng *rand.Rand) {
	if len(s.churnTopicNames) >= s.cfg.MaxChurnTopics {
		oldest := s.churnTopicNames[0]
		s.churnTopicNames = s.churnTopicNames[1:]
		s.simSvc.RemoveTopic(oldest)
		s.actions.WithLabelValues("topic_removed").Inc()
		s.logger.Info("removed a churn topic", zap.String("topic_name", oldest))
	}

	s.churnSeq++
	name := s.simSvc.AddTopic(cluster.TopicConfig{
		Name:              fmt.Sprintf("chaos-%d", s.churnSeq),
		Partitions:        1 + rng.Intn(3),
		ReplicationFactor: 1 + rng.Intn(3),
	})
	s.churnTopicNames = append(s.churnTopicNames, name)
	s.actions.WithLabelValues("topic_added").Inc()
	s.logger.Info("added a churn topic", zap.String("topic_name", name))
}

// randomKey draws a record key from a bounded key space. A share of the
// records is sent unkeyed so the sticky partitioner path is exercised too.
func randomKey(rng *rand.Rand, cardinality int, emptyRatio float64) string {
	if rng.Float64() < emptyRatio {
		return ""
	}
	return "key-" + strconv.Itoa(rng.Intn(cardinality))
}
