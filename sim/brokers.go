package sim

import (
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/cluster"
)

// SetBrokerUp marks a broker up or down and re-elects leaders across all
// topics. Setting a broker to the state it is already in is applied the same
// way, so the call is idempotent. An unknown broker ID changes nothing, but
// leaders are still re-elected.
func (s *Service) SetBrokerUp(brokerID int32, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.cluster.Broker(brokerID); ok {
		b.Up = up
	}
	cluster.ElectLeaders(s.cluster)
	s.storage.markCommandApplied()

	s.logger.Debug("set broker state",
		zap.Int32("broker_id", brokerID),
		zap.Bool("up", up))
}

// FailRandomUpBroker picks a random currently-up broker, marks it down and
// re-elects leaders. It reports which broker was failed; ok is false when no
// broker was up, in which case nothing changed.
func (s *Service) FailRandomUpBroker() (brokerID int32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	upIDs := s.cluster.UpBrokerIDs()
	if len(upIDs) == 0 {
		return -1, false
	}

	brokerID = upIDs[s.rng.Intn(len(upIDs))]
	if b, exists := s.cluster.Broker(brokerID); exists {
		b.Up = false
	}
	cluster.ElectLeaders(s.cluster)
	s.storage.markCommandApplied()

	s.logger.Info("failed random broker", zap.Int32("broker_id", brokerID))

	return brokerID, true
}
