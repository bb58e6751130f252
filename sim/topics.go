package sim

import (
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/cluster"
)

// TopicPatch is a partial change to one topic's configuration. Nil fields are
// left as they are.
type TopicPatch struct {
	Name              *string
	Partitions        *int
	ReplicationFactor *int
}

// BuildTopology discards the current cluster and builds a fresh one from the
// given broker count and topic configs. Consumer groups survive the rebuild
// with their committed offsets intact; their assignments are recomputed
// against the new topology before the command returns.
func (s *Service) BuildTopology(brokerCount int, topics []cluster.TopicConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buildTopologyLocked(brokerCount, topics)
	s.storage.markCommandApplied()

	s.logger.Info("rebuilt cluster topology",
		zap.Int("broker_count", len(s.cluster.Brokers)),
		zap.Int("topic_count", len(s.cluster.Topics)))
}

func (s *Service) buildTopologyLocked(brokerCount int, topics []cluster.TopicConfig) {
	s.cluster = cluster.NewCluster(brokerCount, topics)
	cluster.ElectLeaders(s.cluster)
	s.rebalanceAllLocked()
}

// AddTopic creates one topic in the running cluster, placed against the
// current broker count. A taken name is de-duplicated with a numeric suffix;
// the name actually used is returned. Leaders are elected and every group is
// rebalanced so the new partitions are covered.
func (s *Service) AddTopic(cfg cluster.TopicConfig) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]bool, len(s.cluster.Topics))
	for _, t := range s.cluster.Topics {
		taken[t.Name] = true
	}
	name := cluster.UniqueTopicName(cfg.Name, taken)

	s.cluster.Topics = append(s.cluster.Topics, cluster.Topic{
		Name:       name,
		Partitions: cluster.BuildPartitions(name, cfg.Partitions, cfg.ReplicationFactor, len(s.cluster.Brokers)),
	})
	cluster.ElectLeaders(s.cluster)
	s.rebalanceAllLocked()
	s.storage.markCommandApplied()

	s.logger.Info("added topic",
		zap.String("topic_name", name),
		zap.Int("partition_count", len(s.cluster.Topics[len(s.cluster.Topics)-1].Partitions)))

	return name
}

// RemoveTopic deletes a topic by name; unknown names change nothing. Group
// assignments are recomputed, while committed offsets on the removed
// partitions are kept and simply go stale.
func (s *Service) RemoveTopic(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]cluster.Topic, 0, len(s.cluster.Topics))
	for _, t := range s.cluster.Topics {
		if t.Name != name {
			kept = append(kept, t)
		}
	}
	removed := len(kept) < len(s.cluster.Topics)
	s.cluster.Topics = kept

	cluster.ElectLeaders(s.cluster)
	s.rebalanceAllLocked()
	s.storage.markCommandApplied()

	if removed {
		s.logger.Info("removed topic", zap.String("topic_name", name))
	}
}

// UpdateTopicConfig applies a partial configuration change to one topic;
// unknown topics change nothing. A rename keeps the partitions and their end
// offsets, de-duplicating the new name against all other topics. A partition
// count or replication factor whose clamped value differs from the current
// shape rebuilds the topic's partitions from scratch, which resets end
// offsets. Leaders are elected and every group is rebalanced afterwards.
func (s *Service) UpdateTopicConfig(topicName string, patch TopicPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.cluster.Topic(topicName)
	if !ok {
		return
	}

	if patch.Name != nil && *patch.Name != t.Name {
		taken := make(map[string]bool, len(s.cluster.Topics))
		for _, other := range s.cluster.Topics {
			if other.Name != t.Name {
				taken[other.Name] = true
			}
		}
		newName := cluster.UniqueTopicName(*patch.Name, taken)
		t.Name = newName
		for i := range t.Partitions {
			t.Partitions[i].Topic = newName
		}
	}

	if patch.Partitions != nil || patch.ReplicationFactor != nil {
		curParts := len(t.Partitions)
		curRF := 0
		if curParts > 0 {
			curRF = len(t.Partitions[0].Replicas)
		}

		wantParts := curParts
		if patch.Partitions != nil {
			wantParts = *patch.Partitions
		}
		wantRF := curRF
		if patch.ReplicationFactor != nil {
			wantRF = *patch.ReplicationFactor
		}
		wantParts, wantRF = cluster.NormalizeTopicShape(wantParts, wantRF, len(s.cluster.Brokers))

		if wantParts != curParts || wantRF != curRF {
			t.Partitions = cluster.BuildPartitions(t.Name, wantParts, wantRF, len(s.cluster.Brokers))
		}
	}

	cluster.ElectLeaders(s.cluster)
	s.rebalanceAllLocked()
	s.storage.markCommandApplied()

	s.logger.Info("updated topic config",
		zap.String("topic_name", topicName),
		zap.String("current_name", t.Name))
}
