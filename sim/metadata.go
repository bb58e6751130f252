package sim

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// ClusterID reported in every metadata response.
const ClusterID = "ksim"

// ClusterVersion is the version string the simulation claims, marked so
// nobody mistakes a dashboard fed from it for a real cluster.
const ClusterVersion = "v3.6 (simulated)"

// brokerPortBase is the base port advertised in metadata. Broker N claims
// port brokerPortBase+N, mirroring how local multi-broker test setups are
// usually wired.
const brokerPortBase = 19092

// GetMetadataCached returns the metadata view, deduplicated per scrape via
// the request ID planted into ctx by the exporter.
func (s *Service) GetMetadataCached(ctx context.Context) (*kmsg.MetadataResponse, error) {
	reqId := ctx.Value("requestId").(string)
	key := "metadata-" + reqId

	if cachedRes, exists := s.getCachedItem(key); exists {
		return cachedRes.(*kmsg.MetadataResponse), nil
	}

	res, err, _ := s.requestGroup.Do(key, func() (interface{}, error) {
		metadata, err := s.GetMetadata(ctx)
		if err != nil {
			return nil, err
		}

		s.setCachedItem(key, metadata, 120*time.Second)

		return metadata, nil
	})
	if err != nil {
		return nil, err
	}

	return res.(*kmsg.MetadataResponse), nil
}

// GetMetadata renders the current cluster as a Kafka metadata response, the
// shape a real broker would serve: down brokers are absent from the broker
// list, every partition reports leader, replicas, ISR and offline replicas,
// and leaderless partitions carry LEADER_NOT_AVAILABLE.
func (s *Service) GetMetadata(_ context.Context) (*kmsg.MetadataResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := kmsg.NewMetadataResponse()
	res.ClusterID = kmsg.StringPtr(ClusterID)
	res.ControllerID = s.controllerLocked()

	for _, b := range s.cluster.Brokers {
		if !b.Up {
			continue
		}
		broker := kmsg.NewMetadataResponseBroker()
		broker.NodeID = b.ID
		broker.Host = b.Name
		broker.Port = brokerPortBase + b.ID
		res.Brokers = append(res.Brokers, broker)
	}

	for _, t := range s.cluster.Topics {
		topic := kmsg.NewMetadataResponseTopic()
		topic.Topic = kmsg.StringPtr(t.Name)
		for _, p := range t.Partitions {
			partition := kmsg.NewMetadataResponseTopicPartition()
			partition.Partition = p.ID
			partition.Leader = p.Leader
			partition.Replicas = append([]int32(nil), p.Replicas...)
			partition.ISR = s.cluster.AliveReplicas(p)
			partition.OfflineReplicas = s.cluster.DownReplicas(p)
			if p.Offline {
				partition.ErrorCode = kerr.LeaderNotAvailable.Code
			}
			topic.Partitions = append(topic.Partitions, partition)
		}
		res.Topics = append(res.Topics, topic)
	}

	return &res, nil
}

// GetClusterVersion reports the simulated cluster's version string.
func (s *Service) GetClusterVersion() string {
	return ClusterVersion
}

// controllerLocked reports the controller the way a quorum of the surviving
// brokers would: the lowest up broker ID, or -1 while everything is down.
// Callers must hold the engine lock.
func (s *Service) controllerLocked() int32 {
	for _, b := range s.cluster.Brokers {
		if b.Up {
			return b.ID
		}
	}
	return -1
}
