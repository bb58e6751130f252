package sim

import (
	"context"
	"sort"
	"time"

	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/cloudhut/ksim/cluster"
	"github.com/cloudhut/ksim/group"
)

func (s *Service) ListAllConsumerGroupOffsetsCached(ctx context.Context) (map[string]*kmsg.OffsetFetchResponse, error) {
	reqId := ctx.Value("requestId").(string)
	key := "group-offsets-" + reqId

	if cachedRes, exists := s.getCachedItem(key); exists {
		return cachedRes.(map[string]*kmsg.OffsetFetchResponse), nil
	}

	res, err, _ := s.requestGroup.Do(key, func() (interface{}, error) {
		offsets, err := s.ListAllConsumerGroupOffsets(ctx)
		if err != nil {
			return nil, err
		}
		s.setCachedItem(key, offsets, 120*time.Second)

		return offsets, nil
	})
	if err != nil {
		return nil, err
	}

	return res.(map[string]*kmsg.OffsetFetchResponse), nil
}

// ListAllConsumerGroupOffsets returns one offset fetch response per group,
// keyed by group ID. Every committed offset the group holds is included,
// stale entries for since-removed partitions too, matching how a real
// coordinator keeps serving commits after a topic is deleted.
func (s *Service) ListAllConsumerGroupOffsets(_ context.Context) (map[string]*kmsg.OffsetFetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make(map[string]*kmsg.OffsetFetchResponse, len(s.groups))
	for _, g := range s.groups {
		res[g.ID] = offsetFetchResponse(g)
	}
	return res, nil
}

func offsetFetchResponse(g *group.ConsumerGroup) *kmsg.OffsetFetchResponse {
	tps := make([]cluster.TopicPartition, 0, len(g.Offsets))
	for tp := range g.Offsets {
		tps = append(tps, tp)
	}
	sort.Slice(tps, func(i, j int) bool {
		if tps[i].Topic != tps[j].Topic {
			return tps[i].Topic < tps[j].Topic
		}
		return tps[i].Partition < tps[j].Partition
	})

	res := kmsg.NewOffsetFetchResponse()
	for _, tp := range tps {
		if len(res.Topics) == 0 || res.Topics[len(res.Topics)-1].Topic != tp.Topic {
			t := kmsg.NewOffsetFetchResponseTopic()
			t.Topic = tp.Topic
			res.Topics = append(res.Topics, t)
		}
		p := kmsg.NewOffsetFetchResponseTopicPartition()
		p.Partition = tp.Partition
		p.Offset = g.Offsets[tp]
		last := len(res.Topics) - 1
		res.Topics[last].Partitions = append(res.Topics[last].Partitions, p)
	}
	return &res
}
