package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"

	"github.com/cloudhut/ksim/cluster"
)

func (s *Service) ListEndOffsetsCached(ctx context.Context) (kadm.ListedOffsets, error) {
	return s.listOffsetsCached(ctx, "end")
}

func (s *Service) ListStartOffsetsCached(ctx context.Context) (kadm.ListedOffsets, error) {
	return s.listOffsetsCached(ctx, "start")
}

func (s *Service) listOffsetsCached(ctx context.Context, offsetType string) (kadm.ListedOffsets, error) {
	reqId := ctx.Value("requestId").(string)
	key := fmt.Sprintf("partition-%s-offsets-%s", offsetType, reqId)

	if cachedRes, exists := s.getCachedItem(key); exists {
		return cachedRes.(kadm.ListedOffsets), nil
	}

	var listFunc func(context.Context) (kadm.ListedOffsets, error)
	switch offsetType {
	case "end":
		listFunc = s.ListEndOffsets
	case "start":
		listFunc = s.ListStartOffsets
	default:
		return nil, fmt.Errorf("invalid offset type: %s", offsetType)
	}

	res, err, _ := s.requestGroup.Do(key, func() (interface{}, error) {
		offsets, err := listFunc(ctx)
		if err != nil {
			return nil, err
		}

		s.setCachedItem(key, offsets, 120*time.Second)

		return offsets, nil
	})
	if err != nil {
		return nil, err
	}

	return res.(kadm.ListedOffsets), nil
}

// ListEndOffsets reports the high water mark for all topic partitions.
// Partitions without a leader carry a LEADER_NOT_AVAILABLE error instead,
// exactly as listing offsets against a degraded cluster would.
func (s *Service) ListEndOffsets(_ context.Context) (kadm.ListedOffsets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOffsetsLocked(-1, func(p cluster.Partition) int64 { return p.EndOffset }), nil
}

// ListStartOffsets reports the low water mark for all topic partitions. The
// simulation never truncates, so live partitions always report 0.
func (s *Service) ListStartOffsets(_ context.Context) (kadm.ListedOffsets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOffsetsLocked(-2, func(p cluster.Partition) int64 { return 0 }), nil
}

func (s *Service) listOffsetsLocked(timestamp int64, offsetOf func(p cluster.Partition) int64) kadm.ListedOffsets {
	listed := make(kadm.ListedOffsets, len(s.cluster.Topics))
	for _, t := range s.cluster.Topics {
		partitions := make(map[int32]kadm.ListedOffset, len(t.Partitions))
		for _, p := range t.Partitions {
			offset := kadm.ListedOffset{
				Topic:       t.Name,
				Partition:   p.ID,
				Timestamp:   timestamp,
				LeaderEpoch: -1,
				Offset:      offsetOf(p),
			}
			if p.Offline {
				offset.Err = kerr.LeaderNotAvailable
			}
			partitions[p.ID] = offset
		}
		listed[t.Name] = partitions
	}
	return listed
}
