package sim

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/cloudhut/ksim/cluster"
	"github.com/cloudhut/ksim/group"
)

func (s *Service) DescribeConsumerGroupsCached(ctx context.Context) (*kmsg.DescribeGroupsResponse, error) {
	reqId := ctx.Value("requestId").(string)
	key := "describe-consumer-groups-" + reqId

	if cachedRes, exists := s.getCachedItem(key); exists {
		return cachedRes.(*kmsg.DescribeGroupsResponse), nil
	}

	res, err, _ := s.requestGroup.Do(key, func() (interface{}, error) {
		res, err := s.DescribeConsumerGroups(ctx)
		if err != nil {
			return nil, err
		}
		s.setCachedItem(key, res, 120*time.Second)

		return res, nil
	})
	if err != nil {
		return nil, err
	}

	return res.(*kmsg.DescribeGroupsResponse), nil
}

// DescribeConsumerGroups renders all consumer groups as a describe groups
// response. Stable groups report the consumer protocol type, the roundrobin
// protocol and one member entry per consumer, whose assignment bytes are
// encoded in the consumer protocol's wire format so they decode with the
// same kmsg decoder real clients use. Empty groups report no protocol and no
// members.
func (s *Service) DescribeConsumerGroups(_ context.Context) (*kmsg.DescribeGroupsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := kmsg.NewDescribeGroupsResponse()
	for _, g := range s.groups {
		grp := kmsg.NewDescribeGroupsResponseGroup()
		grp.Group = g.ID
		grp.State = g.State()
		grp.ProtocolType = group.ProtocolType
		if g.State() == group.StateStable {
			grp.Protocol = group.Protocol
		}

		for _, member := range g.Members {
			m := kmsg.NewDescribeGroupsResponseGroupMember()
			m.MemberID = member.ID
			m.ClientID = member.ID
			m.ClientHost = "/127.0.0.1"
			m.MemberAssignment = encodeMemberAssignment(g.PartitionsAssignedTo(member.ID))
			grp.Members = append(grp.Members, m)
		}
		res.Groups = append(res.Groups, grp)
	}

	return &res, nil
}

// encodeMemberAssignment serializes a member's owned partitions. The input is
// sorted by topic then partition, so consecutive entries of one topic fold
// into a single assignment topic.
func encodeMemberAssignment(owned []cluster.TopicPartition) []byte {
	a := kmsg.NewConsumerMemberAssignment()
	for _, tp := range owned {
		if len(a.Topics) == 0 || a.Topics[len(a.Topics)-1].Topic != tp.Topic {
			t := kmsg.NewConsumerMemberAssignmentTopic()
			t.Topic = tp.Topic
			a.Topics = append(a.Topics, t)
		}
		last := &a.Topics[len(a.Topics)-1]
		last.Partitions = append(last.Partitions, tp.Partition)
	}
	return a.AppendTo(nil)
}
