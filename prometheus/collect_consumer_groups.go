package prometheus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.uber.org/zap"
)

func (e *Exporter) collectConsumerGroups(ctx context.Context, ch chan<- prometheus.Metric) bool {
	describeRes, err := e.simSvc.DescribeConsumerGroupsCached(ctx)
	if err != nil {
		e.logger.Error("failed to describe consumer groups", zap.Error(err))
		return false
	}

	metadata, err := e.simSvc.GetMetadataCached(ctx)
	if err != nil {
		e.logger.Error("failed to get metadata", zap.Error(err))
		return false
	}
	coordinator := metadata.ControllerID

	for _, group := range describeRes.Groups {
		err := kerr.ErrorForCode(group.ErrorCode)
		if err != nil {
			e.logger.Warn("failed to describe consumer group, internal kafka error",
				zap.Error(err),
				zap.String("group_id", group.Group),
			)
			continue
		}
		state := 0
		if group.State == "Stable" {
			state = 1
		}
		ch <- prometheus.MustNewConstMetric(
			e.consumerGroupInfo,
			prometheus.GaugeValue,
			float64(state),
			group.Group,
			group.Protocol,
			group.ProtocolType,
			group.State,
			strconv.FormatInt(int64(coordinator), 10),
		)

		// total number of members in consumer groups
		ch <- prometheus.MustNewConstMetric(
			e.consumerGroupMembers,
			prometheus.GaugeValue,
			float64(len(group.Members)),
			group.Group,
		)

		// iterate all members and build two maps:
		// - {topic -> number-of-consumers}
		// - {topic -> number-of-partitions-assigned}
		topicConsumers := make(map[string]int)
		topicPartitionsAssigned := make(map[string]int)
		membersWithEmptyAssignment := 0
		failedAssignmentsDecode := 0
		for _, member := range group.Members {
			if len(member.MemberAssignment) == 0 {
				membersWithEmptyAssignment++
				continue
			}

			kassignment, err := decodeMemberAssignments(group.ProtocolType, member)
			if err != nil {
				e.logger.Debug("failed to decode consumer group member assignment",
					zap.Error(err),
					zap.String("group_id", group.Group),
					zap.String("client_id", member.ClientID),
					zap.String("member_id", member.MemberID),
					zap.String("client_host", member.ClientHost),
				)
				failedAssignmentsDecode++
				continue
			}
			if kassignment == nil {
				// This is expected for protocol types that don't carry
				// decodable assignments
				continue
			}

			if len(kassignment.Topics) == 0 {
				membersWithEmptyAssignment++
			}
			for _, topic := range kassignment.Topics {
				topicConsumers[topic.Topic]++
				topicPartitionsAssigned[topic.Topic] += len(topic.Partitions)
			}
		}

		if failedAssignmentsDecode > 0 {
			e.logger.Error("failed to decode consumer group member assignments",
				zap.String("group_id", group.Group),
				zap.Int("assignment_decode_failures", failedAssignmentsDecode),
			)
		}

		// number of members with no assignment in a stable consumer group
		if membersWithEmptyAssignment > 0 {
			ch <- prometheus.MustNewConstMetric(
				e.consumerGroupMembersEmpty,
				prometheus.GaugeValue,
				float64(membersWithEmptyAssignment),
				group.Group,
			)
		}
		// number of members in consumer groups for each topic
		for topicName, consumers := range topicConsumers {
			ch <- prometheus.MustNewConstMetric(
				e.consumerGroupTopicMembers,
				prometheus.GaugeValue,
				float64(consumers),
				group.Group,
				topicName,
			)
		}
		// number of partitions assigned in consumer groups for each topic
		for topicName, partitions := range topicPartitionsAssigned {
			ch <- prometheus.MustNewConstMetric(
				e.consumerGroupAssignedTopicPartitions,
				prometheus.GaugeValue,
				float64(partitions),
				group.Group,
				topicName,
			)
		}
	}
	return true
}

func decodeMemberAssignments(protocolType string, member kmsg.DescribeGroupsResponseGroupMember) (*kmsg.ConsumerMemberAssignment, error) {
	switch protocolType {
	case "consumer":
		a := kmsg.NewConsumerMemberAssignment()
		if err := a.ReadFrom(member.MemberAssignment); err != nil {
			return nil, fmt.Errorf("failed to decode member assignment: %w", err)
		}
		return &a, nil
	default:
		return nil, nil
	}
}
