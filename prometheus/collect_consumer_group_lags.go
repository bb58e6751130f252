package prometheus

import (
	"context"
	"math"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"go.uber.org/zap"
)

type waterMark struct {
	TopicName     string
	PartitionID   int32
	LowWaterMark  int64
	HighWaterMark int64
}

func (e *Exporter) collectConsumerGroupLags(ctx context.Context, ch chan<- prometheus.Metric) bool {
	// Low Watermarks (not used for lag computation itself, but they gate
	// which partitions have a complete pair of marks)
	lowWaterMarks, err := e.simSvc.ListStartOffsetsCached(ctx)
	if err != nil {
		e.logger.Error("failed to fetch low water marks", zap.Error(err))
		return false
	}
	// High Watermarks
	highWaterMarks, err := e.simSvc.ListEndOffsetsCached(ctx)
	if err != nil {
		e.logger.Error("failed to fetch high water marks", zap.Error(err))
		return false
	}
	marks := e.waterMarksByTopic(lowWaterMarks, highWaterMarks)

	groupOffsets, err := e.simSvc.ListAllConsumerGroupOffsetsCached(ctx)
	if err != nil {
		e.logger.Error("failed to fetch consumer group offsets", zap.Error(err))
		return false
	}
	commitCounts := e.simSvc.GetCommitCountsByGroup()

	isOk := true
	for groupName, offsetRes := range groupOffsets {
		err := kerr.ErrorForCode(offsetRes.ErrorCode)
		if err != nil {
			e.logger.Warn("failed to get offsets from consumer group, inner kafka error",
				zap.String("consumer_group", groupName),
				zap.Error(err))
			isOk = false
			continue
		}

		for _, topic := range offsetRes.Topics {
			topicLag := float64(0)
			topicOffsetSum := float64(0)
			for _, partition := range topic.Partitions {
				err := kerr.ErrorForCode(partition.ErrorCode)
				if err != nil {
					e.logger.Warn("failed to get consumer group offsets for a partition, inner kafka error",
						zap.String("consumer_group", groupName),
						zap.Error(err))
					isOk = false
					continue
				}

				childLogger := e.logger.With(
					zap.String("consumer_group", groupName),
					zap.String("topic_name", topic.Topic),
					zap.Int32("partition_id", partition.Partition),
					zap.Int64("group_offset", partition.Offset))
				topicMark, exists := marks[topic.Topic]
				if !exists {
					childLogger.Warn("consumer group has committed offsets on a topic we don't have watermarks for")
					isOk = false
					break // No other partition of this topic can have marks either
				}
				partitionMark, exists := topicMark[partition.Partition]
				if !exists {
					childLogger.Warn("consumer group has committed offsets on a partition we don't have watermarks for")
					isOk = false
					continue
				}
				lag := float64(partitionMark.HighWaterMark - partition.Offset)
				// Negative raw lag appears when a partition was rebuilt or
				// removed while the group's commit survived. For display we
				// floor it at 0, the raw value stays queryable through the
				// engine.
				lag = math.Max(0, lag)
				topicLag += lag
				topicOffsetSum += float64(partition.Offset)

				if e.cfg.Granularity == GranularityTopic {
					continue
				}
				ch <- prometheus.MustNewConstMetric(
					e.consumerGroupTopicPartitionLag,
					prometheus.GaugeValue,
					lag,
					groupName,
					topic.Topic,
					strconv.Itoa(int(partition.Partition)),
				)
			}

			ch <- prometheus.MustNewConstMetric(
				e.consumerGroupTopicLag,
				prometheus.GaugeValue,
				topicLag,
				groupName,
				topic.Topic,
			)
			ch <- prometheus.MustNewConstMetric(
				e.consumerGroupTopicOffsetSum,
				prometheus.GaugeValue,
				topicOffsetSum,
				groupName,
				topic.Topic,
			)
		}

		ch <- prometheus.MustNewConstMetric(
			e.offsetCommits,
			prometheus.CounterValue,
			float64(commitCounts[groupName]),
			groupName,
		)
	}
	return isOk
}

func (e *Exporter) waterMarksByTopic(lowMarks, highMarks kadm.ListedOffsets) map[string]map[int32]waterMark {
	type partitionID = int32
	type topicName = string
	waterMarks := make(map[topicName]map[partitionID]waterMark)

	for topic, partitions := range lowMarks {
		_, exists := waterMarks[topic]
		if !exists {
			waterMarks[topic] = make(map[partitionID]waterMark)
		}
		for _, partition := range partitions {
			if partition.Err != nil {
				e.logger.Debug("failed to get partition low water mark, inner kafka error",
					zap.String("topic_name", topic),
					zap.Int32("partition_id", partition.Partition),
					zap.Error(partition.Err))
				continue
			}
			waterMarks[topic][partition.Partition] = waterMark{
				TopicName:    topic,
				PartitionID:  partition.Partition,
				LowWaterMark: partition.Offset,
				// Not every low water mark gets a high water mark pair; mark
				// those so they are never mistaken for a complete entry.
				HighWaterMark: -1,
			}
		}
	}

	for topic, partitions := range highMarks {
		mark, exists := waterMarks[topic]
		if !exists {
			e.logger.Error("got high water marks for a topic but no low water marks", zap.String("topic_name", topic))
			delete(waterMarks, topic)
			continue
		}
		for _, partition := range partitions {
			if partition.Err != nil {
				e.logger.Debug("failed to get partition high water mark, inner kafka error",
					zap.String("topic_name", topic),
					zap.Int32("partition_id", partition.Partition),
					zap.Error(partition.Err))
				continue
			}
			partitionMark, exists := mark[partition.Partition]
			if !exists {
				e.logger.Error("got high water marks for a topic's partition but no low water marks",
					zap.String("topic_name", topic),
					zap.Int32("partition_id", partition.Partition),
					zap.Int64("offset", partition.Offset))
				delete(waterMarks, topic)
				break // Topic watermarks are invalid -> delete & skip this topic
			}
			partitionMark.HighWaterMark = partition.Offset
			waterMarks[topic][partition.Partition] = partitionMark
		}
	}

	// Partitions that never received their high water mark pair are dropped
	// so lag is not computed against the -1 placeholder.
	for topic, partitions := range waterMarks {
		for id, mark := range partitions {
			if mark.HighWaterMark == -1 {
				delete(partitions, id)
			}
		}
		if len(partitions) == 0 {
			delete(waterMarks, topic)
		}
	}

	return waterMarks
}
