package prometheus

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kerr"
	"go.uber.org/zap"
)

func (e *Exporter) collectTopicInfo(ctx context.Context, ch chan<- prometheus.Metric) bool {
	metadata, err := e.simSvc.GetMetadataCached(ctx)
	if err != nil {
		e.logger.Error("failed to get metadata", zap.Error(err))
		return false
	}

	isOk := true
	for _, topic := range metadata.Topics {
		topicName := ""
		if topic.Topic != nil {
			topicName = *topic.Topic
		}
		typedErr := kerr.TypedErrorForCode(topic.ErrorCode)
		if typedErr != nil {
			isOk = false
			e.logger.Warn("failed to get metadata of a specific topic",
				zap.String("topic_name", topicName),
				zap.Error(typedErr))
			continue
		}
		partitionCount := len(topic.Partitions)
		replicationFactor := -1
		if partitionCount > 0 {
			replicationFactor = len(topic.Partitions[0].Replicas)
		}

		ch <- prometheus.MustNewConstMetric(
			e.topicInfo,
			prometheus.GaugeValue,
			float64(1),
			topicName,
			strconv.Itoa(partitionCount),
			strconv.Itoa(replicationFactor),
		)
	}
	return isOk
}
