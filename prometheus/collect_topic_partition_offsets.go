package prometheus

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"
	"go.uber.org/zap"
)

func (e *Exporter) collectTopicPartitionOffsets(ctx context.Context, ch chan<- prometheus.Metric) bool {
	isOk := true

	// Low Watermarks
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

	isOk = e.emitWaterMarks(ch, lowWaterMarks, e.partitionLowWaterMark, e.topicLowWaterMarkSum) && isOk
	isOk = e.emitWaterMarks(ch, highWaterMarks, e.partitionHighWaterMark, e.topicHighWaterMarkSum) && isOk

	return isOk
}

// emitWaterMarks exports one listed offset set. Partitions that failed to
// serve their offset (leaderless ones during an outage) are skipped, and a
// topic's sum is only reported when every partition responded.
func (e *Exporter) emitWaterMarks(ch chan<- prometheus.Metric, offsets kadm.ListedOffsets, partitionDesc, topicSumDesc *prometheus.Desc) bool {
	isOk := true

	for topicName, partitions := range offsets {
		waterMarkSum := int64(0)
		hasErrors := false
		for _, partition := range partitions {
			if partition.Err != nil {
				hasErrors = true
				isOk = false
				continue
			}
			waterMarkSum += partition.Offset
			// Let's end here if partition metrics shall not be exposed
			if e.cfg.Granularity == GranularityTopic {
				continue
			}
			ch <- prometheus.MustNewConstMetric(
				partitionDesc,
				prometheus.GaugeValue,
				float64(partition.Offset),
				topicName,
				strconv.Itoa(int(partition.Partition)),
			)
		}
		// We only want to report the sum of all partition marks if we
		// received watermarks from all partitions
		if !hasErrors {
			ch <- prometheus.MustNewConstMetric(
				topicSumDesc,
				prometheus.GaugeValue,
				float64(waterMarkSum),
				topicName,
			)
		}
	}

	return isOk
}
