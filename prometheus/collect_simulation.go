package prometheus

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// collectSimulationState exports engine-level facts that have no Kafka API
// equivalent: broker liveness including down brokers, replica placement
// counts, offline partitions, and the engine activity counters.
func (e *Exporter) collectSimulationState(_ context.Context, ch chan<- prometheus.Metric) bool {
	c := e.simSvc.GetCluster()

	offline := 0
	for _, topic := range c.Topics {
		for _, p := range topic.Partitions {
			if p.Offline {
				offline++
			}
		}
	}
	ch <- prometheus.MustNewConstMetric(e.partitionsOffline, prometheus.GaugeValue, float64(offline))

	for _, b := range c.Brokers {
		up := 0.0
		if b.Up {
			up = 1.0
		}
		brokerID := strconv.Itoa(int(b.ID))
		ch <- prometheus.MustNewConstMetric(e.brokerUp, prometheus.GaugeValue, up, brokerID)
		ch <- prometheus.MustNewConstMetric(
			e.brokerHostedPartitions,
			prometheus.GaugeValue,
			float64(len(e.simSvc.GetPartitionsHostedBy(b.ID))),
			brokerID,
		)
	}

	ch <- prometheus.MustNewConstMetric(
		e.recordsProduced,
		prometheus.CounterValue,
		e.simSvc.GetNumberOfProducedRecords(),
	)
	for topicName, produced := range e.simSvc.GetProducedRecordsByTopic() {
		ch <- prometheus.MustNewConstMetric(
			e.topicRecordsProduced,
			prometheus.CounterValue,
			produced,
			topicName,
		)
	}
	ch <- prometheus.MustNewConstMetric(
		e.offsetCommitsApplied,
		prometheus.CounterValue,
		e.simSvc.GetNumberOfOffsetCommits(),
	)
	ch <- prometheus.MustNewConstMetric(
		e.commandsApplied,
		prometheus.CounterValue,
		float64(e.simSvc.GetNumberOfAppliedCommands()),
	)

	return true
}
