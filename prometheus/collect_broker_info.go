package prometheus

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func (e *Exporter) collectBrokerInfo(ctx context.Context, ch chan<- prometheus.Metric) bool {
	metadata, err := e.simSvc.GetMetadataCached(ctx)
	if err != nil {
		e.logger.Error("failed to get metadata", zap.Error(err))
		return false
	}

	// Down brokers are not part of the metadata view; their info metric
	// disappears during an outage just as it would with a real cluster.
	for _, broker := range metadata.Brokers {
		isController := metadata.ControllerID == broker.NodeID
		ch <- prometheus.MustNewConstMetric(
			e.brokerInfo,
			prometheus.GaugeValue,
			1,
			strconv.Itoa(int(broker.NodeID)),
			broker.Host,
			strconv.Itoa(int(broker.Port)),
			strconv.FormatBool(isController),
		)
	}

	return true
}
