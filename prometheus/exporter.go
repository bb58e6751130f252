package prometheus

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/sim"
)

// Exporter is the Prometheus exporter that implements the prometheus.Collector
// interface. Every scrape renders the simulated cluster through the same
// Kafka-shaped views a real monitoring agent would use, so dashboards built
// for those metrics work unchanged against the simulation.
type Exporter struct {
	cfg    Config
	logger *zap.Logger
	simSvc *sim.Service

	// Exporter metrics
	exporterUp *prometheus.Desc

	// Kafka metrics
	clusterInfo *prometheus.Desc
	brokerInfo  *prometheus.Desc

	topicInfo              *prometheus.Desc
	partitionLowWaterMark  *prometheus.Desc
	topicLowWaterMarkSum   *prometheus.Desc
	partitionHighWaterMark *prometheus.Desc
	topicHighWaterMarkSum  *prometheus.Desc

	consumerGroupInfo                    *prometheus.Desc
	consumerGroupMembers                 *prometheus.Desc
	consumerGroupMembersEmpty            *prometheus.Desc
	consumerGroupTopicMembers            *prometheus.Desc
	consumerGroupAssignedTopicPartitions *prometheus.Desc
	consumerGroupTopicPartitionLag       *prometheus.Desc
	consumerGroupTopicLag                *prometheus.Desc
	consumerGroupTopicOffsetSum          *prometheus.Desc
	offsetCommits                        *prometheus.Desc

	// Simulation metrics
	brokerUp               *prometheus.Desc
	brokerHostedPartitions *prometheus.Desc
	partitionsOffline      *prometheus.Desc
	recordsProduced        *prometheus.Desc
	topicRecordsProduced   *prometheus.Desc
	offsetCommitsApplied   *prometheus.Desc
	commandsApplied        *prometheus.Desc
}

func NewExporter(cfg Config, logger *zap.Logger, simSvc *sim.Service) (*Exporter, error) {
	return &Exporter{cfg: cfg, logger: logger, simSvc: simSvc}, nil
}

func (e *Exporter) InitializeMetrics() {
	e.exporterUp = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "exporter", "up"),
		"Build info about this Prometheus Exporter. Gauge value is 0 if one or more scrapes have failed.",
		nil,
		map[string]string{"version": os.Getenv("EXPORTER_VERSION")},
	)

	// Kafka metrics
	e.clusterInfo = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "cluster_info"),
		"Kafka cluster information",
		[]string{"cluster_version", "broker_count", "controller_id", "cluster_id"},
		nil,
	)
	e.brokerInfo = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "broker_info"),
		"Kafka broker information",
		[]string{"broker_id", "address", "port", "is_controller"},
		nil,
	)
	e.topicInfo = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "topic_info"),
		"Info labels for a given topic",
		[]string{"topic_name", "partition_count", "replication_factor"},
		nil,
	)
	e.partitionLowWaterMark = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "topic_partition_low_water_mark"),
		"Partition Low Water Mark",
		[]string{"topic_name", "partition_id"},
		nil,
	)
	e.topicLowWaterMarkSum = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "topic_low_water_mark_sum"),
		"Sum of all the topic's partition low water marks",
		[]string{"topic_name"},
		nil,
	)
	e.partitionHighWaterMark = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "topic_partition_high_water_mark"),
		"Partition High Water Mark",
		[]string{"topic_name", "partition_id"},
		nil,
	)
	e.topicHighWaterMarkSum = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "topic_high_water_mark_sum"),
		"Sum of all the topic's partition high water marks",
		[]string{"topic_name"},
		nil,
	)
	e.consumerGroupInfo = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_info"),
		"Consumer Group info metrics. It will report 1 if the group is in the stable state, otherwise 0.",
		[]string{"group_id", "protocol", "protocol_type", "state", "coordinator_id"},
		nil,
	)
	e.consumerGroupMembers = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_members"),
		"Consumer Group member count metrics. It will report the number of members in the consumer group",
		[]string{"group_id"},
		nil,
	)
	e.consumerGroupMembersEmpty = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_empty_members"),
		"It will report the number of members in the consumer group with no partition assigned",
		[]string{"group_id"},
		nil,
	)
	e.consumerGroupTopicMembers = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_topic_members"),
		"It will report the number of members in the consumer group assigned on a given topic",
		[]string{"group_id", "topic_name"},
		nil,
	)
	e.consumerGroupAssignedTopicPartitions = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_assigned_topic_partitions"),
		"It will report the number of partitions assigned in the consumer group for a given topic",
		[]string{"group_id", "topic_name"},
		nil,
	)
	e.consumerGroupTopicPartitionLag = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_topic_partition_lag"),
		"The number of messages a consumer group is lagging behind the latest offset of a partition",
		[]string{"group_id", "topic_name", "partition_id"},
		nil,
	)
	e.consumerGroupTopicLag = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_topic_lag"),
		"The number of messages a consumer group is lagging behind across all partitions in a topic",
		[]string{"group_id", "topic_name"},
		nil,
	)
	e.consumerGroupTopicOffsetSum = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_topic_offset_sum"),
		"The sum of all committed group offsets across all partitions in a topic",
		[]string{"group_id", "topic_name"},
		nil,
	)
	e.offsetCommits = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "kafka", "consumer_group_offset_commits_total"),
		"The number of offsets committed by a group",
		[]string{"group_id"},
		nil,
	)

	// Simulation metrics
	e.brokerUp = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "sim", "broker_up"),
		"Reports 1 while the simulated broker is up, 0 during an outage",
		[]string{"broker_id"},
		nil,
	)
	e.brokerHostedPartitions = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "sim", "broker_hosted_partitions"),
		"The number of partitions that name the broker as a replica",
		[]string{"broker_id"},
		nil,
	)
	e.partitionsOffline = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "sim", "partitions_offline"),
		"The number of partitions that currently have no leader",
		nil,
		nil,
	)
	e.recordsProduced = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "sim", "records_produced_total"),
		"The number of records appended to the simulated cluster since startup",
		nil,
		nil,
	)
	e.topicRecordsProduced = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "sim", "topic_records_produced_total"),
		"The number of records appended to a given topic since startup",
		[]string{"topic_name"},
		nil,
	)
	e.offsetCommitsApplied = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "sim", "offset_commits_applied_total"),
		"The number of committed-offset advances applied since startup",
		nil,
		nil,
	)
	e.commandsApplied = prometheus.NewDesc(
		prometheus.BuildFQName(e.cfg.Namespace, "sim", "commands_applied_total"),
		"The number of engine commands applied since startup",
		nil,
		nil,
	)
}

// Describe implements the prometheus.Collector interface. It sends the
// super-set of all possible descriptors of metrics collected by this
// Collector to the provided channel and returns once the last descriptor
// has been sent. The sent descriptors fulfill the consistency and uniqueness
// requirements described in the Desc documentation.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.exporterUp
	ch <- e.clusterInfo
	ch <- e.brokerInfo
	ch <- e.topicInfo
	ch <- e.partitionLowWaterMark
	ch <- e.topicLowWaterMarkSum
	ch <- e.partitionHighWaterMark
	ch <- e.topicHighWaterMarkSum
	ch <- e.consumerGroupInfo
	ch <- e.consumerGroupMembers
	ch <- e.consumerGroupMembersEmpty
	ch <- e.consumerGroupTopicMembers
	ch <- e.consumerGroupAssignedTopicPartitions
	ch <- e.consumerGroupTopicPartitionLag
	ch <- e.consumerGroupTopicLag
	ch <- e.consumerGroupTopicOffsetSum
	ch <- e.offsetCommits
	ch <- e.brokerUp
	ch <- e.brokerHostedPartitions
	ch <- e.partitionsOffline
	ch <- e.recordsProduced
	ch <- e.topicRecordsProduced
	ch <- e.offsetCommitsApplied
	ch <- e.commandsApplied
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	// All cached view accessors within this scrape share one request ID, so
	// the cluster is rendered from a single consistent snapshot per view.
	ctx = context.WithValue(ctx, "requestId", uuid.New().String())

	ok := e.collectClusterInfo(ctx, ch)
	ok = e.collectBrokerInfo(ctx, ch) && ok
	ok = e.collectTopicInfo(ctx, ch) && ok
	ok = e.collectTopicPartitionOffsets(ctx, ch) && ok
	ok = e.collectConsumerGroups(ctx, ch) && ok
	ok = e.collectConsumerGroupLags(ctx, ch) && ok
	ok = e.collectSimulationState(ctx, ch) && ok

	if ok {
		ch <- prometheus.MustNewConstMetric(e.exporterUp, prometheus.GaugeValue, 1.0)
	} else {
		ch <- prometheus.MustNewConstMetric(e.exporterUp, prometheus.GaugeValue, 0.0)
	}
}
