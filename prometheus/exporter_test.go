package prometheus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/sim"
)

// newTestExporter wires an exporter to a freshly built simulation running the
// default scenario with a fixed seed.
func newTestExporter(t *testing.T, mutate func(*Config)) (*Exporter, *sim.Service) {
	t.Helper()

	simCfg := sim.Config{}
	simCfg.SetDefaults()
	simCfg.Seed = 42
	simSvc, err := sim.NewService(simCfg, zap.NewNop())
	require.NoError(t, err)

	cfg := Config{}
	cfg.SetDefaults()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewExporter(cfg, zap.NewNop(), simSvc)
	require.NoError(t, err)
	e.InitializeMetrics()
	return e, simSvc
}

type sample struct {
	value  float64
	labels map[string]string
}

// scrape runs one collect cycle and indexes every emitted sample by its fully
// qualified metric name.
func scrape(t *testing.T, e *Exporter) map[string][]sample {
	t.Helper()

	ch := make(chan prometheus.Metric, 1024)
	e.Collect(ch)
	close(ch)

	samples := make(map[string][]sample)
	for metric := range ch {
		var m dto.Metric
		require.NoError(t, metric.Write(&m))

		labels := make(map[string]string, len(m.Label))
		for _, l := range m.Label {
			labels[l.GetName()] = l.GetValue()
		}
		value := 0.0
		switch {
		case m.Gauge != nil:
			value = m.Gauge.GetValue()
		case m.Counter != nil:
			value = m.Counter.GetValue()
		}

		name := fqName(metric.Desc().String())
		samples[name] = append(samples[name], sample{value: value, labels: labels})
	}
	return samples
}

// fqName digs the fully qualified metric name out of a Desc's string form.
func fqName(desc string) string {
	const marker = `fqName: "`
	start := strings.Index(desc, marker)
	if start == -1 {
		return desc
	}
	start += len(marker)
	end := strings.Index(desc[start:], `"`)
	return desc[start : start+end]
}

// find returns the single sample whose labels are a superset of want.
func find(t *testing.T, samples []sample, want map[string]string) sample {
	t.Helper()

	var matches []sample
	for _, s := range samples {
		matched := true
		for k, v := range want {
			if s.labels[k] != v {
				matched = false
				break
			}
		}
		if matched {
			matches = append(matches, s)
		}
	}
	require.Len(t, matches, 1, "expected exactly one sample with labels %v", want)
	return matches[0]
}

func TestCollectHealthyCluster(t *testing.T) {
	e, _ := newTestExporter(t, nil)
	samples := scrape(t, e)

	up := samples["ksim_exporter_up"]
	require.Len(t, up, 1)
	assert.Equal(t, 1.0, up[0].value)

	info := find(t, samples["ksim_kafka_cluster_info"], nil)
	assert.Equal(t, "3", info.labels["broker_count"])
	assert.Equal(t, "0", info.labels["controller_id"])
	assert.Equal(t, "ksim", info.labels["cluster_id"])

	assert.Len(t, samples["ksim_kafka_broker_info"], 3)
	controller := find(t, samples["ksim_kafka_broker_info"], map[string]string{"broker_id": "0"})
	assert.Equal(t, "true", controller.labels["is_controller"])
	assert.Equal(t, "b0", controller.labels["address"])

	assert.Len(t, samples["ksim_kafka_topic_info"], 3)
	orders := find(t, samples["ksim_kafka_topic_info"], map[string]string{"topic_name": "orders"})
	assert.Equal(t, "6", orders.labels["partition_count"])
	assert.Equal(t, "2", orders.labels["replication_factor"])

	// 6+3+1 partitions, each with a low and a high water mark.
	assert.Len(t, samples["ksim_kafka_topic_partition_high_water_mark"], 10)
	assert.Len(t, samples["ksim_kafka_topic_low_water_mark_sum"], 3)

	groupInfo := find(t, samples["ksim_kafka_consumer_group_info"], map[string]string{"group_id": "group-1"})
	assert.Equal(t, 1.0, groupInfo.value)
	assert.Equal(t, "Stable", groupInfo.labels["state"])
	assert.Equal(t, "roundrobin", groupInfo.labels["protocol"])

	members := find(t, samples["ksim_kafka_consumer_group_members"], map[string]string{"group_id": "group-1"})
	assert.Equal(t, 2.0, members.value)

	// All three topics have partitions assigned to the group.
	assert.Len(t, samples["ksim_kafka_consumer_group_assigned_topic_partitions"], 3)
	assigned := find(t, samples["ksim_kafka_consumer_group_assigned_topic_partitions"], map[string]string{"topic_name": "orders"})
	assert.Equal(t, 6.0, assigned.value)

	assert.Len(t, samples["ksim_sim_broker_up"], 3)
	hosted := find(t, samples["ksim_sim_broker_hosted_partitions"], map[string]string{"broker_id": "1"})
	assert.Equal(t, 7.0, hosted.value)

	commands := samples["ksim_sim_commands_applied_total"]
	require.Len(t, commands, 1)
	assert.Equal(t, 0.0, commands[0].value)
}

func TestCollectDegradedCluster(t *testing.T) {
	e, simSvc := newTestExporter(t, nil)
	simSvc.SetBrokerUp(0, false)

	samples := scrape(t, e)

	// The failed broker vanishes from the metadata-driven info metric but
	// stays visible through the simulation gauge.
	assert.Len(t, samples["ksim_kafka_broker_info"], 2)
	down := find(t, samples["ksim_sim_broker_up"], map[string]string{"broker_id": "0"})
	assert.Equal(t, 0.0, down.value)

	offline := samples["ksim_sim_partitions_offline"]
	require.Len(t, offline, 1)
	assert.Equal(t, 1.0, offline[0].value)

	// inventory's only partition is leaderless: its watermarks cannot be
	// served, so the topic sum disappears and the scrape reports degraded.
	for _, s := range samples["ksim_kafka_topic_high_water_mark_sum"] {
		assert.NotEqual(t, "inventory", s.labels["topic_name"])
	}
	up := samples["ksim_exporter_up"]
	require.Len(t, up, 1)
	assert.Equal(t, 0.0, up[0].value)
}

func TestCollectConsumerGroupLags(t *testing.T) {
	e, simSvc := newTestExporter(t, nil)

	for i := 0; i < 5; i++ {
		_, _, ok := simSvc.Produce("inventory", "k")
		require.True(t, ok)
	}
	for i := 0; i < 3; i++ {
		simSvc.ConsumeStep("group-1")
	}

	samples := scrape(t, e)

	lag := find(t, samples["ksim_kafka_consumer_group_topic_partition_lag"],
		map[string]string{"group_id": "group-1", "topic_name": "inventory", "partition_id": "0"})
	assert.Equal(t, 2.0, lag.value)

	topicLag := find(t, samples["ksim_kafka_consumer_group_topic_lag"],
		map[string]string{"group_id": "group-1", "topic_name": "inventory"})
	assert.Equal(t, 2.0, topicLag.value)

	offsetSum := find(t, samples["ksim_kafka_consumer_group_topic_offset_sum"],
		map[string]string{"group_id": "group-1", "topic_name": "inventory"})
	assert.Equal(t, 3.0, offsetSum.value)

	commits := find(t, samples["ksim_kafka_consumer_group_offset_commits_total"],
		map[string]string{"group_id": "group-1"})
	assert.Equal(t, 3.0, commits.value)

	produced := samples["ksim_sim_records_produced_total"]
	require.Len(t, produced, 1)
	assert.Equal(t, 5.0, produced[0].value)
	byTopic := find(t, samples["ksim_sim_topic_records_produced_total"], map[string]string{"topic_name": "inventory"})
	assert.Equal(t, 5.0, byTopic.value)
}

func TestCollectTopicGranularityHidesPartitionMetrics(t *testing.T) {
	e, simSvc := newTestExporter(t, func(cfg *Config) {
		cfg.Granularity = GranularityTopic
	})

	_, _, ok := simSvc.Produce("inventory", "k")
	require.True(t, ok)
	simSvc.ConsumeStep("group-1")

	samples := scrape(t, e)

	assert.Empty(t, samples["ksim_kafka_topic_partition_high_water_mark"])
	assert.Empty(t, samples["ksim_kafka_topic_partition_low_water_mark"])
	assert.Empty(t, samples["ksim_kafka_consumer_group_topic_partition_lag"])

	// Topic level aggregates remain.
	assert.Len(t, samples["ksim_kafka_topic_high_water_mark_sum"], 3)
	assert.NotEmpty(t, samples["ksim_kafka_consumer_group_topic_lag"])
}

func TestCollectStaleGroupOffsetsAfterTopicRemoval(t *testing.T) {
	e, simSvc := newTestExporter(t, nil)

	for i := 0; i < 3; i++ {
		_, _, ok := simSvc.Produce("inventory", "k")
		require.True(t, ok)
		simSvc.ConsumeStep("group-1")
	}
	simSvc.RemoveTopic("inventory")

	samples := scrape(t, e)

	// The group still reports commits on the vanished topic, but without
	// watermarks no partition lag can be computed and the topic aggregate
	// stays at zero.
	for _, s := range samples["ksim_kafka_consumer_group_topic_partition_lag"] {
		assert.NotEqual(t, "inventory", s.labels["topic_name"])
	}
	topicLag := find(t, samples["ksim_kafka_consumer_group_topic_lag"],
		map[string]string{"group_id": "group-1", "topic_name": "inventory"})
	assert.Equal(t, 0.0, topicLag.value)

	up := samples["ksim_exporter_up"]
	require.Len(t, up, 1)
	assert.Equal(t, 0.0, up[0].value)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Granularity = "broker"
	require.Error(t, cfg.Validate())

	cfg.Granularity = GranularityTopic
	cfg.Port = -1
	require.Error(t, cfg.Validate())
}
