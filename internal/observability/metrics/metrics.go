package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the slot pipeline.
type SchedulingMetrics struct {
	selectionsTotal *prometheus.CounterVec
	rulesFiredTotal *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	offsetDays      prometheus.Histogram
	snapshotFetches *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		selectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "selections_total",
			Help:      "Total slot selections by sort method and outcome",
		}, []string{"sort_method", "outcome"}),
		rulesFiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "rules_fired_total",
			Help:      "Total conflict/limit rules that removed at least one candidate",
		}, []string{"rule"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "pipeline_latency_seconds",
			Help:      "Latency of the full find-slots pipeline",
			Buckets:   prometheus.DefBuckets,
		}, []string{"vendor"}),
		offsetDays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "inter_appointment_offset_days",
			Help:      "Computed inter-appointment day offsets",
			Buckets:   []float64{0, 1, 3, 7, 14, 31, 62, 93},
		}),
		snapshotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careflow",
			Subsystem: "scheduling",
			Name:      "snapshot_fetches_total",
			Help:      "Patient snapshot loads by source (cache, vendor) and status",
		}, []string{"source", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.selectionsTotal, m.rulesFiredTotal, m.pipelineLatency, m.offsetDays, m.snapshotFetches)
	return m
}

func (m *SchedulingMetrics) ObserveSelection(sortMethod, outcome string) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(sortMethod, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveRuleFired(rule string) {
	if m == nil {
		return
	}
	m.rulesFiredTotal.WithLabelValues(rule).Inc()
}

func (m *SchedulingMetrics) ObservePipelineLatency(vendor string, seconds float64) {
	if m == nil {
		return
	}
	m.pipelineLatency.WithLabelValues(vendor).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveOffsetDays(days int) {
	if m == nil {
		return
	}
	m.offsetDays.Observe(float64(days))
}

func (m *SchedulingMetrics) ObserveSnapshotFetch(source, status string) {
	if m == nil {
		return
	}
	m.snapshotFetches.WithLabelValues(source, status).Inc()
}
