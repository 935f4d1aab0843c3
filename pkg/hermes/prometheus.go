package hermes

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics on a prometheus.Registerer. Vectors
// are created on first use; the label keys of that first call fix the
// vector's label set.
type PrometheusMetrics struct {
	reg        prometheus.Registerer
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	mu         sync.Mutex
}

// NewPrometheusMetrics registers vectors on reg, or on the default
// registerer when reg is nil.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

func splitLabels(labels []Label) ([]string, []string) {
	keys := make([]string, len(labels))
	values := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = l.Key
		values[i] = l.Value
	}
	return keys, values
}

// vector returns the cached vector for name, creating and registering it
// with newVec on first use.
func vector[V prometheus.Collector](m *PrometheusMetrics, cache map[string]V, name string, keys []string, newVec func([]string) V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vec, ok := cache[name]; ok {
		return vec
	}
	vec := newVec(keys)
	if err := m.reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(V); ok {
				vec = existing
			}
		}
	}
	cache[name] = vec
	return vec
}

func (m *PrometheusMetrics) IncCounter(name string, value float64, labels ...Label) {
	keys, values := splitLabels(labels)
	vec := vector(m, m.counters, name, keys, func(k []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, k)
	})
	vec.WithLabelValues(values...).Add(value)
}

func (m *PrometheusMetrics) ObserveHistogram(name string, value float64, labels ...Label) {
	keys, values := splitLabels(labels)
	vec := vector(m, m.histograms, name, keys, func(k []string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name}, k)
	})
	vec.WithLabelValues(values...).Observe(value)
}

func (m *PrometheusMetrics) SetGauge(name string, value float64, labels ...Label) {
	keys, values := splitLabels(labels)
	vec := vector(m, m.gauges, name, keys, func(k []string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, k)
	})
	vec.WithLabelValues(values...).Set(value)
}
