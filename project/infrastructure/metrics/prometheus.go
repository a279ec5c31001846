package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder は service.MetricsPort の Prometheus 実装です
type Recorder struct {
	registry  *prometheus.Registry
	events    *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

// NewRecorder は専用レジストリにカウンターを登録した Recorder を作成します
func NewRecorder(serviceName string) *Recorder {
	// Prometheus のメトリクス名ではハイフンを使えない
	prefix := strings.ReplaceAll(serviceName, "-", "_")

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_events_total",
				Help: "Total number of handled platform events",
			},
			[]string{"kind", "outcome"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_mutations_total",
				Help: "Total number of pin/unpin decisions",
			},
			[]string{"action", "outcome"},
		),
	}

	r.registry.MustRegister(r.events, r.mutations)
	return r
}

// ObserveEvent はイベント1件の処理結果を数えます
func (r *Recorder) ObserveEvent(kind, outcome string) {
	r.events.WithLabelValues(kind, outcome).Inc()
}

// ObserveMutation はピン操作1回の結果を数えます
func (r *Recorder) ObserveMutation(action, outcome string) {
	r.mutations.WithLabelValues(action, outcome).Inc()
}

// Handler は /metrics 用の HTTP ハンドラーを返します
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
