// Package metrics Prometheus 메트릭 수집과 공개.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 토론 플랫폼 핵심 지표 수집기
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	queueJoins      *prometheus.CounterVec
	matchesCreated  *prometheus.CounterVec
	queueExpired    prometheus.Counter
	resultsSettled  prometheus.Counter
	resultsConflict prometheus.Counter
}

// NewCollector 수집기를 만들고 레지스트리에 등록한다.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "debate_http_requests_total",
			Help: "HTTP 요청 수 (메서드/상태별)",
		}, []string{"method", "status"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "debate_http_latency_seconds",
			Help:    "HTTP 요청 처리 시간",
			Buckets: prometheus.DefBuckets,
		}),
		queueJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "debate_queue_joins_total",
			Help: "대기열 참가 수 (format/mode별)",
		}, []string{"format", "mode"}),
		matchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "debate_matches_created_total",
			Help: "생성된 세션 수 (상대 유형별)",
		}, []string{"opponent"}),
		queueExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debate_queue_expired_total",
			Help: "liveness 만료로 제거된 큐 항목 수",
		}),
		resultsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debate_results_settled_total",
			Help: "정산 완료된 세션 수",
		}),
		resultsConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debate_results_inconsistent_total",
			Help: "불일치로 정산이 보류된 제출 수",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.queueJoins,
		c.matchesCreated,
		c.queueExpired,
		c.resultsSettled,
		c.resultsConflict,
	)

	return c
}

// RecordHTTPRequest HTTP 요청 기록
func (c *Collector) RecordHTTPRequest(method string, status int, latency time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(latency.Seconds())
}

// RecordQueueJoin 대기열 참가 기록
func (c *Collector) RecordQueueJoin(format, mode string) {
	c.queueJoins.WithLabelValues(format, mode).Inc()
}

// RecordMatchCreated 세션 생성 기록
func (c *Collector) RecordMatchCreated(aiOpponent bool) {
	opponent := "human"
	if aiOpponent {
		opponent = "ai"
	}
	c.matchesCreated.WithLabelValues(opponent).Inc()
}

// RecordQueueExpired 큐 만료 기록
func (c *Collector) RecordQueueExpired(count int) {
	c.queueExpired.Add(float64(count))
}

// RecordSettlement 정산 기록
func (c *Collector) RecordSettlement() {
	c.resultsSettled.Inc()
}

// RecordInconsistentResult 불일치 제출 기록
func (c *Collector) RecordInconsistentResult() {
	c.resultsConflict.Inc()
}

// Handler Prometheus 스크레이프용 핸들러
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
