/*
 * @module service/monitoring/metrics
 * @description 业务指标采集，导入、查询、事件推送等关键路径的 Prometheus 指标
 * @architecture 监控层 - 指标注册与记录
 * @documentReference dev_docs/monitoring.md
 * @stateFlow 业务调用 -> 指标累加 -> /metrics 抓取
 * @rules 指标在进程内只注册一次，标签取值保持有限集合
 * @dependencies github.com/prometheus/client_golang/prometheus
 * @refs main.go, service/importer, service/query, service/event
 */

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// importRows 导入行数，status: accepted / rejected
	importRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvsdm_import_rows_total",
			Help: "Rows read from uploaded workbooks, partitioned by validation status.",
		},
		[]string{"status"},
	)

	// parseFailures 文件解析失败次数
	parseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pvsdm_import_parse_failures_total",
			Help: "Uploads that could not be decoded as a workbook.",
		},
	)

	// chunkInserts 分块写入次数，status: success / failure
	chunkInserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvsdm_import_chunks_total",
			Help: "Chunk insert calls issued by the batch importer.",
		},
		[]string{"status"},
	)

	// recordsImported 成功写入的记录数
	recordsImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pvsdm_import_records_total",
			Help: "Test records committed by batch imports.",
		},
	)

	// queryDuration 查询耗时
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pvsdm_query_duration_seconds",
			Help:    "Duration of record queries and statistics aggregation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// queryFailures 查询失败次数
	queryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvsdm_query_failures_total",
			Help: "Storage calls that returned a failure.",
		},
		[]string{"operation"},
	)

	// changeEvents 发布的数据变更事件
	changeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvsdm_change_events_total",
			Help: "Change events published to subscribers, partitioned by table and type.",
		},
		[]string{"table", "type"},
	)

	// warmupRuns 统计缓存预热次数，status: success / failure / skipped
	warmupRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvsdm_stats_warmup_runs_total",
			Help: "Scheduled statistics cache warm-up runs.",
		},
		[]string{"status"},
	)

	// sseConnections 当前SSE连接数
	sseConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pvsdm_sse_connections",
			Help: "Active server-sent event connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		importRows,
		parseFailures,
		chunkInserts,
		recordsImported,
		queryDuration,
		queryFailures,
		changeEvents,
		warmupRuns,
		sseConnections,
	)
}

// RecordParsedRows 记录解析结果行数
func RecordParsedRows(accepted, rejected int) {
	importRows.WithLabelValues("accepted").Add(float64(accepted))
	importRows.WithLabelValues("rejected").Add(float64(rejected))
}

// RecordParseFailure 记录文件解析失败
func RecordParseFailure() {
	parseFailures.Inc()
}

// RecordChunk 记录一次分块写入
func RecordChunk(size int, err error) {
	if err != nil {
		chunkInserts.WithLabelValues("failure").Inc()
		return
	}
	chunkInserts.WithLabelValues("success").Inc()
	recordsImported.Add(float64(size))
}

// ObserveQuery 记录查询耗时与失败
func ObserveQuery(operation string, start time.Time, err error) {
	queryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		queryFailures.WithLabelValues(operation).Inc()
	}
}

// RecordChangeEvent 记录变更事件
func RecordChangeEvent(table, eventType string) {
	changeEvents.WithLabelValues(table, eventType).Inc()
}

// SSEConnected SSE连接建立
func SSEConnected() {
	sseConnections.Inc()
}

// SSEDisconnected SSE连接断开
func SSEDisconnected() {
	sseConnections.Dec()
}

// RecordWarmup 记录一次缓存预热
func RecordWarmup(status string) {
	warmupRuns.WithLabelValues(status).Inc()
}
