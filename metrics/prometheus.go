package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of admin HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of admin HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)
	pimRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pim_api_requests_total",
			Help: "Total number of outbound PIM API requests.",
		},
		[]string{"method", "endpoint", "result"},
	)
	pimRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pim_api_request_duration_seconds",
			Help:    "Histogram of outbound PIM API request durations.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
	importProductsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pim_import_products_total",
			Help: "Products processed by the importer, by outcome.",
		},
		[]string{"action"},
	)
	assetDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pim_asset_downloads_total",
			Help: "Asset sideload attempts, by kind and result.",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(pimRequestsTotal)
	prometheus.MustRegister(pimRequestDuration)
	prometheus.MustRegister(importProductsTotal)
	prometheus.MustRegister(assetDownloadsTotal)
}

// RecordRequest записывает метрики для HTTP-запроса.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordPIMRequest records one outbound call. endpoint should be the path template, not the full URL.
func RecordPIMRequest(method, endpoint string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	pimRequestsTotal.WithLabelValues(method, endpoint, result).Inc()
	pimRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordImportedProduct(action string) {
	importProductsTotal.WithLabelValues(action).Inc()
}

func RecordAssetDownload(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	assetDownloadsTotal.WithLabelValues(kind, result).Inc()
}

// classifyStatus классифицирует HTTP-статус код в строку.
func classifyStatus(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		return "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		return "4xx"
	} else if statusCode >= 500 && statusCode < 600 {
		return "5xx"
	}
	return "unknown"
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
