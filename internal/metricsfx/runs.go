package metricsfx

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/http/handler"
)

func LatestRunMetricHandler(logger *logrus.Logger, repository handler.RunRepository) *handler.RunMetricHandler {
	return handler.NewRunMetricHandler(logger, repository)
}

func RegisterLatestRunMetricHandler(router *mux.Router, h *handler.RunMetricHandler) {
	router.Handle("/metrics/runs", h).Methods("GET")
}

func PrometheusRegistry(logger *logrus.Logger, repository handler.RunRepository) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()

	err := registry.Register(handler.NewRunCollector(logger, repository))
	if err != nil {
		return nil, err
	}

	err = registry.Register(collectors.NewGoCollector())
	if err != nil {
		return nil, err
	}

	return registry, nil
}

func RegisterPrometheusHandler(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
}
