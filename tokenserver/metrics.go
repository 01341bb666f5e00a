// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package tokenserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics of the token service. Each server owns
// its registry so tests can run servers side by side.
type Metrics struct {
	Registry *prometheus.Registry

	TokensIssued    prometheus.Counter
	RequestDuration prometheus.Histogram
	Requests        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		TokensIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "tokensrv_tokens_issued_total",
			Help: "Total number of access tokens issued",
		}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokensrv_request_duration_seconds",
			Help:    "Token request handling duration",
			Buckets: prometheus.DefBuckets,
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokensrv_requests_total",
			Help: "Total HTTP requests by method and status",
		}, []string{"method", "status"}),
	}
}
