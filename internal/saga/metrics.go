package saga

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sagasStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_sagas_started_total",
		Help: "Total number of order sagas started",
	})

	sagasCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_sagas_completed_total",
		Help: "Total number of order sagas that reached a terminal phase",
	}, []string{"outcome"})

	sagasActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "order_sagas_active",
		Help: "Number of order sagas currently running",
	})

	sagaSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_saga_signals_total",
		Help: "Total number of signals accepted by running sagas",
	}, []string{"kind"})

	sagaActivityRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_saga_activity_retries_total",
		Help: "Total number of activity retry attempts after a failure",
	}, []string{"activity"})
)
