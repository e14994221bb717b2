package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OWMAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raincast_owm_api_calls_total",
			Help: "Total OpenWeatherMap API calls",
		},
		[]string{"endpoint", "status"},
	)

	OWMAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raincast_owm_api_latency_seconds",
			Help:    "OpenWeatherMap API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	HistoryRowsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raincast_history_rows_loaded",
			Help: "Rows kept by the most recent historical table load",
		},
	)

	HistoryRowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raincast_history_rows_dropped_total",
			Help: "Historical rows dropped during cleaning",
		},
		[]string{"reason"},
	)

	RainModelHoldoutMSE = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raincast_rain_model_holdout_mse",
			Help: "Mean squared error of the most recent rain classifier on its held-out split",
		},
	)

	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raincast_training_duration_seconds",
			Help:    "Model training time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	ForecastRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raincast_forecast_runs_total",
			Help: "Forecast runs by result",
		},
		[]string{"result"},
	)
)
