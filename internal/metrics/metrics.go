package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream lifecycle
	StreamsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinistream_streams_started_total",
			Help: "Total number of streams started",
		},
	)

	StreamsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinistream_streams_terminated_total",
			Help: "Total number of streams terminated",
		},
		[]string{"status"},
	)

	EventsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinistream_events_appended_total",
			Help: "Total number of events appended to streams",
		},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinistream_ingest_errors_total",
			Help: "Total number of rejected ingest events",
		},
		[]string{"adapter"},
	)

	// Consumer connections
	ConsumersConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tinistream_consumers_connected",
			Help: "Number of currently connected stream consumers",
		},
		[]string{"transport"},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinistream_frames_sent_total",
			Help: "Total number of frames sent to consumers",
		},
		[]string{"transport"},
	)

	// Exclusive connection pool
	ExclusiveConnsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tinistream_exclusive_conns_in_use",
			Help: "Number of exclusive Redis connections currently checked out",
		},
	)

	PoolAcquireTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinistream_pool_acquire_timeouts_total",
			Help: "Total number of exclusive pool acquisitions that timed out",
		},
	)
)
