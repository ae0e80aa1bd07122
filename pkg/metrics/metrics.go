package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records realtime handshake authentication results by outcome.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_auth_attempts_total",
			Help: "Total number of realtime authentication attempts",
		},
		[]string{"result"},
	)

	// RealtimeConnections tracks open websocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhall_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// RealtimeEvents counts client events by type and outcome (ok|invalid|error).
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_realtime_events_total",
			Help: "Client events processed by the realtime gateway",
		},
		[]string{"event", "result"},
	)

	// RealtimeDropped counts connections closed because their send buffer was full.
	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhall_realtime_dropped_connections_total",
			Help: "Connections dropped due to backpressure",
		},
	)

	// StudySessionsStarted counts sessions started through the bot.
	StudySessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhall_study_sessions_started_total",
			Help: "Study sessions started",
		},
	)

	// StudySessionsEnded counts ended sessions by reason (manual|auto).
	StudySessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_study_sessions_ended_total",
			Help: "Study sessions ended",
		},
		[]string{"reason"},
	)

	// StudyRecordWrites counts study record writes by termination reason and result (ok|error).
	StudyRecordWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_study_record_writes_total",
			Help: "Study record persistence attempts",
		},
		[]string{"reason", "result"},
	)

	// ActiveStudySessions reports sessions currently tracked by the engine.
	ActiveStudySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhall_active_study_sessions",
			Help: "Number of active study sessions",
		},
	)

	// CallParticipants reports users currently connected to calls.
	CallParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhall_call_participants",
			Help: "Number of users currently in video calls",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyhall_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
