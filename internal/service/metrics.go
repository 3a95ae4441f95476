package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_messages_appended_total",
			Help: "Messages written, by type",
		},
		[]string{"type"},
	)

	storageCleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_storage_cleanup_failures_total",
			Help: "Object deletes that failed after the message row was removed",
		},
	)

	broadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_broadcast_deliveries_total",
			Help: "Broadcast target outcomes",
		},
		[]string{"result"}, // delivered, failed
	)

	broadcastJobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_broadcast_jobs_finished_total",
			Help: "Scheduled broadcast jobs by final status",
		},
		[]string{"status"},
	)

	inspectorGrants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_inspector_grants_total",
			Help: "Inspector access grants by reason",
		},
		[]string{"reason"},
	)

	legalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_legal_transitions_total",
			Help: "Legal takedown status transitions",
		},
		[]string{"to"},
	)
)
