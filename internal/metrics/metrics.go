package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicebot",
		Name:      "completions_total",
		Help:      "Voice submissions by outcome (accepted, already_completed, not_found, no_pending, error).",
	}, []string{"result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicebot",
		Name:      "notifications_total",
		Help:      "Progress reminders by outcome (sent, failed).",
	}, []string{"result"})

	ItemsImported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voicebot",
		Name:      "items_imported_total",
		Help:      "Sentences added through bulk import.",
	})

	NotifyTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voicebot",
		Name:      "notify_tick_seconds",
		Help:      "Duration of notification ticks.",
		Buckets:   prometheus.DefBuckets,
	})
)
