package mangashark

import "github.com/prometheus/client_golang/prometheus"

var FlushCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mangashark",
	Subsystem: "progress",
	Name:      "flushes",
}, []string{"result"})

var RemoteSyncCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mangashark",
	Subsystem: "progress",
	Name:      "remote_syncs",
}, []string{"result"})

var ExternalUpdateCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mangashark",
	Subsystem: "progress",
	Name:      "external_updates",
}, []string{"result"})

var PendingUpdates = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "mangashark",
	Subsystem: "progress",
	Name:      "pending_updates",
})

var WindowTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mangashark",
	Subsystem: "window",
	Name:      "transitions",
}, []string{"from", "to"})

var WindowLoadedSections = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "mangashark",
	Subsystem: "window",
	Name:      "loaded_sections",
})

var WindowReloadFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "mangashark",
	Subsystem: "window",
	Name:      "reload_failures",
})
