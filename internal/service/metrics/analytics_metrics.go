// Package metrics holds counters of the analytics delivery path.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketsignal",
			Subsystem: "analytics",
			Name:      "cache_lookups_total",
			Help:      "Analytics response cache lookups by result",
		},
		[]string{"result"},
	)

	PublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketsignal",
			Subsystem: "analytics",
			Name:      "publish_failures_total",
			Help:      "Signal events that could not be delivered",
		},
		[]string{"sink"},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketsignal",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected websocket clients",
		},
	)
)

const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(CacheLookups, PublishFailures, StreamClients)
	})
}
