package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tuimessenger",
		Name:      "relay_connections_active",
		Help:      "Number of open client websocket connections.",
	})
	metricMessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuimessenger",
		Name:      "relay_messages_total",
		Help:      "Chat messages broadcast by the relay.",
	})
	metricMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuimessenger",
		Name:      "relay_messages_dropped_total",
		Help:      "Inbound or outbound messages dropped by the relay.",
	}, []string{"reason"})
)

const (
	dropRateLimited  = "rate_limited"
	dropSlowConsumer = "slow_consumer"
)
