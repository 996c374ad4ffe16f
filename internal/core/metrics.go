package eradio

import (
	"github.com/prometheus/client_golang/prometheus"
	promversion "github.com/prometheus/common/version"
	"github.com/toksikk/eradio/internal/radio"
)

const metricsNamespace = "eradio"

var (
	statusFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "status_fetch_total",
		Help:      "Station status lookups by outcome.",
	}, []string{"outcome"})

	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "commands_total",
		Help:      "Chat commands handled.",
	}, []string{"command"})

	activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_streams",
		Help:      "Guilds currently streaming a station.",
	})
)

func init() {
	promversion.Version = appVersion()
	promversion.BuildDate = builddate
	prometheus.MustRegister(statusFetches, commandsTotal, activeStreams, promversion.NewCollector(metricsNamespace))
}

func observeFetch(err error) {
	outcome := "ok"
	if err != nil {
		outcome = radio.KindOf(err).String()
	}
	statusFetches.WithLabelValues(outcome).Inc()
}
