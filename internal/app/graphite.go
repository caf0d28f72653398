package app

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/windi-messenger/chathub/internal/config"
	"github.com/windi-messenger/chathub/internal/metrics/graphite"

	"github.com/prometheus/client_golang/prometheus"
)

func graphiteExporter(cfg config.Config) *graphite.Exporter {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "chathub"
	}
	return graphite.New(graphite.Config{
		Address:  net.JoinHostPort(cfg.Graphite.Host, strconv.Itoa(cfg.Graphite.Port)),
		Gatherer: prometheus.DefaultGatherer,
		Prefix:   strings.TrimSuffix(cfg.Graphite.Prefix, ".") + "." + graphite.PreparePathComponent(hostname),
		Interval: cfg.Graphite.Interval.ToDuration(),
		Tags:     cfg.Graphite.Tags,
	})
}
