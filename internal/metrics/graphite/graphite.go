// Package graphite periodically pushes Prometheus metrics to Graphite in
// plaintext protocol.
package graphite

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/FZambia/eagle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var nonASCII = regexp.MustCompile("[[:^ascii:]]")

// PreparePathComponent cleans string to be used as Graphite metric path.
func PreparePathComponent(s string) string {
	s = nonASCII.ReplaceAllLiteralString(s, "_")
	return strings.ReplaceAll(s, ".", "_")
}

// Config of Exporter.
type Config struct {
	Address  string
	Gatherer prometheus.Gatherer
	Interval time.Duration
	Prefix   string
	// Tags uses Graphite tags for labels instead of path components.
	Tags bool
}

// Exporter to Graphite.
type Exporter struct {
	config Config
	sink   chan eagle.Metrics
	eagle  *eagle.Eagle
	now    func() time.Time
}

func New(c Config) *Exporter {
	e := &Exporter{
		config: c,
		sink:   make(chan eagle.Metrics),
		now:    time.Now,
	}
	e.eagle = eagle.New(eagle.Config{
		Gatherer: c.Gatherer,
		Interval: c.Interval,
		Sink:     e.sink,
	})
	return e
}

// Run exports metrics until context is done.
func (e *Exporter) Run(ctx context.Context) error {
	defer func() { _ = e.eagle.Close() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case metrics := <-e.sink:
			if err := e.export(metrics); err != nil {
				log.Warn().Err(err).Str("address", e.config.Address).Msg("error exporting metrics to Graphite")
			}
		}
	}
}

func (e *Exporter) export(metrics eagle.Metrics) error {
	conn, err := net.DialTimeout("tcp", e.config.Address, time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetWriteDeadline(e.now().Add(5 * time.Second))
	w := bufio.NewWriter(conn)
	if err := e.write(w, metrics); err != nil {
		return err
	}
	return w.Flush()
}

func (e *Exporter) key(path []string, labels []string) string {
	parts := make([]string, 0, len(path)+len(labels)+1)
	if e.config.Prefix != "" {
		parts = append(parts, e.config.Prefix)
	}
	for _, p := range path {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if !e.config.Tags {
		for _, l := range labels {
			parts = append(parts, PreparePathComponent(l))
		}
		return strings.Join(parts, ".")
	}
	key := strings.Join(parts, ".")
	for i := 0; i+1 < len(labels); i += 2 {
		key += ";" + labels[i] + "=" + labels[i+1]
	}
	return key
}

func (e *Exporter) write(w io.Writer, metrics eagle.Metrics) error {
	now := e.now().Unix()
	for _, item := range metrics.Items {
		for _, v := range item.Values {
			key := e.key([]string{item.Namespace, item.Subsystem, item.Name, v.Name}, v.Labels)
			var err error
			if item.Type == eagle.MetricTypeCounter {
				_, err = fmt.Fprintf(w, "%s %d %d\n", key, int64(v.Value), now)
			} else {
				_, err = fmt.Fprintf(w, "%s %f %d\n", key, v.Value, now)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
