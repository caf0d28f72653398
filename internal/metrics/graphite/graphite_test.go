package graphite

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPreparePathComponent(t *testing.T) {
	testCases := []struct {
		in, out string
	}{
		{in: "hub", out: "hub"},
		{in: "hub.local", out: "hub_local"},
		{in: "hub.prod.", out: "hub_prod_"},
		{in: "приvет", out: "___v__"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.out, PreparePathComponent(tc.in))
	}
}

func TestKey(t *testing.T) {
	e := &Exporter{config: Config{Prefix: "chathub"}}
	require.Equal(t, "chathub.hub.disconnects.reason.slow", e.key([]string{"hub", "", "disconnects"}, []string{"reason", "slow"}))
	require.Equal(t, "chathub.node.local", e.key([]string{"node"}, []string{"local"}))

	e.config.Tags = true
	require.Equal(t, "chathub.hub.disconnects;reason=slow", e.key([]string{"hub", "", "disconnects"}, []string{"reason", "slow"}))
}

func TestRunExports(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "test", Name: "published_total"})
	registry.MustRegister(counter)
	counter.Add(3)

	e := New(Config{
		Address:  ln.Addr().String(),
		Gatherer: registry,
		Interval: 20 * time.Millisecond,
		Prefix:   "chathub",
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	conn, err := ln.Accept()
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	_ = conn.Close()

	require.True(t, strings.HasPrefix(line, "chathub."), line)
	require.Contains(t, line, "published_total 3 ")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("exporter did not stop")
	}
}
