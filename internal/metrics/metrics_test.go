package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	require.NoError(t, Init(Config{
		Namespace:   "test",
		ConstLabels: map[string]string{"env": "test"},
		Registerer:  registry,
	}))
	HubSlowClients.Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(HubSlowClients))

	families, err := registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "test_hub_slow_clients_total" {
			found = true
		}
	}
	require.True(t, found)

	// Repeated Init with same registerer is tolerated.
	require.NoError(t, Init(Config{Namespace: "test", ConstLabels: map[string]string{"env": "test"}, Registerer: registry}))
}
