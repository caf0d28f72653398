package metrics

import (
	"time"
)

// IncAPIError increments the API error counter.
func IncAPIError(protocol string, method string, code string) {
	APICommandErrorsTotal.WithLabelValues(protocol, method, code).Inc()
}

// ObserveAPICommand observes the duration of an API command.
func ObserveAPICommand(started time.Time, protocol string, method string) {
	duration := time.Since(started).Seconds()
	APICommandDurationSummary.WithLabelValues(protocol, method).Observe(duration)
	APICommandDurationHistogram.WithLabelValues(protocol, method).Observe(duration)
}

// ObservePersist observes store call duration and counts its errors.
func ObservePersist(started time.Time, store string, err error) {
	StorePersistDuration.WithLabelValues(store).Observe(time.Since(started).Seconds())
	if err != nil {
		StorePersistErrors.WithLabelValues(store).Inc()
	}
}
