package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/credwatch/internal/metrics"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", metrics.Result(nil))
	assert.Equal(t, "error", metrics.Result(errors.New("boom")))
}

func TestObserveDuration(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_duration_seconds"})
	metrics.ObserveDuration(h, time.Now().Add(-time.Second))

	assert.Equal(t, 1, testutil.CollectAndCount(h))
}

func TestCredentialFetchFailuresCounter(t *testing.T) {
	before := testutil.ToFloat64(metrics.CredentialFetchFailures.WithLabelValues("secret"))
	metrics.CredentialFetchFailures.WithLabelValues("secret").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CredentialFetchFailures.WithLabelValues("secret")))
}
