package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestEventsByVariant(t *testing.T) {
	m := NewMetrics("test")
	m.RecordDeployment(VariantVRF)
	m.RecordDeployment(VariantNFT)
	m.RecordDeployment(VariantVRF)
	m.RecordEntry(VariantNFT)
	m.RecordWinner(VariantVRF, 3*time.Second)

	require.Equal(t, 2.0, testutil.ToFloat64(m.deployments.Total.WithLabelValues(VariantVRF)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.deployments.Total.WithLabelValues(VariantNFT)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.entries.Total.WithLabelValues(VariantNFT)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.winners.Total.WithLabelValues(VariantVRF)))
	require.Equal(t, 0.0, testutil.ToFloat64(m.ends.Total.WithLabelValues(VariantVRF)))
}

func TestUpAndInfo(t *testing.T) {
	m := NewMetrics("")
	require.Equal(t, "lottery_default", m.ns)
	m.RecordInfo("v0.1.0")
	m.RecordUp()
	require.Equal(t, 1.0, testutil.ToFloat64(m.up))
	require.Equal(t, 1.0, testutil.ToFloat64(m.info.WithLabelValues("v0.1.0")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNoopSatisfiesMetricer(t *testing.T) {
	NoopMetrics.RecordDeployment(VariantVRF)
	NoopMetrics.RecordWinner(VariantNFT, time.Minute)
	NoopMetrics.TxPublished("")
}
