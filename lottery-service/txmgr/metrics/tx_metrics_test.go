package metrics

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/metrics"
)

func TestTxConfirmedRecordsFee(t *testing.T) {
	m := MakeTxMetrics("lottery", metrics.With(metrics.NewRegistry()))
	m.TxConfirmed(&types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(2 * params.GWei),
	})
	require.Equal(t, float64(42000), testutil.ToFloat64(m.TxL1GasFee))
	require.Equal(t, float64(1), testutil.ToFloat64(m.confirmEvent.Total.WithLabelValues("success")))
}

func TestTxPublishedSplitsErrors(t *testing.T) {
	m := MakeTxMetrics("lottery", metrics.With(metrics.NewRegistry()))
	m.TxPublished("")
	m.TxPublished("nonce_to_low")
	m.TxPublished("nonce_to_low")
	require.Equal(t, float64(1), testutil.ToFloat64(m.publishEvent.Total))
	require.Equal(t, float64(2), testutil.ToFloat64(m.txPublishError.WithLabelValues("nonce_to_low")))
}
