package metrics

import (
	"time"

	txmetrics "github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr/metrics"
)

type noopMetrics struct {
	txmetrics.NoopTxMetrics
}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordInfo(version string) {}
func (*noopMetrics) RecordUp()                 {}

func (*noopMetrics) RecordDeployment(string)            {}
func (*noopMetrics) RecordEntry(string)                 {}
func (*noopMetrics) RecordLotteryEnded(string)          {}
func (*noopMetrics) RecordWinner(string, time.Duration) {}
