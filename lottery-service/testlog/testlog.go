// Package testlog provides a log handler for unit tests.
package testlog

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

// Logger returns a logger which logs to the unit test log of t.
func Logger(t testing.TB, level log.Lvl) log.Logger {
	l := &logger{t: t}
	h := log.LvlFilterHandler(level, log.FuncHandler(l.write))
	lg := log.New()
	lg.SetHandler(h)
	return lg
}

type logger struct {
	t  testing.TB
	mu sync.Mutex
}

func (l *logger) write(r *log.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.t.Helper()
	l.t.Logf("%s", log.TerminalFormat(false).Format(r))
	return nil
}
