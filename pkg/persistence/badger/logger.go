package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// zapBadgerLogger routes badger's internal printf-style logging through zap.
type zapBadgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badgerdb.Logger = (*zapBadgerLogger)(nil)

func newBadgerLogger(l *zap.Logger) *zapBadgerLogger {
	return &zapBadgerLogger{sugar: l.Named("badger").Sugar()}
}

func (z *zapBadgerLogger) Errorf(format string, args ...interface{}) {
	z.sugar.Error(trimNewline(fmt.Sprintf(format, args...)))
}

func (z *zapBadgerLogger) Warningf(format string, args ...interface{}) {
	z.sugar.Warn(trimNewline(fmt.Sprintf(format, args...)))
}

func (z *zapBadgerLogger) Infof(format string, args ...interface{}) {
	z.sugar.Info(trimNewline(fmt.Sprintf(format, args...)))
}

// Debugf is noisy during compaction; it only shows with a debug-level logger.
func (z *zapBadgerLogger) Debugf(format string, args ...interface{}) {
	z.sugar.Debug(trimNewline(fmt.Sprintf(format, args...)))
}

// badger terminates most of its messages with a newline.
func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}
