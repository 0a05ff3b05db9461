// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// leveledLogger adapts a charmbracelet logger to retryablehttp.LeveledLogger.
// Retry chatter is demoted one level so a normal run stays quiet.
type leveledLogger struct {
	log *log.Logger
}

func newLeveledLogger(l *log.Logger) retryablehttp.LeveledLogger {
	return &leveledLogger{log: l.WithPrefix("http")}
}

func (l *leveledLogger) Error(msg string, keysAndValues ...any) {
	l.log.Warn(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.log.Info(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}
