// Package logrus adapts a sirupsen/logrus entry to callcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/callcache"
)

var _ callcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l, tagging every line with component=callcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "callcache")}
}

func (l Logger) Debug(msg string, f callcache.Fields) { l.E.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f callcache.Fields)  { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f callcache.Fields)  { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f callcache.Fields) { l.E.WithFields(logrus.Fields(f)).Error(msg) }
