// Package zap adapts a go.uber.org/zap logger to callcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/callcache"
)

var _ callcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

func New(l *zap.Logger) Logger { return Logger{L: l.Named("callcache")} }

func (z Logger) Debug(msg string, f callcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f callcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f callcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f callcache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts by key so encoded lines are stable.
func fields(f callcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
