package gologgeradapter

import (
	"context"

	"github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-dealflow/logger"
)

// Logger bridges a go-logger instance into the dealflow logger contract so
// it can be passed to lifecycle.WithLogger and membership.WithLogger.
func Logger(l glog.Logger) logger.Logger {
	if l == nil {
		return logger.Default()
	}
	return bridge{l: l}
}

type bridge struct {
	l glog.Logger
}

func (b bridge) Trace(msg string, args ...any) { b.l.Trace(msg, args...) }
func (b bridge) Debug(msg string, args ...any) { b.l.Debug(msg, args...) }
func (b bridge) Info(msg string, args ...any)  { b.l.Info(msg, args...) }
func (b bridge) Warn(msg string, args ...any)  { b.l.Warn(msg, args...) }
func (b bridge) Error(msg string, args ...any) { b.l.Error(msg, args...) }
func (b bridge) Fatal(msg string, args ...any) { b.l.Fatal(msg, args...) }

func (b bridge) WithContext(ctx context.Context) logger.Logger {
	return bridge{l: b.l.WithContext(ctx)}
}

func (b bridge) WithFields(fields map[string]any) logger.Logger {
	if fl, ok := b.l.(glog.FieldsLogger); ok {
		return bridge{l: fl.WithFields(fields)}
	}
	return b
}

var (
	_ logger.Logger       = bridge{}
	_ logger.FieldsLogger = bridge{}
)
