// Tencent is pleased to support the open source community by making trpc-mcp-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-mcp-go is licensed under the Apache License Version 2.0.

// Package log provides the zap-backed logging implementation used by the
// top-level Logger interface.
package log

import (
	"go.uber.org/zap"
)

// ZapLogger adapts *zap.SugaredLogger to the framework's Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap logger, falling back to a development
// logger if production configuration fails (e.g. no writable log sink).
func NewZapLogger() *ZapLogger {
	logger, err := zap.NewProduction()
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	return &ZapLogger{sugar: logger.Sugar()}
}

// NewZapLoggerFrom wraps an existing *zap.Logger, letting callers control
// encoding, level, and output sinks themselves.
func NewZapLoggerFrom(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

func (l *ZapLogger) Debug(args ...interface{})                 { l.sugar.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...interface{})  { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Info(args ...interface{})                  { l.sugar.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...interface{})   { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warn(args ...interface{})                  { l.sugar.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...interface{})   { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Error(args ...interface{})                 { l.sugar.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...interface{})  { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Fatal(args ...interface{})                 { l.sugar.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...interface{})  { l.sugar.Fatalf(format, args...) }

// Sync flushes any buffered log entries. Callers should defer this at
// process shutdown; errors are expected (and ignored) when stderr is a tty.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
