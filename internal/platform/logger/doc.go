// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. String attributes are passed through the redact
// package so tokens and credentials never reach the log output.
package logger
