// Package logger wraps zap for the watcher binaries.
//
// A run never logs through package state directly: the command builds a
// logger, stores it in the context (ToContext), and every component pulls it
// back out with FromContext. Scoped names and key-value pairs are attached with
// WithName and WithKV, so one run (or one test) never bleeds into another.
package logger
