//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"go.uber.org/zap"
)

// logRecord emits a structured trace event for a record sent or
// received, replacing the teacher's kernel/ktrace.go fmt.Printf-based
// tracing (gated by Params.Trace/TraceHex) with zap fields a host
// application can route to its own log pipeline. Silent unless the
// connection was given a real *zap.Logger.
func logRecord(log *zap.Logger, direction string, ct ContentType, seq uint64, n int) {
	log.Debug("record",
		zap.String("dir", direction),
		zap.Stringer("ct", ct),
		zap.Uint64("seq", seq),
		zap.Int("bytes", n),
	)
}

// logHandshake emits a structured trace event for a handshake message
// sent or received.
func logHandshake(log *zap.Logger, direction string, ht HandshakeType, n int) {
	log.Debug("handshake",
		zap.String("dir", direction),
		zap.Stringer("type", ht),
		zap.Int("bytes", n),
	)
}

// logPhase emits a structured trace event for a state machine
// transition.
func logPhase(log *zap.Logger, from, to string) {
	log.Debug("phase", zap.String("from", from), zap.String("to", to))
}

// logAlert emits a structured trace event for an alert sent or
// received.
func logAlert(log *zap.Logger, direction string, a Alert) {
	log.Debug("alert",
		zap.String("dir", direction),
		zap.Stringer("level", a.Level),
		zap.Stringer("description", a.Description),
	)
}
