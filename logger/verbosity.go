package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + progress, phase transitions, cache stats
	VerbosityDebug = 2 // -vv: + per-entity cascade decisions, timing
	VerbosityTrace = 3 // -vvv: + raw endpoint request/response summaries
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels.
//
//	0 (none)  -> WarnLevel  (errors and warnings only)
//	1 (-v)    -> InfoLevel  (+ informational messages)
//	2+ (-vv)  -> DebugLevel (+ debug messages)
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShouldLogTrace returns true for verbosity >= 3 (-vvv).
// Use this for dumping endpoint payload summaries.
func ShouldLogTrace(verbosity int) bool {
	return verbosity >= VerbosityTrace
}
