// Package optreg holds the global definitions shared by the packages of the
// option registry node.
package optreg

import (
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

const defaultLevel = zerolog.InfoLevel

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. By default, it only prints
// info level logs, but it can be changed through the LLVL environment variable
// or with SetLogLevel.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(ParseLogLevel(os.Getenv(EnvLogLevel)))

// PromCollectors exposes Prometheus collectors created by the packages. A
// server exposing the metrics registers them when it starts.
var PromCollectors []prometheus.Collector

// ParseLogLevel returns the zerolog level from its text form. An unknown or
// empty value gives the default level.
func ParseLogLevel(lvl string) zerolog.Level {
	switch strings.ToLower(lvl) {
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "none":
		return zerolog.Disabled
	default:
		return defaultLevel
	}
}

// SetLogLevel changes the level of the global logger.
func SetLogLevel(lvl string) {
	Logger = Logger.Level(ParseLogLevel(lvl))
}
