package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

/*
Log field keys shared by several packages. Package specific keys belong to
the package.
*/
const (
	NodeIDKey = "node_id"
	ModuleKey = "module"
	PeerKey   = "peer"
	IndexKey  = "index"
)

type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|text
	Writer io.Writer
}

// New creates the root logger. Output defaults to stdout in JSON.
func New(cfg Config) zerolog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000000"}
	}

	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to zerolog's, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

/*
Module returns a sub-logger tagged with the component name:

	log := logger.Module(root, "resolver")
*/
func Module(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str(ModuleKey, name).Logger()
}

// NodeID returns a sub-logger tagged with the node identifier.
func NodeID(log zerolog.Logger, id string) zerolog.Logger {
	return log.With().Str(NodeIDKey, id).Logger()
}

// Nop discards everything; used by tests and optional collaborators.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Peer returns a sub-logger tagged with a peer authority.
func Peer(log zerolog.Logger, addr string) zerolog.Logger {
	return log.With().Str(PeerKey, addr).Logger()
}
