// Package log builds the slog handler used by the qsync command.
package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	TextFormat   = "text"
	LogfmtFormat = "logfmt"
	JSONFormat   = "json"
)

// ErrUnknownFormat is returned for a format other than text, logfmt or json.
var ErrUnknownFormat = errors.New("unknown log format")

// CreateHandler creates a [slog.Handler] writing to w at the given level and
// in the given format.
func CreateHandler(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	level, err := GetLevel(logLevel)
	if err != nil {
		return nil, err
	}

	var f log.Formatter
	switch strings.ToLower(logFormat) {
	case TextFormat, "":
		f = log.TextFormatter
	case LogfmtFormat:
		f = log.LogfmtFormatter
	case JSONFormat:
		f = log.JSONFormatter
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, logFormat)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       f,
		ReportTimestamp: true,
	}), nil
}

// GetLevel parses a level name. "warning" and "trace" are accepted as
// aliases for warn and debug.
func GetLevel(level string) (log.Level, error) {
	switch l := strings.ToLower(level); l {
	case "warning":
		return log.WarnLevel, nil
	case "trace":
		return log.DebugLevel, nil
	case "":
		return log.InfoLevel, nil
	default:
		lvl, err := log.ParseLevel(l)
		if err != nil {
			return 0, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		return lvl, nil
	}
}
