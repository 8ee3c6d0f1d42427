package forum

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the package logger. Tests and the server replace it with SetLogger.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

func SetLogger(l zerolog.Logger) {
	Logger = l
}

// NewLogger builds a logger writing to w. Format "console" gives human
// readable output; anything else is JSON lines.
func NewLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), err
		}
	}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
