package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// InitDefault sets up a console logger with sane defaults. It runs before
// flags and config are parsed so early failures are still readable.
func InitDefault() {
	log.Logger = newLogger("info", "console", false)
}

// Init configures the global logger from viper keys. A non-nil out overrides
// the destination (used by tests).
func Init(out io.Writer) {
	level := viper.GetString(LevelKey)
	format := viper.GetString(FormatKey)
	noColor := viper.GetBool(NoColorKey)

	logger := newLogger(level, format, noColor)
	if out != nil {
		logger = logger.Output(out)
	}
	log.Logger = logger
}

func newLogger(level, format string, noColor bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    noColor,
		}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
