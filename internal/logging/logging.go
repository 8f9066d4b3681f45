// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls Setup.
type Options struct {
	// Level is a zerolog level name; empty means "warn" so CLI output
	// stays clean.
	Level string
	// JSON switches from console to JSON lines.
	JSON bool
	// Output defaults to stderr.
	Output io.Writer
}

// Setup installs the global logger.
func Setup(o Options) error {
	level := zerolog.WarnLevel
	if o.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(o.Level))
		if err != nil {
			return err
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	if !o.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}
