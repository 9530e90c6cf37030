package unittest

import (
	"flag"
	"io"
	"os"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "print orchestrator logs of tests")

// Logger returns a debug level logger that discards its output unless tests run with -vv.
func Logger() zerolog.Logger {
	var w io.Writer = io.Discard
	if *verbose {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

