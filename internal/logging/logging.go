// Package logging builds the zerolog.Logger every component in this
// module takes as a constructor argument, grounded on the equivalent
// helper in the example pack's ldap-dav server.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a structured, leveled logger writing to stdout. An
// unparseable level falls back to info rather than failing startup.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
