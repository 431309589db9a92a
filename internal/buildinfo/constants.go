package buildinfo

import (
	"fmt"
)

// These variables will be set at build time using ldflags
var (
	Version   = "dev"
	Commit    string
	BuildDate string
)

// String renders the build information for the version command
func String() string {
	s := Version
	if Commit != "" {
		s += fmt.Sprintf(" (commit %s)", Commit)
	}
	if BuildDate != "" {
		s += fmt.Sprintf(" built %s", BuildDate)
	}
	return s
}
