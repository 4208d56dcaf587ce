package executor

import "github.com/rs/zerolog"

// testLogger returns a logger that discards everything, keeping test
// output focused on assertion failures.
func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
