package ui

import (
	"fmt"
	"os"
)

// Hyperlink renders url as a clickable OSC 8 link when stdout is a terminal.
// CARDLINK_NO_HYPERLINKS=1 forces the plain form.
func Hyperlink(url string) string {
	if os.Getenv("CARDLINK_NO_HYPERLINKS") == "1" || !IsInteractive() {
		return url
	}
	return fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", url, url)
}

// IsInteractive returns true if running in an interactive terminal
func IsInteractive() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
