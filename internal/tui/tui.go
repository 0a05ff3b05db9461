// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"errors"
	"io"
	"os"

	"golang.org/x/term"
)

const keyCtrlC = "ctrl+c"

// ErrCancelled is returned when the user dismisses a prompt.
var ErrCancelled = errors.New("cancelled by user")

// Config holds common configuration for TUI components.
type Config struct {
	// Accessible replaces the interactive widget with a plain line prompt.
	Accessible bool
	// Input is where answers are read from.
	Input io.Reader
	// Output specifies where to write the component output.
	Output io.Writer
}

// DefaultConfig returns the default configuration for TUI components.
// Accessible mode is enabled when stdin is not a terminal or the ACCESSIBLE
// environment variable is set; prompts are then written to stderr so they
// aren't captured by command substitution.
func DefaultConfig() Config {
	accessible := !IsInputTerminal() || os.Getenv("ACCESSIBLE") != ""

	var output io.Writer = os.Stdout
	if accessible {
		output = os.Stderr
	}

	return Config{
		Accessible: accessible,
		Input:      os.Stdin,
		Output:     output,
	}
}

// IsInputTerminal returns true if stdin is connected to a terminal.
func IsInputTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (c Config) input() io.Reader {
	if c.Input != nil {
		return c.Input
	}
	return os.Stdin
}

func (c Config) output() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	if c.Accessible {
		return os.Stderr
	}
	return os.Stdout
}
