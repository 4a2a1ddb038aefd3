package tui

import (
	"fmt"
	"io"
)

// PrintFallback tells a non-interactive user which commands work without a
// terminal.
func PrintFallback(w io.Writer) {
	fmt.Fprintln(w, "Non-TTY environment detected.")
	fmt.Fprintln(w, "Use one of the headless commands instead:")
	fmt.Fprintln(w, "  codetrek problem --topic <topic> --level <level>")
	fmt.Fprintln(w, "  codetrek ask <message> --topic <topic>")
	fmt.Fprintln(w, "  codetrek run <file|->")
}
