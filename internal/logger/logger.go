package logger

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color codes, disabled automatically when stdout is not a terminal.
const (
	colReset  = "\033[0m"
	colCyan   = "\033[36m"
	colGreen  = "\033[32m"
	colYellow = "\033[33m"
	colRed    = "\033[31m"
	colBold   = "\033[1m"
	colDim    = "\033[2m"
)

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd())

func paint(col, s string) string {
	if !colorEnabled {
		return s
	}
	return col + s + colReset
}

func line(col, symbol, tag, msg string) {
	fmt.Printf("%s %s %s\n", paint(col, symbol), paint(colBold, "["+tag+"]"), msg)
}

// Info prints an informational message under a tag.
func Info(tag, msg string) { line(colCyan, "•", tag, msg) }

// Success prints a completion message under a tag.
func Success(tag, msg string) { line(colGreen, "✓", tag, msg) }

// Warn prints a warning message under a tag.
func Warn(tag, msg string) { line(colYellow, "!", tag, msg) }

// Error prints an error message under a tag.
func Error(tag, msg string) { line(colRed, "✗", tag, msg) }

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Println(paint(colBold, "millwright - template scheduling engine"))
	fmt.Println(paint(colDim, "version "+version))
}

// Section prints a titled divider before a block of related output.
func Section(title string) {
	fmt.Println()
	fmt.Println(paint(colBold, "── "+title+" ──"))
}

// Stats prints a single aligned key/value line.
func Stats(key string, value interface{}) {
	fmt.Printf("  %-24s %v\n", paint(colDim, key), value)
}
