package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/wewew312/todomemes/internal/model"
)

var (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	strike = "\033[9m"

	fgGray   = "\033[90m"
	fgGreen  = "\033[32m"
	fgYellow = "\033[33m"
	fgBlue   = "\033[34m"
	fgRed    = "\033[31m"

	symCheck = "✔"
	symCross = "✖"
)

var (
	forceColor   bool
	disableColor bool
)

func SetColorForcing(force, disable bool) {
	forceColor = force
	disableColor = disable
}

// IsTTY reports whether stdout is a terminal.
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func colorOn() bool {
	if disableColor {
		return false
	}
	return forceColor || IsTTY()
}

func C(color, s string) string {
	if color == "" || !colorOn() {
		return s
	}
	return color + s + reset
}

// Swatch renders a block in the item's color, or nothing for White.
func Swatch(c model.Color) string {
	if c == model.White {
		return ""
	}
	if !colorOn() {
		return c.Hex()
	}
	r, g, b := c.RGB()
	return fmt.Sprintf("\033[38;2;%d;%d;%dm■%s", r, g, b, reset)
}

func OK(w io.Writer, msg string)   { fmt.Fprintln(w, C(fgGreen, symCheck+" "+msg)) }
func Fail(w io.Writer, msg string) { fmt.Fprintln(w, C(fgRed, symCross+" "+msg)) }

// Hint prints a muted follow-up line.
func Hint(w io.Writer, msg string) { fmt.Fprintln(w, C(fgGray, msg)) }
