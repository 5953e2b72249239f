package output

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"

	"github.com/bimmerbailey/rumcollect/internal/config"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
	colorBold    = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// ParseColorMode converts "auto", "always" or "never" to a ColorMode.
func ParseColorMode(s string) ColorMode {
	switch strings.ToLower(s) {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w interface{}) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

var placeholderPattern = regexp.MustCompile(`<(jwt|pnr|uuid|email)>`)

// placeholderColor picks a color per filter.
func placeholderColor(name string) string {
	switch name {
	case "jwt":
		return colorBold + colorRed
	case "pnr":
		return colorYellow
	case "uuid":
		return colorCyan
	case "email":
		return colorMagenta
	default:
		return ""
	}
}

// HighlightPlaceholders colors every redaction placeholder in line.
func HighlightPlaceholders(line string) string {
	return placeholderPattern.ReplaceAllStringFunc(line, func(m string) string {
		c := placeholderColor(m[1 : len(m)-1])
		if c == "" {
			return m
		}
		return c + m + colorReset
	})
}

// FormatRecord renders a record as a single line: the URL followed by the
// other URL fields that are set.
func FormatRecord(r config.Record, colorize bool) string {
	var b strings.Builder
	b.WriteString(r.URL)
	for _, kv := range [][2]string{
		{"referer", r.Referer},
		{"target", r.Target},
		{"source", r.Source},
		{"checkpoint", r.Checkpoint},
	} {
		if kv[1] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if colorize {
			b.WriteString(colorGray + kv[0] + "=" + colorReset)
		} else {
			b.WriteString(kv[0] + "=")
		}
		b.WriteString(kv[1])
	}

	line := b.String()
	if colorize {
		return HighlightPlaceholders(line)
	}
	return line
}

// WriteColoredRecord writes a record to the writer with placeholders
// highlighted according to ColorMode.
func (wr *Writer) WriteColoredRecord(r config.Record, mode ColorMode) error {
	colorize := shouldColorize(mode, wr.w)
	_, err := fmt.Fprintln(wr.w, FormatRecord(r, colorize))
	return err
}

// WriteColoredLine writes a plain line, highlighting placeholders according
// to ColorMode.
func (wr *Writer) WriteColoredLine(line string, mode ColorMode) error {
	if shouldColorize(mode, wr.w) {
		line = HighlightPlaceholders(line)
	}
	_, err := fmt.Fprintln(wr.w, line)
	return err
}
