package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/bimmerbailey/rumcollect/internal/config"
)

func TestHighlightPlaceholders(t *testing.T) {
	tests := []struct {
		name          string
		line          string
		expectColor   bool
		expectedColor string
	}{
		{name: "pnr", line: "/trip/<pnr>", expectColor: true, expectedColor: colorYellow},
		{name: "jwt", line: "/auth/<jwt>", expectColor: true, expectedColor: colorBold + colorRed},
		{name: "uuid", line: "/order/<uuid>", expectColor: true, expectedColor: colorCyan},
		{name: "email", line: "/user/<email>", expectColor: true, expectedColor: colorMagenta},
		{name: "unknown placeholder", line: "/a/<other>", expectColor: false},
		{name: "no placeholder", line: "/products/list", expectColor: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HighlightPlaceholders(tt.line)

			if tt.expectColor {
				if !strings.Contains(result, tt.expectedColor) {
					t.Errorf("Expected color code %q in result: %q", tt.expectedColor, result)
				}
				if !strings.Contains(result, colorReset) {
					t.Errorf("Expected reset code in result: %q", result)
				}
			} else if result != tt.line {
				t.Errorf("Expected line to be unchanged, got: %q", result)
			}
		})
	}
}

func TestHighlightPlaceholders_PreservesContent(t *testing.T) {
	testLines := []string{
		"https://example.com/trip/<pnr>/<pnr>",
		"/content/<uuid>?",
		"line with unicode: 你好世界 <email>",
		"<jwt><pnr>",
	}

	for _, line := range testLines {
		t.Run(line, func(t *testing.T) {
			colored := HighlightPlaceholders(line)

			cleaned := colored
			for _, c := range []string{colorReset, colorBold, colorRed, colorYellow, colorCyan, colorMagenta} {
				cleaned = strings.ReplaceAll(cleaned, c, "")
			}
			if cleaned != line {
				t.Errorf("Content was modified: expected %q, got %q", line, cleaned)
			}
		})
	}
}

func TestFormatRecord(t *testing.T) {
	rec := config.Record{
		URL:        "https://example.com/trip/<pnr>",
		Referer:    "https://google.com/",
		Checkpoint: "top",
	}

	t.Run("without colorize", func(t *testing.T) {
		result := FormatRecord(rec, false)
		want := "https://example.com/trip/<pnr> referer=https://google.com/ checkpoint=top"
		if result != want {
			t.Errorf("FormatRecord() = %q, want %q", result, want)
		}
		if strings.Contains(result, "\033[") {
			t.Errorf("Expected no color codes, got: %s", result)
		}
	})

	t.Run("with colorize", func(t *testing.T) {
		result := FormatRecord(rec, true)
		if !strings.Contains(result, colorYellow+"<pnr>"+colorReset) {
			t.Errorf("Expected highlighted placeholder in result: %q", result)
		}
		if !strings.Contains(result, colorGray+"referer="+colorReset) {
			t.Errorf("Expected dimmed field name in result: %q", result)
		}
	})

	t.Run("url only", func(t *testing.T) {
		if got := FormatRecord(config.Record{URL: "/a"}, false); got != "/a" {
			t.Errorf("FormatRecord() = %q", got)
		}
	})

	t.Run("no url", func(t *testing.T) {
		if got := FormatRecord(config.Record{Target: "/t"}, false); got != "target=/t" {
			t.Errorf("FormatRecord() = %q", got)
		}
	})
}

func TestShouldColorize(t *testing.T) {
	tests := []struct {
		name     string
		mode     ColorMode
		writer   interface{}
		expected bool
	}{
		{
			name:     "ColorAlways - any writer",
			mode:     ColorAlways,
			writer:   &bytes.Buffer{},
			expected: true,
		},
		{
			name:     "ColorNever - any writer",
			mode:     ColorNever,
			writer:   os.Stdout,
			expected: false,
		},
		{
			name:     "ColorAuto - non-file writer",
			mode:     ColorAuto,
			writer:   &bytes.Buffer{},
			expected: false,
		},
		{
			name:     "ColorAuto - file writer (stdout)",
			mode:     ColorAuto,
			writer:   os.Stdout,
			expected: isTerminal(os.Stdout), // Depends on test environment
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldColorize(tt.mode, tt.writer)
			if result != tt.expected {
				t.Errorf("shouldColorize() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		in   string
		want ColorMode
	}{
		{"always", ColorAlways},
		{"NEVER", ColorNever},
		{"auto", ColorAuto},
		{"", ColorAuto},
		{"bogus", ColorAuto},
	}
	for _, tt := range tests {
		if got := ParseColorMode(tt.in); got != tt.want {
			t.Errorf("ParseColorMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteColoredRecord(t *testing.T) {
	rec := config.Record{URL: "https://example.com/trip/<pnr>"}

	t.Run("ColorNever mode", func(t *testing.T) {
		buf := &bytes.Buffer{}
		writer := New(buf, FormatText)

		if err := writer.WriteColoredRecord(rec, ColorNever); err != nil {
			t.Fatalf("WriteColoredRecord() error = %v", err)
		}
		if buf.String() != rec.URL+"\n" {
			t.Errorf("Expected plain line, got: %q", buf.String())
		}
	})

	t.Run("ColorAlways mode", func(t *testing.T) {
		buf := &bytes.Buffer{}
		writer := New(buf, FormatText)

		if err := writer.WriteColoredRecord(rec, ColorAlways); err != nil {
			t.Fatalf("WriteColoredRecord() error = %v", err)
		}
		if !strings.Contains(buf.String(), colorYellow) {
			t.Errorf("Expected yellow color code, got: %q", buf.String())
		}
	})

	t.Run("ColorAuto mode with buffer (not TTY)", func(t *testing.T) {
		buf := &bytes.Buffer{}
		writer := New(buf, FormatText)

		if err := writer.WriteColoredRecord(rec, ColorAuto); err != nil {
			t.Fatalf("WriteColoredRecord() error = %v", err)
		}
		if strings.Contains(buf.String(), "\033[") {
			t.Errorf("Expected no color codes for non-TTY, got: %q", buf.String())
		}
	})
}

func TestWriteColoredLine(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := New(buf, FormatText)

	if err := writer.WriteColoredLine("/a/<uuid>", ColorAlways); err != nil {
		t.Fatalf("WriteColoredLine() error = %v", err)
	}
	if !strings.Contains(buf.String(), colorCyan+"<uuid>") {
		t.Errorf("Expected cyan placeholder, got: %q", buf.String())
	}
}

func TestANSIColorCodes(t *testing.T) {
	codes := []struct {
		name  string
		value string
	}{
		{"reset", colorReset},
		{"red", colorRed},
		{"yellow", colorYellow},
		{"magenta", colorMagenta},
		{"cyan", colorCyan},
		{"gray", colorGray},
		{"bold", colorBold},
	}

	for _, code := range codes {
		t.Run(code.name, func(t *testing.T) {
			if !strings.HasPrefix(code.value, "\033[") {
				t.Errorf("Color code %q should start with ANSI escape sequence", code.name)
			}
			if !strings.HasSuffix(code.value, "m") {
				t.Errorf("Color code %q should end with 'm'", code.name)
			}
		})
	}
}
