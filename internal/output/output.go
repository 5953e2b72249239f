// Package output provides formatted output rendering for beacon records
// and reports. It supports text, JSON, YAML, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/bimmerbailey/rumcollect/internal/config"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
}

// New creates a new output Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// Format returns the configured format.
func (wr *Writer) Format() Format {
	return wr.format
}

// WriteRecords outputs a slice of records in the configured format.
func (wr *Writer) WriteRecords(records []config.Record) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(records)
	case FormatYAML:
		return wr.WriteYAML(records)
	case FormatTable:
		return wr.writeTable(records)
	default:
		return wr.writeText(records)
	}
}

// WriteReport outputs a structured value. Text and table formats fall
// back to YAML, which reads well in a terminal.
func (wr *Writer) WriteReport(v interface{}) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(v)
	}
	return wr.WriteYAML(v)
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteYAML outputs any value as YAML.
func (wr *Writer) WriteYAML(v interface{}) error {
	enc := yaml.NewEncoder(wr.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (wr *Writer) writeText(records []config.Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(wr.w, FormatRecord(r, false)); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeTable(records []config.Record) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tTIME\tCHECKPOINT\tURL")
	fmt.Fprintln(tw, "----\t----\t----------\t---")

	for _, r := range records {
		ts := ""
		if !r.Time.IsZero() {
			ts = r.Time.Format("15:04:05")
		}

		u := r.URL
		if len(u) > 80 {
			u = u[:77] + "..."
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Line, ts, r.Checkpoint, u)
	}

	return tw.Flush()
}
