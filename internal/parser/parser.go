// Package parser reads beacon logs back into records.
//
// It understands the JSON lines written by the collector sinks, combined
// access log lines, and bare URLs or paths (one per line).
package parser

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bimmerbailey/rumcollect/internal/config"
)

// Format represents a detected line format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatAccess Format = "access"
	FormatURL    Format = "url"
)

// maxLineSize bounds a single line. Beacon lines are small, but access
// logs occasionally carry very long query strings.
const maxLineSize = 1024 * 1024

// accessPattern matches the combined log format.
var accessPattern = regexp.MustCompile(`^(\S+) \S+ (\S+) \[([^\]]+)\] "(\S+) (\S+)[^"]*" (\d{3}) \S+(?: "([^"]*)" "([^"]*)")?`)

// Parser reads and parses beacon logs into records.
type Parser struct {
	timestampFormats []string
}

// New creates a new Parser with the given timestamp format patterns.
func New(timestampFormats []string) *Parser {
	if len(timestampFormats) == 0 {
		timestampFormats = []string{
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"02/Jan/2006:15:04:05 -0700",
		}
	}
	return &Parser{timestampFormats: timestampFormats}
}

// DetectFormat guesses the format of a single line.
func DetectFormat(line string) Format {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return FormatJSON
	}
	if accessPattern.MatchString(trimmed) {
		return FormatAccess
	}
	return FormatURL
}

// ParseFile opens a file and parses all records from it.
func (p *Parser) ParseFile(path string) ([]config.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := p.Parse(f)
	for i := range records {
		records[i].File = path
	}
	return records, err
}

// Parse reads all records from the given reader.
func (p *Parser) Parse(r io.Reader) ([]config.Record, error) {
	var records []config.Record
	err := p.ParseStream(r, func(rec config.Record) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// ParseStream calls fn for each record in r. Blank lines are skipped.
// Returning an error from fn stops the scan and returns that error.
func (p *Parser) ParseStream(r io.Reader, fn func(config.Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(p.ParseLine(line, lineNum)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ParseLine parses a single line into a Record.
func (p *Parser) ParseLine(line string, lineNum int) config.Record {
	rec := config.Record{
		Raw:  line,
		Line: lineNum,
	}

	trimmed := strings.TrimSpace(line)
	if p.tryParseJSON(trimmed, &rec) {
		return rec
	}
	if p.tryParseAccess(trimmed, &rec) {
		return rec
	}

	rec.URL = trimmed
	return rec
}

// tryParseJSON reads a collector event.
func (p *Parser) tryParseJSON(line string, rec *config.Record) bool {
	if len(line) == 0 || line[0] != '{' {
		return false
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return false
	}

	rec.URL = stringField(data, "url")
	rec.Referer = stringField(data, "referer", "referrer")
	rec.Target = stringField(data, "target")
	rec.Source = stringField(data, "source")
	rec.Checkpoint = stringField(data, "checkpoint")
	rec.ID = stringField(data, "id")
	rec.Host = stringField(data, "host")
	rec.UserAgent = stringField(data, "user_agent")
	if w, ok := data["weight"].(float64); ok {
		rec.Weight = int(w)
	}

	for _, key := range []string{"time", "timestamp", "ts"} {
		if v, ok := data[key]; ok {
			rec.Time = p.parseTimeValue(v)
			break
		}
	}

	// Keep remaining fields
	for k, v := range data {
		switch k {
		case "url", "referer", "referrer", "target", "source", "checkpoint", "id",
			"host", "user_agent", "weight", "time", "timestamp", "ts":
			continue
		default:
			if rec.Fields == nil {
				rec.Fields = make(map[string]interface{})
			}
			rec.Fields[k] = v
		}
	}
	return true
}

// tryParseAccess reads a combined access log line. The request path
// becomes the URL.
func (p *Parser) tryParseAccess(line string, rec *config.Record) bool {
	m := accessPattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}

	rec.Host = m[1]
	rec.Time = p.parseTimestamp(m[3])
	rec.URL = m[5]
	if m[7] != "-" {
		rec.Referer = m[7]
	}
	rec.UserAgent = m[8]
	rec.Fields = map[string]interface{}{
		"method": m[4],
		"status": m[6],
	}
	if m[2] != "-" {
		rec.Fields["user"] = m[2]
	}
	return true
}

// parseTimeValue accepts epoch milliseconds, epoch seconds or a
// formatted string.
func (p *Parser) parseTimeValue(v interface{}) time.Time {
	switch t := v.(type) {
	case float64:
		return config.EpochTime(int64(t))
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return config.EpochTime(n)
		}
		return p.parseTimestamp(t)
	}
	return time.Time{}
}

// parseTimestamp parses a known timestamp string.
func (p *Parser) parseTimestamp(s string) time.Time {
	for _, format := range p.timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func stringField(data map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok {
			return v
		}
	}
	return ""
}
