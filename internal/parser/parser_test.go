package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bimmerbailey/rumcollect/internal/config"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Format
	}{
		{
			name:  "collector event",
			input: `{"time": 1737885600000, "url": "https://example.com/trip/AB123C", "checkpoint": "top"}`,
			want:  FormatJSON,
		},
		{
			name:  "broken json",
			input: `{"time": 1737885600000, "url": `,
			want:  FormatURL,
		},
		{
			name:  "combined access log",
			input: `192.168.1.100 - user [26/Jan/2025:10:00:01 -0500] "GET /trip/AB123C HTTP/1.1" 200 1234 "https://example.com" "Mozilla/5.0"`,
			want:  FormatAccess,
		},
		{
			name:  "common access log",
			input: `10.0.0.50 - - [26/Jan/2025:10:01:15 -0500] "GET /missing HTTP/1.1" 404 567`,
			want:  FormatAccess,
		},
		{
			name:  "bare url",
			input: "https://example.com/content/AB123C/page",
			want:  FormatURL,
		},
		{
			name:  "bare path",
			input: "/content/example/path",
			want:  FormatURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectFormat(tt.input)
			if got != tt.want {
				t.Errorf("DetectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParser_ParseJSON(t *testing.T) {
	p := New(nil)

	tests := []struct {
		name        string
		input       string
		want        config.Record
		wantTime    time.Time
		checkFields map[string]interface{}
	}{
		{
			name:  "collector event",
			input: `{"time": 1737885600000, "host": "rum.example.com", "url": "https://example.com/trip/AB123C", "user_agent": "mobile", "referer": "https://google.com/", "weight": 100, "checkpoint": "top", "id": "abc", "target": "https://t.example/x", "source": ".hero", "generation": "gen-1"}`,
			want: config.Record{
				Host:       "rum.example.com",
				URL:        "https://example.com/trip/AB123C",
				UserAgent:  "mobile",
				Referer:    "https://google.com/",
				Weight:     100,
				Checkpoint: "top",
				ID:         "abc",
				Target:     "https://t.example/x",
				Source:     ".hero",
			},
			wantTime:    time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC),
			checkFields: map[string]interface{}{"generation": "gen-1"},
		},
		{
			name:     "referrer spelling and string time",
			input:    `{"timestamp": "2025-01-26T10:00:01Z", "referrer": "/from", "url": "/to"}`,
			want:     config.Record{Referer: "/from", URL: "/to"},
			wantTime: time.Date(2025, 1, 26, 10, 0, 1, 0, time.UTC),
		},
		{
			name:     "epoch seconds",
			input:    `{"ts": 1737885600, "url": "/"}`,
			want:     config.Record{URL: "/"},
			wantTime: time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC),
		},
		{
			name:        "non-string fields kept",
			input:       `{"url": "/", "cwv": {"LCP": 1200}, "blocked": true}`,
			want:        config.Record{URL: "/"},
			checkFields: map[string]interface{}{"blocked": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseLine(tt.input, 7)

			if got.Line != 7 || got.Raw != tt.input {
				t.Errorf("Line/Raw = %d/%q", got.Line, got.Raw)
			}
			if got.Host != tt.want.Host || got.URL != tt.want.URL || got.Referer != tt.want.Referer {
				t.Errorf("host/url/referer = %q/%q/%q, want %q/%q/%q",
					got.Host, got.URL, got.Referer, tt.want.Host, tt.want.URL, tt.want.Referer)
			}
			if got.Target != tt.want.Target || got.Source != tt.want.Source {
				t.Errorf("target/source = %q/%q", got.Target, got.Source)
			}
			if got.Checkpoint != tt.want.Checkpoint || got.ID != tt.want.ID || got.Weight != tt.want.Weight {
				t.Errorf("checkpoint/id/weight = %q/%q/%d", got.Checkpoint, got.ID, got.Weight)
			}
			if got.UserAgent != tt.want.UserAgent {
				t.Errorf("UserAgent = %q, want %q", got.UserAgent, tt.want.UserAgent)
			}
			if !got.Time.Equal(tt.wantTime) {
				t.Errorf("Time = %v, want %v", got.Time, tt.wantTime)
			}
			for k, v := range tt.checkFields {
				if got.Fields[k] != v {
					t.Errorf("Fields[%q] = %v, want %v", k, got.Fields[k], v)
				}
			}
		})
	}
}

func TestParser_ParseAccess(t *testing.T) {
	p := New(nil)

	got := p.ParseLine(`192.168.1.100 - user123 [26/Jan/2025:10:00:01 -0500] "GET /trip/AB123C?x=1 HTTP/1.1" 200 1234 "https://example.com/AB123C" "Mozilla/5.0"`, 1)

	if got.URL != "/trip/AB123C?x=1" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.Referer != "https://example.com/AB123C" {
		t.Errorf("Referer = %q", got.Referer)
	}
	if got.Host != "192.168.1.100" || got.UserAgent != "Mozilla/5.0" {
		t.Errorf("Host/UserAgent = %q/%q", got.Host, got.UserAgent)
	}
	if got.Time.IsZero() {
		t.Error("expected a timestamp")
	}
	if got.Fields["method"] != "GET" || got.Fields["status"] != "200" || got.Fields["user"] != "user123" {
		t.Errorf("Fields = %v", got.Fields)
	}

	noRef := p.ParseLine(`10.0.0.50 - - [26/Jan/2025:10:01:15 -0500] "GET /missing HTTP/1.1" 404 567 "-" "curl/7.68.0"`, 2)
	if noRef.Referer != "" {
		t.Errorf("Referer = %q, want empty for '-'", noRef.Referer)
	}
	if _, ok := noRef.Fields["user"]; ok {
		t.Error("'-' user should not be stored")
	}
}

func TestParser_ParseURL(t *testing.T) {
	p := New(nil)
	got := p.ParseLine("  https://example.com/content/AB123C  ", 3)
	if got.URL != "https://example.com/content/AB123C" {
		t.Errorf("URL = %q", got.URL)
	}
	if !got.Time.IsZero() {
		t.Error("bare URLs carry no time")
	}
}

func TestParser_ParseStream(t *testing.T) {
	p := New(nil)

	input := `{"url": "/one"}
{"url": "/two"}
/three`

	t.Run("Collect all records", func(t *testing.T) {
		var records []config.Record
		err := p.ParseStream(strings.NewReader(input), func(rec config.Record) error {
			records = append(records, rec)
			return nil
		})

		if err != nil {
			t.Fatalf("ParseStream() error = %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("got %d records, want 3", len(records))
		}
		if records[0].URL != "/one" || records[2].URL != "/three" {
			t.Errorf("URLs = %q, %q", records[0].URL, records[2].URL)
		}
		if records[2].Line != 3 {
			t.Errorf("records[2].Line = %d, want 3", records[2].Line)
		}
	})

	t.Run("Early termination", func(t *testing.T) {
		count := 0
		err := p.ParseStream(strings.NewReader(input), func(rec config.Record) error {
			count++
			if count >= 2 {
				return errors.New("stop")
			}
			return nil
		})

		if err == nil {
			t.Error("Expected error from early termination")
		}
		if count != 2 {
			t.Errorf("callback called %d times, want 2", count)
		}
	})
}

func TestParser_SkipBlankLines(t *testing.T) {
	p := New(nil)

	input := "/a\n\n/b\n   \n/c"
	records, err := p.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (blank lines should be skipped)", len(records))
	}
}

func TestParser_LongLine(t *testing.T) {
	p := New(nil)

	// longer than the default bufio.Scanner buffer (64KB)
	longPath := "/" + strings.Repeat("x", 100*1024)
	input := `{"url": "` + longPath + `"}`

	records, err := p.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error on long line = %v", err)
	}
	if len(records) != 1 || records[0].URL != longPath {
		t.Fatalf("long line not parsed intact")
	}
}

func TestParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacons.log")
	if err := os.WriteFile(path, []byte("{\"url\": \"/a\"}\n/b\n"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(records) != 2 || records[1].File != path {
		t.Errorf("records = %+v", records)
	}

	if _, err := New(nil).ParseFile(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Error("ParseFile() on a missing file should fail")
	}
}

func TestParser_CustomTimestampFormats(t *testing.T) {
	p := New([]string{"01/02/2006 15:04:05"})
	rec := p.ParseLine(`{"time": "01/26/2025 10:00:01", "url": "/"}`, 1)
	if rec.Time.IsZero() {
		t.Error("Expected non-zero timestamp with custom format")
	}
}

func BenchmarkParser_ParseJSON(b *testing.B) {
	p := New(nil)
	line := `{"time": 1737885600000, "host": "rum.example.com", "url": "https://example.com/trip/AB123C", "weight": 100, "checkpoint": "top", "id": "abc"}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.ParseLine(line, 1)
	}
}

func BenchmarkParser_ParseAccess(b *testing.B) {
	p := New(nil)
	line := `192.168.1.100 - user123 [26/Jan/2025:10:00:01 -0500] "GET /index.html HTTP/1.1" 200 1234 "https://example.com" "Mozilla/5.0"`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.ParseLine(line, 1)
	}
}
