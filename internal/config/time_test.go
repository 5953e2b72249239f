package config

import (
	"testing"
	"time"
)

func TestParseTimeRef(t *testing.T) {
	now := time.Date(2025, 1, 26, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: "2025-01-26T10:00:01Z", want: time.Date(2025, 1, 26, 10, 0, 1, 0, time.UTC)},
		{name: "datetime", input: "2025-01-26 10:00:01", want: time.Date(2025, 1, 26, 10, 0, 1, 0, time.UTC)},
		{name: "date", input: " 2025-01-26 ", want: time.Date(2025, 1, 26, 0, 0, 0, 0, time.UTC)},
		{name: "epoch millis", input: "1737885601000", want: time.Date(2025, 1, 26, 10, 0, 1, 0, time.UTC)},
		{name: "epoch seconds", input: "1737885601", want: time.Date(2025, 1, 26, 10, 0, 1, 0, time.UTC)},
		{name: "relative", input: "1h30m", want: now.Add(-90 * time.Minute)},
		{name: "relative days", input: "1d2h", want: now.Add(-26 * time.Hour)},
		{name: "empty", input: "  ", wantErr: true},
		{name: "garbage", input: "banana", wantErr: true},
		{name: "trailing garbage", input: "2dx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimeRef(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeRef(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseTimeRef(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTimeRefUsesNow(t *testing.T) {
	start := time.Now()
	got, err := ParseTimeRef("10m")
	if err != nil {
		t.Fatalf("ParseTimeRef() error = %v", err)
	}
	if d := start.Sub(got); d < 9*time.Minute || d > 11*time.Minute {
		t.Errorf("ParseTimeRef(10m) is %v before now", d)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "5s", want: 5 * time.Second},
		{input: "1h30m", want: 90 * time.Minute},
		{input: "2d", want: 48 * time.Hour},
		{input: "1d12h", want: 36 * time.Hour},
		{input: "", wantErr: true},
		{input: "1w", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestEpochTime(t *testing.T) {
	want := time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC)
	if got := EpochTime(want.UnixMilli()); !got.Equal(want) {
		t.Errorf("EpochTime(ms) = %v", got)
	}
	if got := EpochTime(want.Unix()); !got.Equal(want) {
		t.Errorf("EpochTime(s) = %v", got)
	}
}
