package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bimmerbailey/rumcollect/internal/config"
	"github.com/bimmerbailey/rumcollect/internal/privacy"
	"github.com/bimmerbailey/rumcollect/internal/textstats"
)

var testPipeline *privacy.Pipeline

func TestMain(m *testing.M) {
	tables, err := textstats.LoadDefault()
	if err != nil {
		panic(err)
	}
	testPipeline = privacy.NewDefault(tables)
	os.Exit(m.Run())
}

func TestEvaluateBuiltInLists(t *testing.T) {
	words, codes := CommonWords(), QuasiPNRs()
	if len(words) != 357 || len(codes) != 299 {
		t.Fatalf("built-in lists = %d words, %d codes", len(words), len(codes))
	}

	ev := Evaluate(testPipeline, words, codes)
	t.Logf("false positive rate: %.2f%% (%d/%d)", ev.FalsePositiveRate, len(ev.FalsePositives), ev.Words)
	t.Logf("false negative rate: %.2f%% (%d/%d) %v", ev.FalseNegativeRate, len(ev.FalseNegatives), ev.Codes, ev.FalseNegatives)

	if ev.FalsePositiveRate > MaxErrorRate {
		t.Errorf("false positive rate %.2f%% exceeds %.0f%%: %v", ev.FalsePositiveRate, MaxErrorRate, ev.FalsePositives)
	}
	if ev.FalseNegativeRate > MaxErrorRate {
		t.Errorf("false negative rate %.2f%% exceeds %.0f%%", ev.FalseNegativeRate, MaxErrorRate)
	}
	if !ev.Passed() {
		t.Error("Passed() = false")
	}
}

func TestEvaluateRates(t *testing.T) {
	ev := Evaluate(testPipeline, []string{"products", "WORLD"}, []string{"AB123C", "HELLO"})
	if len(ev.FalsePositives) != 1 || ev.FalsePositives[0] != "WORLD" {
		t.Errorf("FalsePositives = %v", ev.FalsePositives)
	}
	if len(ev.FalseNegatives) != 1 || ev.FalseNegatives[0] != "HELLO" {
		t.Errorf("FalseNegatives = %v", ev.FalseNegatives)
	}
	if ev.FalsePositiveRate != 50 || ev.FalseNegativeRate != 50 {
		t.Errorf("rates = %v/%v, want 50/50", ev.FalsePositiveRate, ev.FalseNegativeRate)
	}
	if ev.Passed() {
		t.Error("Passed() = true with 50% error rates")
	}

	empty := Evaluate(testPipeline, nil, nil)
	if empty.FalsePositiveRate != 0 || empty.FalseNegativeRate != 0 || !empty.Passed() {
		t.Errorf("empty evaluation = %+v", empty)
	}
}

func TestReadList(t *testing.T) {
	got, err := ReadList(strings.NewReader("# header\nalpha\n\n  beta  \n"))
	if err != nil {
		t.Fatalf("ReadList() error = %v", err)
	}
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("ReadList() = %v", got)
	}

	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = ReadListFile(path)
	if err != nil || len(got) != 2 {
		t.Errorf("ReadListFile() = %v, %v", got, err)
	}
	if _, err := ReadListFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("ReadListFile() on a missing file should fail")
	}
}

func sampleRecords() []config.Record {
	base := time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC)
	return []config.Record{
		{Line: 1, Time: base, Host: "a", Checkpoint: "top", URL: "https://example.com/trip/HELLO?x=1", UserAgent: "mobile"},
		{Line: 2, Time: base.Add(time.Minute), Host: "a", Checkpoint: "click", URL: "https://example.com/products", Target: "https://example.com/content/AB123C"},
		{Line: 3, Time: base.Add(2 * time.Minute), Host: "b", Checkpoint: "top", URL: "https://example.com/products", UserAgent: "desktop"},
		{Line: 4, Host: "b", Checkpoint: "top", URL: "/content/X9Y8Z7/page", Referer: "https://google.com/?q=secret"},
	}
}

func TestRedactAll(t *testing.T) {
	a := New(testPipeline)
	out, stats := a.RedactAll(sampleRecords(), 2)

	if out[0].URL != "https://example.com/trip/<pnr>" {
		t.Errorf("out[0].URL = %q", out[0].URL)
	}
	if out[1].Target != "https://example.com/content/<pnr>" {
		t.Errorf("out[1].Target = %q", out[1].Target)
	}
	if out[3].Referer != "https://google.com/" {
		t.Errorf("out[3].Referer = %q", out[3].Referer)
	}

	if stats.TotalRecords != 4 || stats.RedactedRecords != 3 {
		t.Errorf("total/redacted = %d/%d, want 4/3", stats.TotalRecords, stats.RedactedRecords)
	}
	if stats.FilterCounts[privacy.FilterPNR] != 3 {
		t.Errorf("FilterCounts = %v", stats.FilterCounts)
	}
	if stats.RedactionRate != 0.75 {
		t.Errorf("RedactionRate = %v, want 0.75", stats.RedactionRate)
	}
	if !stats.FirstEvent.Equal(sampleRecords()[0].Time) || !stats.LastEvent.Equal(sampleRecords()[2].Time) {
		t.Errorf("first/last = %v/%v", stats.FirstEvent, stats.LastEvent)
	}
	if len(stats.TopURLs) != 2 || stats.TopURLs[0].URL != "https://example.com/products" || stats.TopURLs[0].Count != 2 {
		t.Errorf("TopURLs = %+v", stats.TopURLs)
	}

	empty, stats := a.RedactAll(nil, 5)
	if len(empty) != 0 || stats.TotalRecords != 0 || stats.RedactionRate != 0 {
		t.Errorf("empty RedactAll() = %v, %+v", empty, stats)
	}
}

func TestFilter(t *testing.T) {
	a := New(testPipeline)
	records := sampleRecords()

	tests := []struct {
		name    string
		opts    FilterOptions
		want    []int
		wantErr bool
	}{
		{name: "no criteria", opts: FilterOptions{}, want: []int{1, 2, 3, 4}},
		{name: "checkpoint", opts: FilterOptions{Checkpoint: "top"}, want: []int{1, 3, 4}},
		{name: "pattern", opts: FilterOptions{Pattern: "products"}, want: []int{2, 3}},
		{name: "inverted pattern", opts: FilterOptions{Pattern: "products", Invert: true}, want: []int{1, 4}},
		{name: "since keeps undated", opts: FilterOptions{Since: records[1].Time}, want: []int{2, 3, 4}},
		{name: "until", opts: FilterOptions{Until: records[0].Time}, want: []int{1, 4}},
		{name: "bad pattern", opts: FilterOptions{Pattern: "("}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Filter(records, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Filter() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Filter() returned %d records, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.Line != tt.want[i] {
					t.Errorf("got[%d].Line = %d, want %d", i, r.Line, tt.want[i])
				}
			}
		})
	}
}

func TestGroupBy(t *testing.T) {
	a := New(testPipeline)

	got, err := a.GroupBy(sampleRecords(), "checkpoint", 10)
	if err != nil {
		t.Fatalf("GroupBy() error = %v", err)
	}
	if len(got) != 2 || got[0].Key != "top" || got[0].Count != 3 || got[0].Percent != 75 {
		t.Errorf("GroupBy(checkpoint) = %+v", got)
	}

	got, _ = a.GroupBy(sampleRecords(), "user_agent", 1)
	if len(got) != 1 || got[0].Key != "(unknown)" {
		t.Errorf("GroupBy(user_agent) = %+v", got)
	}

	got, _ = a.GroupBy(sampleRecords(), "path", 10)
	if got[0].Key != "/products" {
		t.Errorf("GroupBy(path) = %+v", got)
	}

	if _, err := a.GroupBy(sampleRecords(), "weight", 10); err == nil {
		t.Error("expected an error for an unsupported field")
	}
	if got, err := a.GroupBy(nil, "host", 10); got != nil || err != nil {
		t.Errorf("GroupBy(nil) = %v, %v", got, err)
	}
}

func TestScan(t *testing.T) {
	a := New(testPipeline)

	got, stats, err := a.Scan(sampleRecords(), FilterOptions{Pattern: "<pnr>"}, 5)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 2 || got[0].Line != 1 || got[1].Line != 4 {
		t.Fatalf("Scan() = %+v", got)
	}
	if got[1].URL != "/content/<pnr>/page" {
		t.Errorf("got[1].URL = %q", got[1].URL)
	}
	if stats.TotalRecords != 2 || stats.RedactedRecords != 2 || stats.FilterCounts[privacy.FilterPNR] != 2 {
		t.Errorf("stats = %+v", stats)
	}

	got, stats, err = a.Scan(sampleRecords(), FilterOptions{Pattern: "HELLO"}, 5)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 0 || stats.TotalRecords != 0 {
		t.Errorf("redacted text should not match: %+v", got)
	}

	got, _, _ = a.Scan(sampleRecords(), FilterOptions{Checkpoint: "click"}, 5)
	if len(got) != 1 || got[0].Target != "https://example.com/content/<pnr>" {
		t.Errorf("Scan(checkpoint) = %+v", got)
	}

	if _, _, err := a.Scan(sampleRecords(), FilterOptions{Pattern: "["}, 5); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}
