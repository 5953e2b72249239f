// Package analyzer measures what the redaction pipeline does to beacon
// records: per-filter counts, top cleaned URLs, grouping and filtering.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bimmerbailey/rumcollect/internal/config"
	"github.com/bimmerbailey/rumcollect/internal/privacy"
)

// Stats holds aggregate redaction statistics for a set of records.
type Stats struct {
	TotalRecords    int            `json:"total_records" yaml:"total_records"`
	RedactedRecords int            `json:"redacted_records" yaml:"redacted_records"`
	FilterCounts    privacy.Counts `json:"filter_counts" yaml:"filter_counts"`
	FirstEvent      time.Time      `json:"first_event,omitempty" yaml:"first_event,omitempty"`
	LastEvent       time.Time      `json:"last_event,omitempty" yaml:"last_event,omitempty"`
	TopURLs         []URLCount     `json:"top_urls,omitempty" yaml:"top_urls,omitempty"`
	RedactionRate   float64        `json:"redaction_rate" yaml:"redaction_rate"`
}

// URLCount tracks a cleaned URL and how often it appears.
type URLCount struct {
	URL   string `json:"url" yaml:"url"`
	Count int    `json:"count" yaml:"count"`
}

// GroupedResult represents records grouped by a field value.
type GroupedResult struct {
	Key     string  `json:"key" yaml:"key"`
	Count   int     `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// Analyzer runs records through a redaction pipeline.
type Analyzer struct {
	pipeline *privacy.Pipeline
}

// New creates a new Analyzer.
func New(pipeline *privacy.Pipeline) *Analyzer {
	return &Analyzer{pipeline: pipeline}
}

// Redact cleans every URL-bearing field of rec and reports the
// replacements per filter.
func (a *Analyzer) Redact(rec config.Record) (config.Record, privacy.Counts) {
	counts := make(privacy.Counts)
	for _, field := range []*string{&rec.URL, &rec.Referer, &rec.Target, &rec.Source} {
		var c privacy.Counts
		*field, c = a.pipeline.CleanURLAndCount(*field)
		counts.Add(c)
	}
	return rec, counts
}

// RedactAll cleans every record and returns the cleaned copies
// along with aggregate statistics.
func (a *Analyzer) RedactAll(records []config.Record, topN int) ([]config.Record, Stats) {
	acc := newAccumulator()
	out := make([]config.Record, 0, len(records))
	for _, rec := range records {
		cleaned, counts := a.Redact(rec)
		acc.add(rec, cleaned, counts)
		out = append(out, cleaned)
	}
	return out, acc.stats(topN)
}

// Scan redacts records and keeps those whose cleaned form matches opts.
// Patterns therefore never match redacted text. Stats cover the kept
// records only.
func (a *Analyzer) Scan(records []config.Record, opts FilterOptions, topN int) ([]config.Record, Stats, error) {
	match, err := newMatcher(opts)
	if err != nil {
		return nil, Stats{}, err
	}

	acc := newAccumulator()
	var out []config.Record
	for _, rec := range records {
		cleaned, counts := a.Redact(rec)
		if !match(cleaned) {
			continue
		}
		acc.add(rec, cleaned, counts)
		out = append(out, cleaned)
	}
	return out, acc.stats(topN), nil
}

type accumulator struct {
	s         Stats
	urlCounts map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{
		s:         Stats{FilterCounts: make(privacy.Counts)},
		urlCounts: make(map[string]int),
	}
}

func (acc *accumulator) add(rec, cleaned config.Record, counts privacy.Counts) {
	acc.s.TotalRecords++
	if counts.Total() > 0 {
		acc.s.RedactedRecords++
		acc.s.FilterCounts.Add(counts)
	}

	if !rec.Time.IsZero() {
		if acc.s.FirstEvent.IsZero() || rec.Time.Before(acc.s.FirstEvent) {
			acc.s.FirstEvent = rec.Time
		}
		if acc.s.LastEvent.IsZero() || rec.Time.After(acc.s.LastEvent) {
			acc.s.LastEvent = rec.Time
		}
	}

	if cleaned.URL != "" {
		acc.urlCounts[cleaned.URL]++
	}
}

func (acc *accumulator) stats(topN int) Stats {
	s := acc.s
	if s.TotalRecords > 0 {
		s.RedactionRate = float64(s.RedactedRecords) / float64(s.TotalRecords)
		s.TopURLs = topURLs(acc.urlCounts, topN)
	}
	return s
}

// topURLs extracts the N most frequent URLs.
func topURLs(counts map[string]int, n int) []URLCount {
	urls := make([]URLCount, 0, len(counts))
	for u, count := range counts {
		urls = append(urls, URLCount{URL: u, Count: count})
	}

	sort.Slice(urls, func(i, j int) bool {
		if urls[i].Count != urls[j].Count {
			return urls[i].Count > urls[j].Count
		}
		return urls[i].URL < urls[j].URL
	})

	if n >= 0 && len(urls) > n {
		urls = urls[:n]
	}
	return urls
}

// FilterOptions defines the criteria for filtering records.
type FilterOptions struct {
	Pattern    string // regular expression matched against the URL
	Checkpoint string
	Since      time.Time
	Until      time.Time
	Invert     bool
}

// Filter returns records matching the given criteria.
func (a *Analyzer) Filter(records []config.Record, opts FilterOptions) ([]config.Record, error) {
	match, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}

	var result []config.Record
	for _, r := range records {
		if match(r) {
			result = append(result, r)
		}
	}
	return result, nil
}

func newMatcher(opts FilterOptions) (func(config.Record) bool, error) {
	var re *regexp.Regexp
	if opts.Pattern != "" {
		var err error
		re, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	return func(r config.Record) bool {
		if opts.Checkpoint != "" && r.Checkpoint != opts.Checkpoint {
			return false
		}
		if !opts.Since.IsZero() && !r.Time.IsZero() && r.Time.Before(opts.Since) {
			return false
		}
		if !opts.Until.IsZero() && !r.Time.IsZero() && r.Time.After(opts.Until) {
			return false
		}
		if re != nil {
			matched := re.MatchString(r.URL)
			if opts.Invert {
				matched = !matched
			}
			if !matched {
				return false
			}
		}
		return true
	}, nil
}

// GroupBy groups records by a field and returns the top N groups.
// Supported fields: "host", "checkpoint", "user_agent", "path".
func (a *Analyzer) GroupBy(records []config.Record, field string, topN int) ([]GroupedResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	groups := make(map[string]int)
	for _, r := range records {
		var key string
		switch field {
		case "host":
			key = r.Host
		case "checkpoint":
			key = r.Checkpoint
		case "user_agent":
			key = r.UserAgent
		case "path":
			key = pathOf(r.URL)
		default:
			return nil, fmt.Errorf("unsupported group-by field: %s (must be 'host', 'checkpoint', 'user_agent', or 'path')", field)
		}
		if key == "" {
			key = "(unknown)"
		}
		groups[key]++
	}

	result := make([]GroupedResult, 0, len(groups))
	total := len(records)
	for key, count := range groups {
		result = append(result, GroupedResult{
			Key:     key,
			Count:   count,
			Percent: float64(count) * 100 / float64(total),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})

	if len(result) > topN {
		result = result[:topN]
	}
	return result, nil
}

// pathOf strips scheme and host from a URL string.
func pathOf(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[j:]
		}
		return "/"
	}
	return u
}
