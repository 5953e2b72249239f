// Package privacy masks personal data in URL paths before they are
// persisted.
//
// A Pipeline applies an ordered list of filters, each receiving the output
// of the previous one. The default order is jwt then pnr. Pipelines hold no
// mutable state and may be shared across goroutines.
package privacy

import (
	"net/url"
	"regexp"
	"unicode/utf8"

	"github.com/bimmerbailey/rumcollect/internal/textstats"
)

// Counts maps a filter name to the number of replacements it made.
type Counts map[string]int

// Total sums all replacements.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Add merges other into c.
func (c Counts) Add(other Counts) {
	for k, v := range other {
		c[k] += v
	}
}

// Options configures a Pipeline.
type Options struct {
	// Filters names the filters to apply, in order. Unknown names are
	// ignored. Nil means DefaultFilters.
	Filters []string
	PNR     PNRConfig
	// MaxLength caps the bytes of a path handed to the filters. Longer
	// input is cut at a rune boundary. Zero means DefaultMaxLength.
	MaxLength int
}

// DefaultMaxLength is the default path length cap.
const DefaultMaxLength = 4096

// Pipeline is an ordered fold over filters.
type Pipeline struct {
	filters   []Filter
	maxLength int
}

// New builds a pipeline from named built-in filters. tables backs the pnr
// filter.
func New(tables *textstats.Tables, opts Options) *Pipeline {
	names := opts.Filters
	if names == nil {
		names = DefaultFilters()
	}

	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		switch name {
		case FilterJWT:
			filters = append(filters, JWTFilter())
		case FilterPNR:
			filters = append(filters, NewPNRFilter(tables, opts.PNR))
		case FilterUUID:
			filters = append(filters, UUIDFilter())
		case FilterEmail:
			filters = append(filters, EmailFilter())
		}
	}
	return &Pipeline{filters: filters, maxLength: opts.MaxLength}
}

// NewDefault builds the jwt, pnr pipeline with calibrated thresholds.
func NewDefault(tables *textstats.Tables) *Pipeline {
	return New(tables, Options{PNR: DefaultPNRConfig()})
}

// WithFilters builds a pipeline from arbitrary filters applied in order.
func WithFilters(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

// Filters returns the names of the active filters in order.
func (p *Pipeline) Filters() []string {
	names := make([]string, len(p.filters))
	for i, f := range p.filters {
		names[i] = f.Name()
	}
	return names
}

// CleanPath returns path with every filter applied. The placeholder of a
// filter is its name in angle brackets, e.g. <jwt>.
func (p *Pipeline) CleanPath(path string) string {
	out, _ := p.clean(path, nil)
	return out
}

// CleanPathAndCount is CleanPath that also reports replacements per filter.
func (p *Pipeline) CleanPathAndCount(path string) (string, Counts) {
	counts := make(Counts)
	return p.clean(path, counts)
}

func (p *Pipeline) clean(path string, counts Counts) (string, Counts) {
	if path == "" {
		return path, counts
	}
	result := truncate(path, p.limit())
	for _, f := range p.filters {
		var n int
		result, n = f.Redact(result, Placeholder(f.Name()))
		if counts != nil && n > 0 {
			counts[f.Name()] += n
		}
	}
	return result, counts
}

// CleanOptional is CleanPath for values that may be absent. nil stays nil.
func (p *Pipeline) CleanOptional(path *string) *string {
	if path == nil {
		return nil
	}
	out := p.CleanPath(*path)
	return &out
}

// CleanURL strips the query, fragment and credentials from raw and cleans
// its path. Input that does not parse as a URL is cleaned as a bare path.
func (p *Pipeline) CleanURL(raw string) string {
	out, _ := p.cleanURL(raw, nil)
	return out
}

// CleanURLAndCount is CleanURL that also reports replacements per filter.
func (p *Pipeline) CleanURLAndCount(raw string) (string, Counts) {
	return p.cleanURL(raw, make(Counts))
}

func (p *Pipeline) cleanURL(raw string, counts Counts) (string, Counts) {
	if raw == "" {
		return raw, counts
	}
	u, err := url.Parse(raw)
	if err != nil {
		return p.clean(raw, counts)
	}

	escaped := escapedPlaceholder.ReplaceAllString(u.EscapedPath(), "<$1>")
	path, counts := p.clean(escaped, counts)
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = ""
	u.RawPath = ""
	return u.String() + path, counts
}

// escapedPlaceholder matches a placeholder that url.URL re-escaped when a
// cleaned URL was parsed again.
var escapedPlaceholder = regexp.MustCompile(`%3[Cc](` + FilterJWT + `|` + FilterPNR + `|` + FilterUUID + `|` + FilterEmail + `)%3[Ee]`)

func (p *Pipeline) limit() int {
	if p.maxLength > 0 {
		return p.maxLength
	}
	return DefaultMaxLength
}

// truncate cuts s to at most n bytes without splitting a rune. Invalid
// UTF-8 with no rune start near the limit is cut at n.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for cut := n; cut > 0 && n-cut < utf8.UTFMax; cut-- {
		if utf8.RuneStart(s[cut]) {
			return s[:cut]
		}
	}
	return s[:n]
}

// Placeholder returns the replacement text used by the named filter.
func Placeholder(name string) string {
	return "<" + name + ">"
}
