package privacy

import (
	"regexp"
	"strings"

	"github.com/bimmerbailey/rumcollect/internal/textstats"
)

// Filter rewrites sensitive substrings of text to placeholder and reports
// how many replacements it made. Filters are total: empty input comes back
// unchanged, and running a filter on its own output changes nothing.
type Filter interface {
	Name() string
	Redact(text, placeholder string) (string, int)
}

// Built-in patterns for the structural filters.
var (
	// JWT tokens: eyJhbGciOiJIUzI1NiIs...
	jwtRegex = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

	// UUIDs: 550e8400-e29b-41d4-a716-446655440000
	uuidRegex = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

	// Email addresses: user@example.com
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// Filter names.
const (
	FilterJWT   = "jwt"
	FilterPNR   = "pnr"
	FilterUUID  = "uuid"
	FilterEmail = "email"
)

// FilterInfo describes a built-in filter.
type FilterInfo struct {
	Name        string
	Description string
	Default     bool
}

// BuiltInFilters lists every filter in the order the pipeline applies them.
var BuiltInFilters = []FilterInfo{
	{Name: FilterJWT, Description: "JSON Web Tokens", Default: true},
	{Name: FilterPNR, Description: "Booking codes and other short random identifiers", Default: true},
	{Name: FilterUUID, Description: "Lower-case UUIDs"},
	{Name: FilterEmail, Description: "Email addresses"},
}

// DefaultFilters returns the filters enabled when none are configured.
// The order is part of the contract: jwt runs before pnr.
func DefaultFilters() []string {
	return []string{FilterJWT, FilterPNR}
}

// regexFilter replaces every non-overlapping match of a pattern.
type regexFilter struct {
	name  string
	regex *regexp.Regexp
}

func (f regexFilter) Name() string { return f.name }

func (f regexFilter) Redact(text, placeholder string) (string, int) {
	if text == "" {
		return text, 0
	}
	count := 0
	out := f.regex.ReplaceAllStringFunc(text, func(string) string {
		count++
		return placeholder
	})
	return out, count
}

// JWTFilter masks JSON Web Tokens.
func JWTFilter() Filter { return regexFilter{name: FilterJWT, regex: jwtRegex} }

// UUIDFilter masks lower-case UUIDs.
func UUIDFilter() Filter { return regexFilter{name: FilterUUID, regex: uuidRegex} }

// EmailFilter masks email addresses.
func EmailFilter() Filter { return regexFilter{name: FilterEmail, regex: emailRegex} }

// SensitivePrefix is the path segment after which any booking-code shaped
// segment is masked without consulting the statistical gate.
const SensitivePrefix = "trip"

// PNRConfig holds the thresholds of the booking-code filter.
type PNRConfig struct {
	EntropyThreshold float64 `mapstructure:"entropy_threshold"`
	BigramThreshold  float64 `mapstructure:"bigram_threshold"`
	MinLength        int     `mapstructure:"min_length"`
	MaxLength        int     `mapstructure:"max_length"`
}

// DefaultPNRConfig returns the calibrated thresholds.
func DefaultPNRConfig() PNRConfig {
	return PNRConfig{
		EntropyThreshold: 2.0,
		BigramThreshold:  0.01,
		MinLength:        5,
		MaxLength:        7,
	}
}

func (c PNRConfig) withDefaults() PNRConfig {
	d := DefaultPNRConfig()
	if c.MinLength <= 0 {
		c.MinLength = d.MinLength
	}
	if c.MaxLength < c.MinLength {
		c.MaxLength = d.MaxLength
		if c.MaxLength < c.MinLength {
			c.MaxLength = c.MinLength
		}
	}
	return c
}

// PNRFilter masks path segments that look like booking codes: upper-case
// letters and digits of the configured length that are either random
// (entropy at or above the threshold) or implausible as language (bigram
// score at or below the threshold). Segments right after SensitivePrefix
// are masked whenever they have the right shape.
type PNRFilter struct {
	tables *textstats.Tables
	cfg    PNRConfig
}

// NewPNRFilter builds the booking-code filter over tables.
func NewPNRFilter(tables *textstats.Tables, cfg PNRConfig) *PNRFilter {
	return &PNRFilter{tables: tables, cfg: cfg.withDefaults()}
}

// Name implements Filter.
func (f *PNRFilter) Name() string { return FilterPNR }

// Redact implements Filter. Empty segments are kept so the slash layout of
// the path survives reassembly.
func (f *PNRFilter) Redact(text, placeholder string) (string, int) {
	if text == "" {
		return text, 0
	}

	segments := strings.Split(text, "/")
	count := 0
	prev := ""
	for i, seg := range segments {
		original := seg
		if seg != "" && f.isCandidate(seg) && (prev == SensitivePrefix || f.looksRandom(seg)) {
			segments[i] = placeholder
			count++
		}
		prev = original
	}
	if count == 0 {
		return text, 0
	}
	return strings.Join(segments, "/"), count
}

// Candidate reports whether segment has the booking-code shape.
func (f *PNRFilter) Candidate(segment string) bool {
	return f.isCandidate(segment)
}

// Gate reports whether the statistical gate alone would mask segment.
// It does not check the shape.
func (f *PNRFilter) Gate(segment string) bool {
	return f.looksRandom(segment)
}

func (f *PNRFilter) isCandidate(s string) bool {
	if len(s) < f.cfg.MinLength || len(s) > f.cfg.MaxLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func (f *PNRFilter) looksRandom(s string) bool {
	if textstats.ShannonEntropy(s) >= f.cfg.EntropyThreshold {
		return true
	}
	return f.tables.BigramScore(s) <= f.cfg.BigramThreshold
}
