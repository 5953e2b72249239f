// Package features turns a URL path segment into the fixed-order numeric
// vector consumed by the tree ensemble in package model.
//
// Field names and their order are a contract with the model artifact: trees
// refer to features by name, and Names lists them in vector order.
package features

import (
	"math"
	"regexp"
	"unicode/utf8"

	"github.com/bimmerbailey/rumcollect/internal/textstats"
)

// Count is the number of fields in a Vector.
const Count = 29

// Names lists every feature in vector order.
var Names = [Count]string{
	"length",
	"entropy",
	"ioc",
	"letter_ratio",
	"digit_ratio",
	"special_ratio",
	"uppercase_ratio",
	"vowel_ratio",
	"has_number_start",
	"has_number_middle",
	"has_number_end",
	"consecutive_digits_max",
	"has_uuid_pattern",
	"has_hex_pattern",
	"has_base64_pattern",
	"has_email_pattern",
	"segment_count",
	"avg_segment_length",
	"num_bigrams",
	"digit_bigrams",
	"letter_bigrams",
	"mixed_bigrams",
	"special_bigrams",
	"digit_bigram_ratio",
	"letter_bigram_ratio",
	"mixed_bigram_ratio",
	"special_bigram_ratio",
	"normalized_entropy",
	"complexity_score",
}

var nameIndex = func() map[string]int {
	m := make(map[string]int, Count)
	for i, n := range Names {
		m[n] = i
	}
	return m
}()

var (
	uuidPattern   = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/_-]+={0,2}$`)
)

// Index returns the vector position of the named feature.
func Index(name string) (int, bool) {
	i, ok := nameIndex[name]
	return i, ok
}

// Vector holds the features of one segment. The zero value is the baseline
// for empty input.
type Vector struct {
	Length         int     `json:"length" yaml:"length"`
	Entropy        float64 `json:"entropy" yaml:"entropy"`
	IoC            float64 `json:"ioc" yaml:"ioc"`
	LetterRatio    float64 `json:"letter_ratio" yaml:"letter_ratio"`
	DigitRatio     float64 `json:"digit_ratio" yaml:"digit_ratio"`
	SpecialRatio   float64 `json:"special_ratio" yaml:"special_ratio"`
	UppercaseRatio float64 `json:"uppercase_ratio" yaml:"uppercase_ratio"`
	VowelRatio     float64 `json:"vowel_ratio" yaml:"vowel_ratio"`

	HasNumberStart       bool `json:"has_number_start" yaml:"has_number_start"`
	HasNumberMiddle      bool `json:"has_number_middle" yaml:"has_number_middle"`
	HasNumberEnd         bool `json:"has_number_end" yaml:"has_number_end"`
	ConsecutiveDigitsMax int  `json:"consecutive_digits_max" yaml:"consecutive_digits_max"`

	HasUUIDPattern   bool `json:"has_uuid_pattern" yaml:"has_uuid_pattern"`
	HasHexPattern    bool `json:"has_hex_pattern" yaml:"has_hex_pattern"`
	HasBase64Pattern bool `json:"has_base64_pattern" yaml:"has_base64_pattern"`
	HasEmailPattern  bool `json:"has_email_pattern" yaml:"has_email_pattern"`

	SegmentCount     int     `json:"segment_count" yaml:"segment_count"`
	AvgSegmentLength float64 `json:"avg_segment_length" yaml:"avg_segment_length"`

	NumBigrams         int     `json:"num_bigrams" yaml:"num_bigrams"`
	DigitBigrams       int     `json:"digit_bigrams" yaml:"digit_bigrams"`
	LetterBigrams      int     `json:"letter_bigrams" yaml:"letter_bigrams"`
	MixedBigrams       int     `json:"mixed_bigrams" yaml:"mixed_bigrams"`
	SpecialBigrams     int     `json:"special_bigrams" yaml:"special_bigrams"`
	DigitBigramRatio   float64 `json:"digit_bigram_ratio" yaml:"digit_bigram_ratio"`
	LetterBigramRatio  float64 `json:"letter_bigram_ratio" yaml:"letter_bigram_ratio"`
	MixedBigramRatio   float64 `json:"mixed_bigram_ratio" yaml:"mixed_bigram_ratio"`
	SpecialBigramRatio float64 `json:"special_bigram_ratio" yaml:"special_bigram_ratio"`

	NormalizedEntropy float64 `json:"normalized_entropy" yaml:"normalized_entropy"`
	ComplexityScore   float64 `json:"complexity_score" yaml:"complexity_score"`
}

// Values returns the vector as numbers in Names order. Flags are 0 or 1.
func (v *Vector) Values() [Count]float64 {
	return [Count]float64{
		float64(v.Length),
		v.Entropy,
		v.IoC,
		v.LetterRatio,
		v.DigitRatio,
		v.SpecialRatio,
		v.UppercaseRatio,
		v.VowelRatio,
		flag(v.HasNumberStart),
		flag(v.HasNumberMiddle),
		flag(v.HasNumberEnd),
		float64(v.ConsecutiveDigitsMax),
		flag(v.HasUUIDPattern),
		flag(v.HasHexPattern),
		flag(v.HasBase64Pattern),
		flag(v.HasEmailPattern),
		float64(v.SegmentCount),
		v.AvgSegmentLength,
		float64(v.NumBigrams),
		float64(v.DigitBigrams),
		float64(v.LetterBigrams),
		float64(v.MixedBigrams),
		float64(v.SpecialBigrams),
		v.DigitBigramRatio,
		v.LetterBigramRatio,
		v.MixedBigramRatio,
		v.SpecialBigramRatio,
		v.NormalizedEntropy,
		v.ComplexityScore,
	}
}

// Get looks a feature up by name.
func (v *Vector) Get(name string) (float64, bool) {
	i, ok := nameIndex[name]
	if !ok {
		return 0, false
	}
	return v.Values()[i], true
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Extract computes the feature vector of segment. It never fails; empty
// input yields the zero Vector.
func Extract(segment string) Vector {
	s := textstats.Truncate(segment)
	n := utf8.RuneCountInString(s)

	v := Vector{
		Length:  n,
		Entropy: textstats.ShannonEntropy(s),
		IoC:     textstats.NormalizedIoC(s),
	}
	if n == 0 {
		return v
	}

	var letters, digits, specials, upper, vowels, hex, separators int
	var run int
	// digit flags of the two previous runes
	var d1, d2 bool
	var first, last rune
	i := 0
	for _, r := range s {
		if i == 0 {
			first = r
		}
		last = r
		digit := isDigit(r)

		switch {
		case isLetter(r):
			letters++
			if r >= 'A' && r <= 'Z' {
				upper++
			}
			if isVowel(r) {
				vowels++
			}
		case digit:
			digits++
		default:
			specials++
		}

		if isHex(r) {
			hex++
		}
		if r == '-' || r == '_' || r == '.' {
			separators++
		}

		if digit {
			run++
			if run > v.ConsecutiveDigitsMax {
				v.ConsecutiveDigitsMax = run
			}
		} else {
			run = 0
		}

		// a single digit framed by non-digits
		if i >= 2 && !d2 && d1 && !digit {
			v.HasNumberMiddle = true
		}
		d2, d1 = d1, digit
		i++
	}

	fn := float64(n)
	v.LetterRatio = float64(letters) / fn
	v.DigitRatio = float64(digits) / fn
	v.SpecialRatio = float64(specials) / fn
	if letters > 0 {
		v.UppercaseRatio = float64(upper) / float64(letters)
		v.VowelRatio = float64(vowels) / float64(letters)
	}

	v.HasNumberStart = isDigit(first)
	v.HasNumberEnd = isDigit(last)

	v.HasUUIDPattern = uuidPattern.MatchString(s)
	v.HasHexPattern = float64(hex)/fn > 0.8
	v.HasBase64Pattern = n%4 == 0 && base64Pattern.MatchString(s)
	v.HasEmailPattern = containsEmailMarker(s)

	v.SegmentCount = separators + 1
	v.AvgSegmentLength = float64(n-separators) / float64(v.SegmentCount)

	if n >= 2 {
		countBigrams(&v, s, n-1)
	}

	v.NormalizedEntropy = v.Entropy / math.Log2(fn)
	if n == 1 {
		v.NormalizedEntropy = 0
	}

	v.ComplexityScore = v.Entropy*0.3 + v.DigitRatio*0.2 + (1-v.LetterRatio)*0.2
	if v.ConsecutiveDigitsMax > 3 {
		v.ComplexityScore += 0.3
	}
	return v
}

// countBigrams classifies adjacent pairs of the normalized stream: ASCII
// letters are lower-cased, digits and '-' '_' kept, everything else read
// as '%'.
func countBigrams(v *Vector, s string, total int) {
	var prev rune
	started := false
	for _, r := range s {
		c := normalizeBigramRune(r)
		if started {
			pd, cd := isDigit(prev), isDigit(c)
			pl, cl := isLetter(prev), isLetter(c)
			switch {
			case pd && cd:
				v.DigitBigrams++
			case pl && cl:
				v.LetterBigrams++
			case !pd && !pl || !cd && !cl:
				v.SpecialBigrams++
			default:
				v.MixedBigrams++
			}
		}
		prev = c
		started = true
	}

	v.NumBigrams = total
	t := float64(total)
	v.DigitBigramRatio = float64(v.DigitBigrams) / t
	v.LetterBigramRatio = float64(v.LetterBigrams) / t
	v.MixedBigramRatio = float64(v.MixedBigrams) / t
	v.SpecialBigramRatio = float64(v.SpecialBigrams) / t
}

func normalizeBigramRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	if r >= 'a' && r <= 'z' || isDigit(r) || r == '-' || r == '_' {
		return r
	}
	return '%'
}

func containsEmailMarker(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			return true
		}
		if s[i] == '%' && i+2 < len(s) && s[i+1] == '4' && s[i+2] == '0' {
			return true
		}
	}
	return false
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHex(r rune) bool {
	return isDigit(r) || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}
