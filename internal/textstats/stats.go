package textstats

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// MaxSegmentLength bounds the number of runes any statistic looks at.
// Longer inputs are truncated so the worst case stays linear in this bound.
const MaxSegmentLength = 4096

// englishIoC is the index of coincidence of English text, used to
// normalize the raw statistic into [0, 1].
const englishIoC = 0.067

// Truncate returns s cut to at most MaxSegmentLength runes.
func Truncate(s string) string {
	if len(s) <= MaxSegmentLength {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxSegmentLength {
			return s[:i]
		}
		n++
	}
	return s
}

// ShannonEntropy returns -Σ p(c)·log2 p(c) over the characters of s.
// The empty string has entropy 0.
func ShannonEntropy(s string) float64 {
	s = Truncate(s)
	if s == "" {
		return 0
	}

	var counts [256]int
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
		counts[s[i]]++
	}
	if ascii {
		return entropyFromCounts(counts[:], len(s))
	}

	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}
	entropy := 0.0
	for _, n := range freq {
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func entropyFromCounts(counts []int, total int) float64 {
	entropy := 0.0
	for _, n := range counts {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// IndexOfCoincidence returns Σ fᵢ(fᵢ−1) / (N(N−1)) over case-folded
// character counts. Lower values mean more uniform, random-looking text.
// Strings shorter than two characters yield 0.
func IndexOfCoincidence(s string) float64 {
	s = Truncate(s)
	freq := make(map[rune]int, 16)
	n := 0
	for _, r := range s {
		freq[unicode.ToLower(r)]++
		n++
	}
	if n < 2 {
		return 0
	}
	sum := 0
	for _, f := range freq {
		sum += f * (f - 1)
	}
	return float64(sum) / float64(n*(n-1))
}

// NormalizedIoC scales IndexOfCoincidence against English text and clamps
// the result to 1.
func NormalizedIoC(s string) float64 {
	return math.Min(IndexOfCoincidence(s)/englishIoC, 1.0)
}

// BigramScore sums bigram probabilities over every overlapping window of
// the lower-cased letters of s. It is a likelihood sum, not a probability.
func (t *Tables) BigramScore(s string) float64 {
	return t.letterScore(t.Bigram, s)
}

// TrigramScore is BigramScore over three-letter windows.
func (t *Tables) TrigramScore(s string) float64 {
	return t.letterScore(t.Trigram, s)
}

// QuadgramScore is BigramScore over four-letter windows.
func (t *Tables) QuadgramScore(s string) float64 {
	return t.letterScore(t.Quadgram, s)
}

func (t *Tables) letterScore(table Table, s string) float64 {
	var stack [64]byte
	letters := appendLetterOffsets(stack[:0], Truncate(s))
	n := table.Order
	if len(letters) < n {
		return 0
	}

	sum := 0.0
	for i := 0; i+n <= len(letters); i++ {
		idx := 0
		for _, o := range letters[i : i+n] {
			idx = idx*LetterAlphabetSize + int(o)
		}
		sum += table.Probs[idx]
	}
	return sum
}

// RichTrigramScore sums case-sensitive trigram probabilities over the
// 57-symbol alphabet. Symbols outside the alphabet count as '%'.
// Inputs shorter than three characters score 0.
func (t *Tables) RichTrigramScore(s string) float64 {
	var stack [64]int
	symbols := appendRichOffsets(stack[:0], Truncate(s))
	if len(symbols) < 3 {
		return 0
	}

	sum := 0.0
	for i := 0; i+3 <= len(symbols); i++ {
		idx := (symbols[i]*RichAlphabetSize+symbols[i+1])*RichAlphabetSize + symbols[i+2]
		sum += t.RichTrigram.Probs[idx]
	}
	return sum
}
