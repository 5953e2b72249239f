// Package textstats provides character-level statistics used to tell
// natural-language URL segments apart from opaque identifiers.
//
// Frequency tables are built once from a corpus of path segments and are
// immutable afterwards, so a single *Tables can be shared by any number of
// goroutines:
//
//	tables, err := textstats.LoadDefault()
//	if err != nil {
//	    return err
//	}
//	score := tables.BigramScore("AB123C")
package textstats

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Alphabet sizes for the lower-case and rich tables.
const (
	LetterAlphabetSize = 26
	RichAlphabetSize   = 57
)

// RichAlphabet is the symbol set of the rich trigram table. The last symbol
// doubles as the placeholder for anything outside the alphabet.
const RichAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz._-:%"

const richPlaceholder = RichAlphabetSize - 1

// ErrEmptyCorpus is returned when a corpus holds no usable entries.
var ErrEmptyCorpus = errors.New("corpus has no usable entries")

//go:embed data/corpus.csv
var defaultCorpus []byte

var richIndex [256]int

func init() {
	for i := range richIndex {
		richIndex[i] = richPlaceholder
	}
	for i := 0; i < len(RichAlphabet); i++ {
		richIndex[RichAlphabet[i]] = i
	}
}

// Table is a flattened N-dimensional probability table.
// Index of (a, b, c) is ((a*A+b)*A+c) where A is the alphabet size.
type Table struct {
	Order    int
	Alphabet int
	Probs    []float64
}

func newTable(order, alphabet int) Table {
	size := 1
	for i := 0; i < order; i++ {
		size *= alphabet
	}
	return Table{Order: order, Alphabet: alphabet, Probs: make([]float64, size)}
}

// At returns the probability stored for the given symbol offsets.
// Out of range offsets read as 0.
func (t Table) At(offsets ...int) float64 {
	if len(offsets) != t.Order {
		return 0
	}
	idx := 0
	for _, o := range offsets {
		if o < 0 || o >= t.Alphabet {
			return 0
		}
		idx = idx*t.Alphabet + o
	}
	return t.Probs[idx]
}

// NonZero counts populated cells.
func (t Table) NonZero() int {
	n := 0
	for _, p := range t.Probs {
		if p > 0 {
			n++
		}
	}
	return n
}

// NGram is a table cell decoded back into its symbols.
type NGram struct {
	Symbols     string  `json:"ngram" yaml:"ngram"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Top returns the n most probable cells, highest first. Ties keep table
// order.
func (t Table) Top(n int) []NGram {
	idx := make([]int, 0, len(t.Probs))
	for i, p := range t.Probs {
		if p > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.Probs[idx[a]] > t.Probs[idx[b]]
	})
	if n >= 0 && len(idx) > n {
		idx = idx[:n]
	}

	out := make([]NGram, len(idx))
	for k, i := range idx {
		out[k] = NGram{Symbols: t.symbols(i), Probability: t.Probs[i]}
	}
	return out
}

// symbols decodes a flat index into the n-gram it counts.
func (t Table) symbols(i int) string {
	buf := make([]byte, t.Order)
	for pos := t.Order - 1; pos >= 0; pos-- {
		o := i % t.Alphabet
		i /= t.Alphabet
		if t.Alphabet == RichAlphabetSize {
			buf[pos] = RichAlphabet[o]
		} else {
			buf[pos] = byte('a' + o)
		}
	}
	return string(buf)
}

// normalize turns raw counts into probabilities summing to 1.
func (t Table) normalize(total float64) {
	if total == 0 {
		return
	}
	for i, c := range t.Probs {
		t.Probs[i] = c / total
	}
}

// Tables bundles every frequency table used by the scorers.
type Tables struct {
	Bigram      Table
	Trigram     Table
	Quadgram    Table
	RichTrigram Table

	entries int
}

// Entries reports how many corpus rows contributed to the tables.
func (t *Tables) Entries() int {
	return t.entries
}

// CorpusEntry is a single corpus row: a segment and how often it was seen.
type CorpusEntry struct {
	Segment string
	Count   int
}

// ReadCorpus parses a "segment,count" CSV. A header row and malformed
// rows are skipped.
func ReadCorpus(r io.Reader) ([]CorpusEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var entries []CorpusEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil || count <= 0 {
			continue
		}
		entries = append(entries, CorpusEntry{Segment: strings.TrimSpace(record[0]), Count: count})
	}
	return entries, nil
}

// Build tallies n-gram counts for every corpus entry and normalizes each
// table by its grand total.
func Build(entries []CorpusEntry) (*Tables, error) {
	t := &Tables{
		Bigram:      newTable(2, LetterAlphabetSize),
		Trigram:     newTable(3, LetterAlphabetSize),
		Quadgram:    newTable(4, LetterAlphabetSize),
		RichTrigram: newTable(3, RichAlphabetSize),
	}

	var totals [5]float64
	var richTotal float64
	buf := make([]byte, 0, 64)
	richBuf := make([]int, 0, 64)

	for _, e := range entries {
		if e.Count <= 0 {
			continue
		}
		count := float64(e.Count)
		used := false

		buf = appendLetterOffsets(buf[:0], e.Segment)
		for order, table := range []Table{t.Bigram, t.Trigram, t.Quadgram} {
			n := order + 2
			if len(buf) < n {
				continue
			}
			for i := 0; i+n <= len(buf); i++ {
				idx := 0
				for _, o := range buf[i : i+n] {
					idx = idx*LetterAlphabetSize + int(o)
				}
				table.Probs[idx] += count
				totals[n] += count
			}
			used = true
		}

		richBuf = appendRichOffsets(richBuf[:0], e.Segment)
		if len(richBuf) >= 3 {
			for i := 0; i+3 <= len(richBuf); i++ {
				idx := (richBuf[i]*RichAlphabetSize+richBuf[i+1])*RichAlphabetSize + richBuf[i+2]
				t.RichTrigram.Probs[idx] += count
				richTotal += count
			}
			used = true
		}

		if used {
			t.entries++
		}
	}

	if t.entries == 0 {
		return nil, ErrEmptyCorpus
	}

	t.Bigram.normalize(totals[2])
	t.Trigram.normalize(totals[3])
	t.Quadgram.normalize(totals[4])
	t.RichTrigram.normalize(richTotal)
	return t, nil
}

// LoadCorpus reads a corpus CSV from disk and builds tables from it.
func LoadCorpus(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	entries, err := ReadCorpus(f)
	if err != nil {
		return nil, err
	}
	return Build(entries)
}

// LoadDefault builds tables from the embedded path-segment corpus.
func LoadDefault() (*Tables, error) {
	entries, err := ReadCorpus(bytes.NewReader(defaultCorpus))
	if err != nil {
		return nil, err
	}
	return Build(entries)
}

// Load builds tables from path, or from the embedded corpus when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return LoadDefault()
	}
	return LoadCorpus(path)
}

// appendLetterOffsets lower-cases s, drops everything outside a-z and
// appends the 0-25 offsets of what remains.
func appendLetterOffsets(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c >= 'a' && c <= 'z' {
			dst = append(dst, c-'a')
		}
	}
	return dst
}

// appendRichOffsets maps each rune of s onto the rich alphabet.
func appendRichOffsets(dst []int, s string) []int {
	for _, r := range s {
		if r < utf8.RuneSelf {
			dst = append(dst, richIndex[byte(r)])
		} else {
			dst = append(dst, richPlaceholder)
		}
	}
	return dst
}
