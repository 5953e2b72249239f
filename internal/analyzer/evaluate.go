package analyzer

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bimmerbailey/rumcollect/internal/privacy"
)

// MaxErrorRate is the acceptable false positive and false negative rate of
// the booking-code filter, in percent.
const MaxErrorRate = 2.0

//go:embed data/common_words.txt
var commonWords string

//go:embed data/quasi_pnrs.txt
var quasiPNRs string

// CommonWords returns the built-in list of dictionary words that must not
// be masked.
func CommonWords() []string {
	return splitList(commonWords)
}

// QuasiPNRs returns the built-in list of booking-code shaped strings that
// must be masked.
func QuasiPNRs() []string {
	return splitList(quasiPNRs)
}

// ReadList reads one entry per line. Blank lines and lines starting with
// '#' are skipped.
func ReadList(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}
	return out, nil
}

// ReadListFile is ReadList over a file.
func ReadListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list: %w", err)
	}
	defer f.Close()
	return ReadList(f)
}

func splitList(s string) []string {
	out, _ := ReadList(strings.NewReader(s))
	return out
}

// Evaluation reports how the pipeline treats words that should survive and
// codes that should be masked.
type Evaluation struct {
	Words             int      `json:"words" yaml:"words"`
	Codes             int      `json:"codes" yaml:"codes"`
	FalsePositives    []string `json:"false_positives" yaml:"false_positives"`
	FalseNegatives    []string `json:"false_negatives" yaml:"false_negatives"`
	FalsePositiveRate float64  `json:"false_positive_rate" yaml:"false_positive_rate"`
	FalseNegativeRate float64  `json:"false_negative_rate" yaml:"false_negative_rate"`
}

// Passed reports whether both rates are within MaxErrorRate.
func (e Evaluation) Passed() bool {
	return e.FalsePositiveRate <= MaxErrorRate && e.FalseNegativeRate <= MaxErrorRate
}

// Evaluate embeds every word and code as the middle segment of
// /content/<segment>/page and checks whether the pipeline masked it.
// Rates are percentages.
func Evaluate(p *privacy.Pipeline, words, codes []string) Evaluation {
	placeholder := privacy.Placeholder(privacy.FilterPNR)
	masked := func(segment string) bool {
		return strings.Contains(p.CleanPath("/content/"+segment+"/page"), placeholder)
	}

	ev := Evaluation{
		Words:          len(words),
		Codes:          len(codes),
		FalsePositives: []string{},
		FalseNegatives: []string{},
	}
	for _, w := range words {
		if masked(w) {
			ev.FalsePositives = append(ev.FalsePositives, w)
		}
	}
	for _, c := range codes {
		if !masked(c) {
			ev.FalseNegatives = append(ev.FalseNegatives, c)
		}
	}

	if ev.Words > 0 {
		ev.FalsePositiveRate = float64(len(ev.FalsePositives)) * 100 / float64(ev.Words)
	}
	if ev.Codes > 0 {
		ev.FalseNegativeRate = float64(len(ev.FalseNegatives)) * 100 / float64(ev.Codes)
	}
	return ev
}
