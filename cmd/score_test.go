package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newScoreTestCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{Use: "score"}
	cmd.SetOut(out)
	cmd.Flags().Bool("features", false, "include the extracted feature vector")
	return cmd
}

func TestScoreText(t *testing.T) {
	resetConfig(t, "text")

	var out bytes.Buffer
	cmd := newScoreTestCmd(&out)
	if err := runScore(cmd, []string{"abc", "x7Kq9Zt2LmP4"}); err != nil {
		t.Fatalf("runScore() error = %v", err)
	}

	output := out.String()
	if !strings.HasPrefix(output, "SEGMENT") {
		t.Errorf("expected a header row, got:\n%s", output)
	}
	if !strings.Contains(output, "abc") || !strings.Contains(output, "0.0000") {
		t.Errorf("short segment should score 0, got:\n%s", output)
	}
	if !strings.Contains(output, "x7Kq9Zt2LmP4") {
		t.Errorf("missing segment row, got:\n%s", output)
	}
}

func TestScoreJSONWithFeatures(t *testing.T) {
	resetConfig(t, "json")

	var out bytes.Buffer
	cmd := newScoreTestCmd(&out)
	_ = cmd.Flags().Set("features", "true")

	if err := runScore(cmd, []string{"abcd", "order-12345678"}); err != nil {
		t.Fatalf("runScore() error = %v", err)
	}

	var results []struct {
		Segment     string                 `json:"segment"`
		IsPII       bool                   `json:"isPII"`
		Probability float64                `json:"probability"`
		Features    map[string]interface{} `json:"features"`
	}
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v\noutput: %s", err, out.String())
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Segment != "abcd" || results[0].IsPII || results[0].Probability != 0 {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Probability < 0 || results[1].Probability > 1 {
		t.Errorf("probability out of range: %v", results[1].Probability)
	}
	if len(results[1].Features) == 0 {
		t.Error("expected a feature vector")
	}
}

func TestScoreMissingModel(t *testing.T) {
	resetConfig(t, "text")
	viper.Set("model.path", filepath.Join(t.TempDir(), "missing.json"))

	var out bytes.Buffer
	if err := runScore(newScoreTestCmd(&out), []string{"abcdef"}); err == nil {
		t.Error("expected an error for a missing model file")
	}
}
