// Package model evaluates a gradient-boosted decision-tree ensemble that
// estimates how likely a URL path segment is to carry personal data.
//
// Trees are stored as flat node arenas addressed by index. Every tree is
// checked at load time for dangling references and cycles, so evaluation
// always terminates. A loaded *Model is immutable and safe for concurrent use.
package model

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"unicode/utf8"

	"github.com/bimmerbailey/rumcollect/internal/features"
)

// DefaultThreshold is the probability at or above which Detect reports PII.
const DefaultThreshold = 0.5

// MinLength is the shortest segment, in runes, the model will score.
// Shorter segments always score 0.
const MinLength = 5

var (
	// ErrEmptyModel is returned for a model without trees.
	ErrEmptyModel = errors.New("model has no trees")
	// ErrUnknownFeature is returned when a split names a feature the
	// extractor does not produce.
	ErrUnknownFeature = errors.New("unknown feature")
	// ErrCycle is returned when a tree references one of its own ancestors.
	ErrCycle = errors.New("tree contains a cycle")
	// ErrInvalidNode is returned for malformed nodes and dangling child
	// references.
	ErrInvalidNode = errors.New("invalid tree node")
)

//go:embed data/pii_model.json
var defaultModel []byte

// Node is one arena entry. Split nodes send a feature value below
// Threshold to Yes and everything else to No. Leaves have Feature -1.
type Node struct {
	Feature   int
	Threshold float64
	Yes       int32
	No        int32
	Leaf      float64
}

// IsLeaf reports whether n terminates a traversal.
func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// LeafNode builds a leaf carrying value.
func LeafNode(value float64) Node {
	return Node{Feature: -1, Leaf: value}
}

// Tree is a validated node arena rooted at index 0.
type Tree struct {
	nodes []Node
}

// NewTree validates nodes and wraps them in a Tree.
func NewTree(nodes []Node) (Tree, error) {
	if len(nodes) == 0 {
		return Tree{}, fmt.Errorf("%w: empty tree", ErrInvalidNode)
	}
	for i, n := range nodes {
		if n.IsLeaf() {
			continue
		}
		if n.Feature >= features.Count {
			return Tree{}, fmt.Errorf("%w: node %d feature index %d", ErrUnknownFeature, i, n.Feature)
		}
		if !inRange(n.Yes, len(nodes)) || !inRange(n.No, len(nodes)) {
			return Tree{}, fmt.Errorf("%w: node %d points outside the tree", ErrInvalidNode, i)
		}
	}

	state := make([]uint8, len(nodes))
	if err := checkAcyclic(nodes, 0, state); err != nil {
		return Tree{}, err
	}

	owned := make([]Node, len(nodes))
	copy(owned, nodes)
	return Tree{nodes: owned}, nil
}

func inRange(i int32, n int) bool {
	return i >= 0 && int(i) < n
}

const (
	unvisited uint8 = iota
	onPath
	done
)

func checkAcyclic(nodes []Node, i int32, state []uint8) error {
	switch state[i] {
	case onPath:
		return fmt.Errorf("%w: node %d", ErrCycle, i)
	case done:
		return nil
	}
	state[i] = onPath
	if n := nodes[i]; !n.IsLeaf() {
		if err := checkAcyclic(nodes, n.Yes, state); err != nil {
			return err
		}
		if err := checkAcyclic(nodes, n.No, state); err != nil {
			return err
		}
	}
	state[i] = done
	return nil
}

// Len returns the number of nodes in the tree.
func (t Tree) Len() int {
	return len(t.nodes)
}

// Eval walks the tree with values and returns the leaf reached.
func (t Tree) Eval(values *[features.Count]float64) float64 {
	i := int32(0)
	for {
		n := &t.nodes[i]
		if n.IsLeaf() {
			return n.Leaf
		}
		if values[n.Feature] < n.Threshold {
			i = n.Yes
		} else {
			i = n.No
		}
	}
}

// Model is an ordered tree ensemble.
type Model struct {
	Version string
	trees   []Tree
}

// New assembles a model from validated trees.
func New(version string, trees []Tree) (*Model, error) {
	if len(trees) == 0 {
		return nil, ErrEmptyModel
	}
	return &Model{Version: version, trees: trees}, nil
}

// Trees returns the number of trees in the ensemble.
func (m *Model) Trees() int {
	return len(m.trees)
}

// Nodes returns the total node count across all trees.
func (m *Model) Nodes() int {
	total := 0
	for _, t := range m.trees {
		total += t.Len()
	}
	return total
}

// Raw sums the leaf contributions of every tree for v.
func (m *Model) Raw(v *features.Vector) float64 {
	values := v.Values()
	sum := 0.0
	for _, t := range m.trees {
		sum += t.Eval(&values)
	}
	return sum
}

// ScoreVector returns sigmoid(Raw(v)).
func (m *Model) ScoreVector(v *features.Vector) float64 {
	return 1 / (1 + math.Exp(-m.Raw(v)))
}

// Score returns the PII probability of segment in [0, 1]. Segments shorter
// than MinLength runes score 0.
func (m *Model) Score(segment string) float64 {
	if utf8.RuneCountInString(segment) < MinLength {
		return 0
	}
	v := features.Extract(segment)
	return m.ScoreVector(&v)
}

// Detection is the outcome of Detect.
type Detection struct {
	IsPII       bool    `json:"isPII" yaml:"is_pii"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Detect scores segment and compares the probability against threshold.
func (m *Model) Detect(segment string, threshold float64) Detection {
	p := m.Score(segment)
	return Detection{IsPII: p >= threshold, Probability: p}
}

// jsonNode is the exported artifact shape: a leaf or a split with nested
// children.
type jsonNode struct {
	Leaf      *float64  `json:"leaf,omitempty"`
	Feature   string    `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Yes       *jsonNode `json:"yes,omitempty"`
	No        *jsonNode `json:"no,omitempty"`
}

type jsonModel struct {
	Version  string      `json:"version"`
	Features []string    `json:"features"`
	Trees    []*jsonNode `json:"trees"`
}

// Parse decodes a JSON model artifact.
func Parse(data []byte) (*Model, error) {
	var raw jsonModel
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	for _, name := range raw.Features {
		if _, ok := features.Index(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
	}

	trees := make([]Tree, 0, len(raw.Trees))
	for i, root := range raw.Trees {
		var nodes []Node
		if _, err := flatten(root, &nodes); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		tree, err := NewTree(nodes)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, tree)
	}
	return New(raw.Version, trees)
}

// flatten appends n and its subtree to nodes in pre-order and returns the
// index of n.
func flatten(n *jsonNode, nodes *[]Node) (int32, error) {
	if n == nil {
		return 0, fmt.Errorf("%w: missing node", ErrInvalidNode)
	}
	idx := int32(len(*nodes))
	if n.Leaf != nil {
		*nodes = append(*nodes, LeafNode(*n.Leaf))
		return idx, nil
	}

	feature, ok := features.Index(n.Feature)
	if !ok {
		if n.Feature == "" {
			return 0, fmt.Errorf("%w: node has neither leaf nor feature", ErrInvalidNode)
		}
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, n.Feature)
	}
	*nodes = append(*nodes, Node{Feature: feature, Threshold: n.Threshold})

	yes, err := flatten(n.Yes, nodes)
	if err != nil {
		return 0, err
	}
	no, err := flatten(n.No, nodes)
	if err != nil {
		return 0, err
	}
	(*nodes)[idx].Yes = yes
	(*nodes)[idx].No = no
	return idx, nil
}

// LoadDefault parses the embedded model.
func LoadDefault() (*Model, error) {
	return Parse(defaultModel)
}

// Load reads a model artifact from path, or the embedded model when path
// is empty.
func Load(path string) (*Model, error) {
	if path == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Parse(data)
}
