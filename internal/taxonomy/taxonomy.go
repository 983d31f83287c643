// Package taxonomy answers "what is the most specific label covering all of
// these?" for camera trap tags, from an embedded hierarchy or a remote
// taxonomy service.
package taxonomy

import (
	_ "embed" // For embedding data
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trapwatch/trapwatch/internal/errors"
)

//go:embed data/taxonomy.yaml
var embeddedHierarchy []byte

// Finder resolves the common ancestor of a set of labels. It returns ""
// when no answer is available.
type Finder interface {
	CommonAncestor(labels []string) string
}

// Database is an in-memory label hierarchy. It is read-only after load and
// safe for concurrent use.
type Database struct {
	root    string
	parents map[string]string
	// children keeps declaration order for stable listings
	children map[string][]string
}

// LoadEmbedded loads the hierarchy bundled with the binary.
func LoadEmbedded() (*Database, error) {
	return Load(embeddedHierarchy)
}

// LoadFile loads a hierarchy from a YAML file.
func LoadFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("taxonomy").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return Load(data)
}

// Load parses a YAML hierarchy: a single-key mapping whose key is the root,
// nested mappings for inner labels and sequences or empty values for leaves.
func Load(data []byte) (*Database, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, parseError(err)
	}
	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode || len(doc.Content[0].Content) != 2 {
		return nil, parseError(errors.NewStd("hierarchy must have exactly one root label"))
	}

	top := doc.Content[0]
	db := &Database{
		root:     normalize(top.Content[0].Value),
		parents:  make(map[string]string),
		children: make(map[string][]string),
	}
	if err := db.walk(db.root, top.Content[1]); err != nil {
		return nil, parseError(err)
	}
	return db, nil
}

func (db *Database) walk(parent string, node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			label := normalize(node.Content[i].Value)
			if err := db.add(parent, label); err != nil {
				return err
			}
			if err := db.walk(label, node.Content[i+1]); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, leaf := range node.Content {
			if leaf.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list entries must be labels", leaf.Line)
			}
			if err := db.add(parent, normalize(leaf.Value)); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("line %d: unexpected value %q", node.Line, node.Value)
		}
	}
	return nil
}

func (db *Database) add(parent, label string) error {
	if label == "" {
		return fmt.Errorf("empty label under %q", parent)
	}
	if _, dup := db.parents[label]; dup || label == db.root {
		return fmt.Errorf("duplicate label %q", label)
	}
	db.parents[label] = parent
	db.children[parent] = append(db.children[parent], label)
	return nil
}

func parseError(err error) error {
	return errors.New(err).
		Component("taxonomy").
		Category(errors.CategoryFileParsing).
		Build()
}

// Root returns the root label.
func (db *Database) Root() string {
	return db.root
}

// Contains reports whether label is part of the hierarchy.
func (db *Database) Contains(label string) bool {
	label = normalize(label)
	_, ok := db.parents[label]
	return ok || label == db.root
}

// Parent returns the parent of label, or "" for the root and unknown labels.
func (db *Database) Parent(label string) string {
	return db.parents[normalize(label)]
}

// Children returns the direct children of label in declaration order.
func (db *Database) Children(label string) []string {
	return slices.Clone(db.children[normalize(label)])
}

// Len returns the number of labels including the root.
func (db *Database) Len() int {
	return len(db.parents) + 1
}

// Path returns the labels from the root down to label. An unknown label
// yields just the root.
func (db *Database) Path(label string) []string {
	label = normalize(label)
	if !db.Contains(label) {
		return []string{db.root}
	}
	path := []string{label}
	for cur := label; cur != db.root; {
		cur = db.parents[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}

// CommonAncestor returns the deepest label that is an ancestor of, or equal
// to, every input label. Unknown labels only share the root. An empty input
// yields "".
func (db *Database) CommonAncestor(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	common := db.Path(labels[0])
	for _, l := range labels[1:] {
		p := db.Path(l)
		n := 0
		for n < len(common) && n < len(p) && common[n] == p[n] {
			n++
		}
		common = common[:n]
	}
	return common[len(common)-1]
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
