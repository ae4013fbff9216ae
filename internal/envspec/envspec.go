// Package envspec reads and writes conda environment files.
//
// An environment file has the shape
//
//	name: <string>
//	channels: [<string>, ...]   # omitted when empty
//	dependencies:
//	  - <string>
//	  - pip:
//	      - <string>
//
// Plain dependencies and pip dependencies are kept in separate lists and are
// always written back sorted, with the pip block last. Channel order is a
// priority order and is never changed.
package envspec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"condahooks/internal/hookerr"
)

// DefaultFilenames are probed in order when no env file is named explicitly.
var DefaultFilenames = []string{
	"environment.yml",
	"environment.yaml",
	"conda.yml",
	"conda.yaml",
}

// Spec is the in-memory form of one environment file.
type Spec struct {
	Path            string
	Name            string
	Dependencies    []string
	PipDependencies []string
	Channels        []string
}

// document is the serialized layout. Field order is the output key order.
type document struct {
	Name         string   `yaml:"name"`
	Channels     []string `yaml:"channels,omitempty"`
	Dependencies []any    `yaml:"dependencies"`
}

// Load reads the env file at path.
func Load(path string) (*Spec, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, hookerr.EnvFileNotFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, hookerr.NotAFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		if e, ok := hookerr.As(err); ok && e.Path == "" {
			e.Path = path
		}
		return nil, err
	}
	s.Path = path
	return s, nil
}

// FindDefault returns the first of DefaultFilenames present in dir. An empty
// dir means the working directory, and the returned path is then relative.
func FindDefault(dir string) (string, error) {
	for _, name := range DefaultFilenames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", hookerr.NoEnvFile()
}

// LoadDefault loads the first default env file found in dir.
func LoadDefault(dir string) (*Spec, error) {
	path, err := FindDefault(dir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Parse decodes an environment document. The result has no Path.
func Parse(data []byte) (*Spec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, hookerr.InvalidEnvFile("", "parse: "+err.Error())
	}

	s := &Spec{}
	var body *yaml.Node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		body = resolve(root.Content[0])
	}
	if body == nil || isNull(body) {
		return nil, hookerr.InvalidEnvFile("", "environment name missing")
	}
	if body.Kind != yaml.MappingNode {
		return nil, hookerr.InvalidEnvFile("", "document is not a mapping")
	}

	var haveName bool
	for i := 0; i+1 < len(body.Content); i += 2 {
		key, val := resolve(body.Content[i]), resolve(body.Content[i+1])
		switch key.Value {
		case "name":
			if val.Kind != yaml.ScalarNode || isNull(val) || val.Value == "" {
				return nil, hookerr.InvalidEnvFile("", "environment name missing")
			}
			s.Name = val.Value
			haveName = true
		case "channels":
			if isNull(val) {
				continue
			}
			if err := val.Decode(&s.Channels); err != nil {
				return nil, hookerr.InvalidEnvFile("", "channels should be a list of strings")
			}
		case "dependencies":
			if err := s.parseDependencies(val); err != nil {
				return nil, err
			}
		}
	}
	if !haveName {
		return nil, hookerr.InvalidEnvFile("", "environment name missing")
	}
	if s.Channels == nil {
		s.Channels = []string{}
	}

	s.Sort()
	return s, nil
}

func (s *Spec) parseDependencies(n *yaml.Node) error {
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return hookerr.InvalidEnvFile("", "dependencies should be a list")
	}
	for _, dep := range n.Content {
		dep = resolve(dep)
		switch dep.Kind {
		case yaml.ScalarNode:
			if isNull(dep) {
				continue
			}
			s.Dependencies = append(s.Dependencies, dep.Value)
		case yaml.MappingNode:
			for i := 0; i+1 < len(dep.Content); i += 2 {
				if resolve(dep.Content[i]).Value != "pip" {
					continue
				}
				pip, err := pipEntries(resolve(dep.Content[i+1]))
				if err != nil {
					return err
				}
				s.PipDependencies = append(s.PipDependencies, pip...)
			}
		}
	}
	return nil
}

func pipEntries(n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, hookerr.InvalidEnvFile("", "pip dependencies should be a list of strings")
	}
	entries := make([]string, 0, len(n.Content))
	for _, e := range n.Content {
		e = resolve(e)
		if e.Kind != yaml.ScalarNode || isNull(e) {
			return nil, hookerr.InvalidEnvFile("", "pip dependencies should be a list of strings")
		}
		entries = append(entries, e.Value)
	}
	return entries, nil
}

// resolve follows alias nodes to their anchored node.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// Sort puts both dependency lists in lexicographic order. Channels are left
// alone.
func (s *Spec) Sort() {
	sort.Strings(s.Dependencies)
	sort.Strings(s.PipDependencies)
}

// Dedupe drops exact duplicates from both dependency lists and sorts them.
func (s *Spec) Dedupe() {
	s.Dependencies = uniqueSorted(s.Dependencies)
	s.PipDependencies = uniqueSorted(s.PipDependencies)
}

func uniqueSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, v := range in {
		if i > 0 && v == in[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}

// AddDependencies appends every entry of deps not already present (exact
// string match), in the order given, and returns the ones it added. The
// caller sorts afterwards.
func (s *Spec) AddDependencies(deps []string) []string {
	seen := make(map[string]bool, len(s.Dependencies))
	for _, d := range s.Dependencies {
		seen[d] = true
	}
	var added []string
	for _, d := range deps {
		if seen[d] {
			continue
		}
		seen[d] = true
		s.Dependencies = append(s.Dependencies, d)
		added = append(added, d)
	}
	return added
}

// Marshal returns the canonical YAML form of s.
func (s *Spec) Marshal() ([]byte, error) {
	deps := append([]string(nil), s.Dependencies...)
	pip := append([]string(nil), s.PipDependencies...)
	sort.Strings(deps)
	sort.Strings(pip)

	doc := document{
		Name:         s.Name,
		Channels:     s.Channels,
		Dependencies: make([]any, 0, len(deps)+1),
	}
	for _, d := range deps {
		doc.Dependencies = append(doc.Dependencies, d)
	}
	if len(pip) > 0 {
		doc.Dependencies = append(doc.Dependencies, map[string][]string{"pip": pip})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal env file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal env file: %w", err)
	}
	return buf.Bytes(), nil
}

// Write overwrites the file s was loaded from.
func (s *Spec) Write() error {
	return s.WriteTo(s.Path)
}

// WriteTo overwrites path with the canonical form of s. No backup is kept.
func (s *Spec) WriteTo(path string) error {
	if path == "" {
		return fmt.Errorf("write env file %q: no path", s.Name)
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}
