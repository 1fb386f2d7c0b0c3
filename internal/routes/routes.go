// Package routes holds the static route classification table consulted by
// the edge gate and the render-time gates.
package routes

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Class is the access policy bound to a path prefix
type Class string

const (
	Public    Class = "public"
	AuthOnly  Class = "authOnly"
	Protected Class = "protected"
)

// Valid reports whether c is one of the known classes
func (c Class) Valid() bool {
	switch c {
	case Public, AuthOnly, Protected:
		return true
	}
	return false
}

// Rule binds a path prefix to a class
type Rule struct {
	Prefix string `yaml:"prefix"`
	Class  Class  `yaml:"class"`
}

// Table is an immutable prefix -> class mapping. Build it once with New and
// share the pointer; there are no mutating methods.
type Table struct {
	rules []Rule // sorted by prefix length, longest first
}

// New validates and normalizes rules into a Table
func New(rules []Rule) (*Table, error) {
	seen := make(map[string]bool, len(rules))
	normalized := make([]Rule, 0, len(rules))

	for _, r := range rules {
		if !r.Class.Valid() {
			return nil, fmt.Errorf("route %q: unknown class %q", r.Prefix, r.Class)
		}
		prefix, err := normalizePrefix(r.Prefix)
		if err != nil {
			return nil, err
		}
		if seen[prefix] {
			return nil, fmt.Errorf("route %q: duplicate prefix", prefix)
		}
		seen[prefix] = true
		normalized = append(normalized, Rule{Prefix: prefix, Class: r.Class})
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i].Prefix) > len(normalized[j].Prefix)
	})

	return &Table{rules: normalized}, nil
}

// DefaultLoginPath is where the built-in table serves the login page
const DefaultLoginPath = "/login"

// Default returns the starter's built-in table
func Default() *Table {
	t, err := DefaultFor(DefaultLoginPath)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultFor returns the built-in table with the login page at loginPath
func DefaultFor(loginPath string) (*Table, error) {
	return New([]Rule{
		{Prefix: "/dashboard", Class: Protected},
		{Prefix: loginPath, Class: AuthOnly},
		{Prefix: "/register", Class: AuthOnly},
	})
}

type fileFormat struct {
	Routes []Rule `yaml:"routes"`
}

// LoadFile reads a YAML route table:
//
//	routes:
//	  - prefix: /dashboard
//	    class: protected
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Table from YAML bytes
func Parse(data []byte) (*Table, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	return New(f.Routes)
}

// Classify returns the class of the longest prefix matching path on a segment
// boundary. "/dashboard" matches "/dashboard" and "/dashboard/x" but not
// "/dashboards". Unmatched paths are Public.
func (t *Table) Classify(path string) Class {
	if path == "" {
		path = "/"
	}
	for _, r := range t.rules {
		if matches(r.Prefix, path) {
			return r.Class
		}
	}
	return Public
}

// Rules returns a copy of the table's rules, longest prefix first
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

func matches(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func normalizePrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if !strings.HasPrefix(prefix, "/") {
		return "", fmt.Errorf("route %q: prefix must start with /", prefix)
	}
	if len(prefix) > 1 {
		prefix = strings.TrimSuffix(prefix, "/")
	}
	return prefix, nil
}
