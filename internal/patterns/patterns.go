// Package patterns loads and validates the prioritized set of log-line
// pattern definitions from YAML.
package patterns

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/pklundberg/logsieve/pkg/models"
)

// ErrConfiguration wraps every structural problem in a pattern declaration:
// missing name or expression, a regex that does not compile, a declared
// column without a matching named capture group, duplicate names. These are
// fatal at load time, before any line is processed.
var ErrConfiguration = errors.New("pattern configuration")

// identRe bounds what a declared field name may look like.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Definition is a single declared log-line pattern: a name, a regular
// expression with (?P<name>...) capture groups, and the ordered list of
// field names the expression extracts.
type Definition struct {
	Name       string   `yaml:"name"`
	Expression string   `yaml:"pattern"`
	Columns    []string `yaml:"columns"`

	// Enabled definitions participate in classification. Disabled ones are
	// still validated and listed, so a declaration can be switched off
	// without deleting it. Defaults to true when omitted.
	Enabled bool `yaml:"-"`

	// Regex is the compiled expression. Set by the registry; treat as
	// read-only.
	Regex *regexp.Regexp `yaml:"-"`
}

// Set is an ordered, immutable sequence of definitions. Order is priority:
// classification returns the first match, so callers must declare
// most-specific patterns first. A Set may be shared read-only across
// concurrent processors.
type Set struct {
	defs []Definition
}

// Definitions returns the definitions in priority order. The returned
// slice is shared; callers must not modify it.
func (s *Set) Definitions() []Definition {
	return s.defs
}

// Len returns the number of definitions, disabled ones included.
func (s *Set) Len() int {
	return len(s.defs)
}

// Lookup returns the definition with the given name, or nil.
func (s *Set) Lookup(name string) *Definition {
	for i := range s.defs {
		if s.defs[i].Name == name {
			return &s.defs[i]
		}
	}
	return nil
}

// Columns returns the union of declared field names across all
// definitions, in declaration order, without duplicates.
func (s *Set) Columns() []string {
	seen := make(map[string]struct{})
	var cols []string
	for i := range s.defs {
		for _, c := range s.defs[i].Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	return cols
}

// file is the YAML document shape: a top-level `patterns:` list.
type file struct {
	Patterns []entry `yaml:"patterns"`
}

type entry struct {
	Name    string   `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	Columns []string `yaml:"columns"`
	Enabled *bool    `yaml:"enabled"`
}

// Load reads a pattern set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patterns file: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse builds a validated pattern set from YAML bytes. Declaration order
// is preserved as priority.
func Parse(data []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing patterns YAML: %w", err)
	}

	defs := make([]Definition, 0, len(f.Patterns))
	names := make(map[string]struct{}, len(f.Patterns))
	for i, e := range f.Patterns {
		def, err := compile(e)
		if err != nil {
			return nil, err
		}
		if _, dup := names[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern name %q (entry %d)", ErrConfiguration, def.Name, i)
		}
		names[def.Name] = struct{}{}
		defs = append(defs, def)
	}
	return &Set{defs: defs}, nil
}

// New builds a validated pattern set from already-constructed definitions.
// Used by callers that assemble patterns in code rather than YAML.
func New(entries ...Definition) (*Set, error) {
	f := make([]entry, len(entries))
	for i, d := range entries {
		enabled := d.Enabled
		f[i] = entry{Name: d.Name, Pattern: d.Expression, Columns: d.Columns, Enabled: &enabled}
	}
	defs := make([]Definition, 0, len(f))
	names := make(map[string]struct{}, len(f))
	for i, e := range f {
		def, err := compile(e)
		if err != nil {
			return nil, err
		}
		if _, dup := names[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern name %q (entry %d)", ErrConfiguration, def.Name, i)
		}
		names[def.Name] = struct{}{}
		defs = append(defs, def)
	}
	return &Set{defs: defs}, nil
}

// compile validates a single declaration and compiles its expression.
func compile(e entry) (Definition, error) {
	if e.Name == "" {
		return Definition{}, fmt.Errorf("%w: definition is missing a name", ErrConfiguration)
	}
	if e.Name == models.PatternUnmatched {
		return Definition{}, fmt.Errorf("%w: pattern name %q is reserved", ErrConfiguration, e.Name)
	}
	if e.Pattern == "" {
		return Definition{}, fmt.Errorf("%w: pattern %q is missing an expression", ErrConfiguration, e.Name)
	}

	re, err := regexp.Compile(e.Pattern)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: pattern %q: %v", ErrConfiguration, e.Name, err)
	}

	// Named capture groups present in the expression.
	groups := make(map[string]struct{})
	for _, g := range re.SubexpNames() {
		if g != "" {
			groups[g] = struct{}{}
		}
	}

	declared := make(map[string]struct{}, len(e.Columns))
	for _, col := range e.Columns {
		if !identRe.MatchString(col) {
			return Definition{}, fmt.Errorf("%w: pattern %q: column %q is not a valid identifier", ErrConfiguration, e.Name, col)
		}
		if _, dup := declared[col]; dup {
			return Definition{}, fmt.Errorf("%w: pattern %q: duplicate column %q", ErrConfiguration, e.Name, col)
		}
		declared[col] = struct{}{}
		if _, ok := groups[col]; !ok {
			return Definition{}, fmt.Errorf("%w: pattern %q: column %q has no capture group", ErrConfiguration, e.Name, col)
		}
	}
	// The correspondence is 1:1: every named group must also be declared,
	// so the column list stays an honest inventory of what the pattern
	// extracts.
	for g := range groups {
		if _, ok := declared[g]; !ok {
			return Definition{}, fmt.Errorf("%w: pattern %q: capture group %q is not declared in columns", ErrConfiguration, e.Name, g)
		}
	}

	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}

	return Definition{
		Name:       e.Name,
		Expression: e.Pattern,
		Columns:    append([]string(nil), e.Columns...),
		Enabled:    enabled,
		Regex:      re,
	}, nil
}
