// Package classify selects which pattern, if any, recognizes a log line.
package classify

import "github.com/pklundberg/logsieve/internal/patterns"

// Match holds the named captures of a successful classification, keyed by
// capture-group name. Optional groups that did not participate in the
// match are present with an empty value.
type Match map[string]string

// Classify tries each enabled definition in priority order and returns the
// first one whose expression matches, together with its captures. Later
// patterns are never attempted once one matches; when two patterns both
// structurally match a line, registration order alone decides.
//
// A nil, nil return means no pattern matched. That is a first-class
// outcome, not an error. Classify is a pure function of its inputs: the
// same line and set always produce the same answer.
func Classify(line string, set *patterns.Set) (*patterns.Definition, Match) {
	defs := set.Definitions()
	for i := range defs {
		def := &defs[i]
		if !def.Enabled {
			continue
		}
		sub := def.Regex.FindStringSubmatch(line)
		if sub == nil {
			continue
		}
		return def, captures(def, sub)
	}
	return nil, nil
}

// captures builds the name→value map from a successful submatch, the same
// way ExtRegexp-style helpers do: unnamed groups are ignored.
func captures(def *patterns.Definition, sub []string) Match {
	m := make(Match, len(def.Columns))
	for i, name := range def.Regex.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		m[name] = sub[i]
	}
	return m
}
