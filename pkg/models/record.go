// Package models defines the data types shared between the parsing
// pipeline, storage backends and the REST API.
package models

import "time"

// PatternUnmatched is the sentinel pattern name assigned to lines that
// matched no registered pattern. The name is reserved; the pattern registry
// rejects definitions that try to use it.
const PatternUnmatched = "unmatched"

// Well-known field names with coercion rules attached.
const (
	FieldTimestamp = "timestamp"
	FieldLevel     = "level"
	FieldMessage   = "message"
	FieldLogger    = "logger"
	FieldThreadID  = "thread_id"
)

// Record is one input line after classification and field extraction.
// A Record is immutable once constructed.
type Record struct {
	// SourceLine is the original raw text, retained unmodified.
	SourceLine string `json:"source_line"`

	// PatternName identifies the definition that matched, or
	// PatternUnmatched.
	PatternName string `json:"pattern_name"`

	// Fields maps declared field names to coerced values: time.Time for
	// timestamp, Severity for level, int64 for thread_id, string
	// otherwise. Coercion failures leave the raw string in place.
	Fields map[string]any `json:"fields"`

	// TimestampRaw is set when a timestamp capture was present but no
	// configured format could parse it.
	TimestampRaw bool `json:"timestamp_raw,omitempty"`

	// LevelNonstandard is set when a level capture was present but the
	// token is outside the severity vocabulary.
	LevelNonstandard bool `json:"level_nonstandard,omitempty"`
}

// UnmatchedRecord builds the sentinel record for a line no pattern matched.
// The raw line is preserved as the message field.
func UnmatchedRecord(line string) Record {
	return Record{
		SourceLine:  line,
		PatternName: PatternUnmatched,
		Fields:      map[string]any{FieldMessage: line},
	}
}

// Unmatched reports whether the record is an unmatched-line sentinel.
func (r *Record) Unmatched() bool {
	return r.PatternName == PatternUnmatched
}

// Timestamp returns the parsed timestamp, if one was coerced.
func (r *Record) Timestamp() (time.Time, bool) {
	ts, ok := r.Fields[FieldTimestamp].(time.Time)
	return ts, ok
}

// Severity returns the normalized level, if one was coerced.
func (r *Record) Severity() (Severity, bool) {
	sev, ok := r.Fields[FieldLevel].(Severity)
	return sev, ok
}

// Message returns the message field as a string, or "" when absent.
func (r *Record) Message() string {
	msg, _ := r.Fields[FieldMessage].(string)
	return msg
}
