// Package coerce turns the raw captures of a classified line into a typed
// record. Coercion is centralized per field name rather than per pattern,
// so every format that captures a `timestamp` or a `level` goes through
// the same normalization.
package coerce

import (
	"strconv"
	"time"

	"github.com/pklundberg/logsieve/internal/classify"
	"github.com/pklundberg/logsieve/internal/patterns"
	"github.com/pklundberg/logsieve/pkg/models"
)

// Coercer applies the per-field coercion policy. Zero-cost to share across
// goroutines; it holds only immutable configuration.
type Coercer struct {
	formats []string
	loc     *time.Location
}

// Option configures a Coercer.
type Option func(*Coercer)

// WithFormats replaces the default timestamp format list.
func WithFormats(formats []string) Option {
	return func(c *Coercer) {
		if len(formats) > 0 {
			c.formats = formats
		}
	}
}

// WithLocation sets the location assumed for zone-less timestamps.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(c *Coercer) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New creates a Coercer with the default format list and UTC.
func New(opts ...Option) *Coercer {
	c := &Coercer{
		formats: DefaultFormats(),
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract builds a record from a successful classification. It never
// fails: a timestamp no format can parse, a level outside the vocabulary
// or a non-numeric thread id all degrade to the raw string, with the
// corresponding flag set where one exists.
func (c *Coercer) Extract(line string, def *patterns.Definition, m classify.Match) models.Record {
	rec := models.Record{
		SourceLine:  line,
		PatternName: def.Name,
		Fields:      make(map[string]any, len(m)),
	}

	for name, raw := range m {
		switch name {
		case models.FieldTimestamp:
			if ts, ok := parseTimestamp(raw, c.formats, c.loc); ok {
				rec.Fields[name] = ts
			} else {
				rec.Fields[name] = raw
				rec.TimestampRaw = true
			}
		case models.FieldLevel:
			if sev, ok := models.ParseSeverity(raw); ok {
				rec.Fields[name] = sev
			} else {
				rec.Fields[name] = raw
				rec.LevelNonstandard = true
			}
		case models.FieldThreadID:
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				rec.Fields[name] = id
			} else {
				rec.Fields[name] = raw
			}
		default:
			rec.Fields[name] = raw
		}
	}
	return rec
}
