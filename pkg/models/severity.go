package models

import "strings"

// Severity is a normalized log level.
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// severityAliases maps common variants onto the fixed vocabulary.
var severityAliases = map[string]Severity{
	"DEBUG":    SeverityDebug,
	"INFO":     SeverityInfo,
	"WARNING":  SeverityWarning,
	"WARN":     SeverityWarning,
	"ERROR":    SeverityError,
	"ERR":      SeverityError,
	"CRITICAL": SeverityCritical,
	"FATAL":    SeverityCritical,
}

// ParseSeverity normalizes a raw level token. The second return value is
// false when the token is outside the known vocabulary; callers keep the
// raw token in that case.
func ParseSeverity(raw string) (Severity, bool) {
	sev, ok := severityAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return sev, ok
}
