package coerce

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Timestamp formats are declarative and tried in priority order. An entry
// may be written in C strftime syntax (the convention of most logging
// configs) or directly as a Go reference layout; strftime entries are
// converted before use.

// strftime directive → Go layout fragment.
// reference: http://man7.org/linux/man-pages/man3/strftime.3.html
var strftimeMapping = map[string]string{
	"%a": "Mon",
	"%A": "Monday",
	"%b": "Jan",
	"%B": "January",
	"%d": "02",
	"%e": "_2",
	"%f": "999999",
	"%F": "2006-01-02",
	"%H": "15",
	"%I": "03",
	"%L": "999",
	"%m": "01",
	"%M": "04",
	"%p": "PM",
	"%S": "05",
	"%T": "15:04:05",
	"%y": "06",
	"%Y": "2006",
	"%z": "-0700",
	"%Z": "MST",
}

// DefaultFormats is the built-in priority list, matching the layouts seen
// across the supported log formats: ISO-ish with comma or period
// fractions, slashed dates, day-first variants, then RFC 3339.
func DefaultFormats() []string {
	return []string{
		"%Y-%m-%d %H:%M:%S,%f",
		"%Y-%m-%d %H:%M:%S.%f",
		"%Y-%m-%d %H:%M:%S",
		"%Y/%m/%d %H:%M:%S",
		"%d-%m-%Y %H:%M:%S",
		"%d/%m/%Y %H:%M:%S",
		"%Y-%m-%dT%H:%M:%S.%fZ",
		"%Y-%m-%dT%H:%M:%S%z",
	}
}

// LoadFormats reads a YAML list of timestamp formats (strftime or Go
// layout syntax) tried in file order.
func LoadFormats(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading timestamp formats: %w", err)
	}
	var doc struct {
		Formats []string `yaml:"formats"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing timestamp formats YAML: %w", err)
	}
	if len(doc.Formats) == 0 {
		return nil, fmt.Errorf("timestamp formats file %s declares no formats", path)
	}
	return doc.Formats, nil
}

// convertStrftime rewrites C-style directives into a Go reference layout.
func convertStrftime(layout string) string {
	for directive, conv := range strftimeMapping {
		layout = strings.Replace(layout, directive, conv, -1)
	}
	return layout
}

// parseTimestamp tries each configured format in order and falls back to a
// small set of standard layouts. Go cannot parse comma-separated
// fractional seconds, so commas are normalized to periods in both the
// value and the format first (https://github.com/golang/go/issues/6189).
func parseTimestamp(raw string, formats []string, loc *time.Location) (time.Time, bool) {
	value := strings.Replace(raw, ",", ".", -1)
	for _, f := range formats {
		layout := strings.Replace(f, ",", ".", -1)
		if strings.Contains(layout, "%") {
			layout = convertStrftime(layout)
		}
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999 -0700 MST",
		time.UnixDate,
	} {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
