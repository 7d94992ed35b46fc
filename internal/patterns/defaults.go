package patterns

// Default returns the built-in pattern set, used when no patterns file is
// configured. Most-specific patterns come first; the catch-all is shipped
// disabled so specific extraction is never starved by accident.
func Default() *Set {
	set, err := New(
		Definition{
			Name:       "aws_threaded_log",
			Expression: `^\[(?P<level>\w+)\] (?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?) (?P<logger>\S+) \[(?P<thread_id>\d+)\] (?P<message>.*)$`,
			Columns:    []string{"level", "timestamp", "logger", "thread_id", "message"},
			Enabled:    true,
		},
		Definition{
			Name:       "logger_dashed",
			Expression: `^(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?) (?P<level>\w+)\s+(?P<logger>[\w.]+) - (?P<message>.*)$`,
			Columns:    []string{"timestamp", "level", "logger", "message"},
			Enabled:    true,
		},
		Definition{
			Name:       "format6",
			Expression: `^(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?) - (?P<level>\w+) - (?P<message>.*)$`,
			Columns:    []string{"timestamp", "level", "message"},
			Enabled:    true,
		},
		Definition{
			Name:       "slashed_date",
			Expression: `^(?P<timestamp>\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) (?P<level>\w+) (?P<message>.*)$`,
			Columns:    []string{"timestamp", "level", "message"},
			Enabled:    true,
		},
		Definition{
			Name:       "bracketed_level",
			Expression: `^(?P<timestamp>\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?Z?)\s+\[(?P<level>\w+)\]\s+(?P<message>.*)$`,
			Columns:    []string{"timestamp", "level", "message"},
			Enabled:    true,
		},
		Definition{
			Name:       "catchall",
			Expression: `^(?P<message>.+)$`,
			Columns:    []string{"message"},
			Enabled:    false,
		},
	)
	if err != nil {
		// Built-in definitions are covered by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return set
}
