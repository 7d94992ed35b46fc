package models

import "errors"

// ErrNotFound is returned by storage backends when a requested run does
// not exist.
var ErrNotFound = errors.New("not found")

// RecordFilter narrows a record listing. Zero values mean "no filter";
// Limit <= 0 means no limit.
type RecordFilter struct {
	Pattern string
	Level   string
	Limit   int
	Offset  int
}
