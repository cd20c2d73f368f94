package client

import (
	"strconv"
	"strings"
)

// SubResult references a field of an earlier call's result in the same
// batch. The server substitutes it once that call has run. Passing a
// SubResult as a parameter value sends its placeholder string.
type SubResult struct {
	segments []string
}

func newSubResult(index int) SubResult {
	return SubResult{segments: []string{strconv.Itoa(index)}}
}

// Field extends the reference with a named field.
func (s SubResult) Field(name string) SubResult {
	return s.with(name)
}

// Index extends the reference with a list position.
func (s SubResult) Index(i int) SubResult {
	return s.with(strconv.Itoa(i))
}

func (s SubResult) with(segment string) SubResult {
	next := make([]string, len(s.segments), len(s.segments)+1)
	copy(next, s.segments)
	return SubResult{segments: append(next, segment)}
}

// Path returns the reference in "<index>:<path...>" form, e.g. "1:objects:0:id".
func (s SubResult) Path() string {
	return strings.Join(s.segments, ":")
}

// String returns the wire placeholder, the path wrapped in braces.
func (s SubResult) String() string {
	return "{" + s.Path() + "}"
}
