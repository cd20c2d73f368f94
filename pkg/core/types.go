package core

import "strconv"

// Format selects the serialization the server uses for responses.
type Format int

const (
	FormatJSON Format = 1
	FormatXML  Format = 2
)

// Valid reports whether the format is one the decoder understands.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatXML
}

// Param returns the value sent as the "format" request parameter.
func (f Format) Param() string {
	return strconv.Itoa(int(f))
}

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParseFormat maps a config string to a Format. Unknown names return false.
func ParseFormat(name string) (Format, bool) {
	switch name {
	case "json", "1":
		return FormatJSON, true
	case "xml", "2", "":
		return FormatXML, true
	default:
		return 0, false
	}
}

// FieldSink receives encoded object fields. *params.Params satisfies it.
type FieldSink interface {
	Add(name string, value any)
}

// Object is a typed API value. ObjectType returns the canonical wire tag
// carried in the objectType field.
type Object interface {
	ObjectType() string
	// EncodeFields writes every set field into sink. Unset fields are skipped.
	EncodeFields(sink FieldSink)
	// DecodeField assigns a decoded field value. Unknown fields are ignored.
	DecodeField(name string, value any) error
}

// FieldTyper is implemented by objects that declare the expected type of
// their nested fields. For array and map fields it returns the element type.
type FieldTyper interface {
	FieldType(name string) string
}

// MultiLingual is implemented by objects with fields that may arrive either
// as a single string or as a list of per-language values.
type MultiLingual interface {
	IsMultiLingual(name string) bool
}

// NullMarker instructs the server to clear a field. It is distinct from an
// absent (nil) value, which omits the field entirely.
type NullMarker struct{}

// Null is the NullMarker singleton.
var Null = NullMarker{}

// RelatedObjectsField is decoded as a keyed map of heterogeneous objects.
const RelatedObjectsField = "relatedObjects"

// CallRecord is one journaled flush.
type CallRecord struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Actions    []string `json:"actions"`
	Batch      bool     `json:"batch"`
	Status     int      `json:"status"`
	DurationMS int64    `json:"durationMs"`
	Error      string   `json:"error,omitempty"`
	Body       []byte   `json:"-"`
	CreatedAt  int64    `json:"createdAt"`
}
