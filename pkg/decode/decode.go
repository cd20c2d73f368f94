// Package decode turns XML or JSON API payloads into typed objects, lists,
// maps, scalars and server errors.
package decode

import (
	"fmt"
	"sort"

	"github.com/rexliu/ksdk/pkg/core"
)

const (
	fieldObjectType = "objectType"
	fieldMessage    = "message"
	fieldCode       = "code"
	fieldArgs       = "args"
	fieldResult     = "result"
	fieldError      = "error"
)

// Decoder resolves type tags through a registry. It holds no per-call state
// and is safe for concurrent use.
type Decoder struct {
	reg *core.Registry
}

// New returns a decoder backed by reg.
func New(reg *core.Registry) *Decoder {
	return &Decoder{reg: reg}
}

// Parse reads payload in the given format into generic values.
func Parse(payload []byte, format core.Format) (any, error) {
	switch format {
	case core.FormatJSON:
		return ParseJSON(payload)
	case core.FormatXML:
		return ParseXML(payload)
	default:
		return nil, core.Errorf(core.CodeFormatNotSupported, "Response format not supported - %s", format)
	}
}

// Decode decodes a single call result. A server error is returned as an
// *core.APIError error.
func (d *Decoder) Decode(payload []byte, format core.Format, fallback string) (any, error) {
	node, err := Parse(payload, format)
	if err != nil {
		return nil, err
	}
	v, err := d.decodeRoot(node, fallback, false)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeBatch decodes a multi-request result. Entries keep the order the
// calls were queued in; a server error for one call is stored as an
// *core.APIError value at its position. fallbacks[i] is the expected type of
// call i, and the server must return exactly one result per fallback. A
// request-level failure such as an invalid KS is returned as an error.
func (d *Decoder) DecodeBatch(payload []byte, format core.Format, fallbacks []string) ([]any, error) {
	node, err := Parse(payload, format)
	if err != nil {
		return nil, err
	}
	// XML always wraps the list in <result>; JSON may.
	if fields, ok := node.(map[string]any); ok {
		if _, tagged := fields[fieldObjectType]; !tagged {
			if result, ok := fields[fieldResult]; ok {
				node = result
			}
		}
	}
	items, ok := node.([]any)
	if !ok {
		switch {
		case len(fallbacks) == 1:
			items = []any{node}
		case len(fallbacks) > 1:
			return nil, batchFailure(node, len(fallbacks))
		case node == nil || node == "":
			items = nil
		default:
			items = []any{node}
		}
	}
	if len(fallbacks) > 0 && len(items) != len(fallbacks) {
		return nil, core.Errorf(core.CodeUnserializeFailed, "multi-request returned %d results for %d calls", len(items), len(fallbacks))
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		fallback := ""
		if i < len(fallbacks) {
			fallback = fallbacks[i]
		}
		v, err := d.decodeRoot(item, fallback, true)
		if err != nil {
			return nil, fmt.Errorf("decode result %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// batchFailure explains a multi-request root that is not a list: either the
// server rejected the whole request or the payload is malformed.
func batchFailure(node any, calls int) error {
	if fields, ok := node.(map[string]any); ok {
		if errNode, ok := loneError(fields); ok {
			if inner, ok := errNode.(map[string]any); ok {
				fields = inner
			}
		}
		if isErrorShape(fields) {
			return toAPIError(fields)
		}
	}
	return core.Errorf(core.CodeUnserializeFailed, "multi-request of %d calls returned %T instead of a list", calls, node)
}

// Value decodes an already parsed node. Server errors are returned as errors.
func (d *Decoder) Value(node any, fallback string) (any, error) {
	return d.value(node, fallback)
}

// decodeRoot handles the envelope forms that may only appear at the top of a
// result: {"result": ...}, a lone {"error": ...}, and in batch mode an error
// shape that becomes a value.
func (d *Decoder) decodeRoot(node any, fallback string, batch bool) (any, error) {
	fields, ok := node.(map[string]any)
	if !ok {
		return d.value(node, fallback)
	}
	if errNode, ok := loneError(fields); ok {
		fields, _ = errNode.(map[string]any)
		if fields == nil {
			return nil, core.Errorf(core.CodeFormatNotSupported, "Response format not supported - malformed error")
		}
	}
	if isErrorShape(fields) {
		apiErr := toAPIError(fields)
		if batch {
			return apiErr, nil
		}
		return nil, apiErr
	}
	if _, tagged := fields[fieldObjectType]; !tagged {
		if result, ok := fields[fieldResult]; ok {
			return d.decodeRoot(result, fallback, batch)
		}
	}
	return d.value(node, fallback)
}

func (d *Decoder) value(node any, fallback string) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		return d.object(v, fallback)
	case []any:
		return d.list(v, fallback)
	case repeated:
		return d.value(v[0], fallback)
	default:
		return v, nil
	}
}

func (d *Decoder) list(items []any, fallback string) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := d.value(item, fallback)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *Decoder) object(fields map[string]any, fallback string) (any, error) {
	if isErrorShape(fields) {
		return nil, toAPIError(fields)
	}
	tag, _ := fields[fieldObjectType].(string)
	if tag == "" {
		// Untagged: an object of the fallback type when it has scalar
		// fields, otherwise a keyed map.
		factory, ok := d.reg.Resolve(fallback)
		if !ok || !hasScalarField(fields) {
			return d.plainMap(fields, fallback)
		}
		return d.build(factory(), fields)
	}
	factory, ok := d.reg.Resolve(tag)
	if !ok {
		factory, ok = d.reg.Resolve(fallback)
	}
	if !ok {
		return nil, core.Errorf(core.CodeInvalidObjectType, "Invalid object type [%s], fallback [%s]", tag, fallback)
	}
	return d.build(factory(), fields)
}

func (d *Decoder) build(obj core.Object, fields map[string]any) (core.Object, error) {
	typer, _ := obj.(core.FieldTyper)
	lingual, _ := obj.(core.MultiLingual)
	for _, name := range sortedNames(fields) {
		if name == fieldObjectType {
			continue
		}
		raw := fields[name]
		var (
			decoded any
			err     error
		)
		switch {
		case name == core.RelatedObjectsField:
			decoded, err = d.related(raw)
		case lingual != nil && lingual.IsMultiLingual(name):
			decoded, err = d.multiLingual(raw, fieldType(typer, name))
		default:
			decoded, err = d.value(raw, fieldType(typer, name))
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", obj.ObjectType(), name, err)
		}
		if err := obj.DecodeField(name, decoded); err != nil {
			return nil, core.Wrap(core.CodeInvalidObjectField, err, fmt.Sprintf("Invalid field %s of %s", name, obj.ObjectType()))
		}
	}
	return obj, nil
}

// plainMap decodes an untagged object as a map; values use the fallback type.
func (d *Decoder) plainMap(fields map[string]any, fallback string) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, raw := range fields {
		v, err := d.value(raw, fallback)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// related decodes the reserved relatedObjects field as a keyed map of
// heterogeneous objects.
func (d *Decoder) related(raw any) (map[string]any, error) {
	out := make(map[string]any)
	switch v := raw.(type) {
	case map[string]any:
		for key, item := range v {
			decoded, err := d.value(item, "")
			if err != nil {
				return nil, err
			}
			out[key] = decoded
		}
	case []any:
		for i, item := range v {
			decoded, err := d.value(item, "")
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(i)] = decoded
		}
	}
	return out, nil
}

// multiLingual keeps every value when the source carried several, and a
// scalar otherwise.
func (d *Decoder) multiLingual(raw any, fallback string) (any, error) {
	switch v := raw.(type) {
	case repeated:
		return d.list([]any(v), fallback)
	case []any:
		return d.list(v, fallback)
	default:
		return d.value(v, fallback)
	}
}

// hasScalarField reports whether any value is a leaf or a list. A keyed map
// of objects has only map values.
func hasScalarField(fields map[string]any) bool {
	for _, v := range fields {
		if _, isMap := v.(map[string]any); !isMap {
			return true
		}
	}
	return false
}

func fieldType(typer core.FieldTyper, name string) string {
	if typer == nil {
		return ""
	}
	return typer.FieldType(name)
}

func isErrorShape(fields map[string]any) bool {
	_, hasMessage := fields[fieldMessage]
	_, hasCode := fields[fieldCode]
	return hasMessage && hasCode
}

func loneError(fields map[string]any) (any, bool) {
	if len(fields) != 1 {
		return nil, false
	}
	v, ok := fields[fieldError]
	return v, ok
}

func toAPIError(fields map[string]any) *core.APIError {
	apiErr := &core.APIError{
		Code:    String(fields[fieldCode]),
		Message: String(fields[fieldMessage]),
	}
	args := make(map[string]string)
	switch v := fields[fieldArgs].(type) {
	case map[string]any:
		for name, value := range v {
			args[name] = String(value)
		}
	case []any:
		// XML: a list of APIExceptionArg {name, value}.
		for _, item := range v {
			arg, ok := item.(map[string]any)
			if !ok {
				continue
			}
			args[String(arg["name"])] = String(arg["value"])
		}
	}
	if len(args) > 0 {
		apiErr.Args = args
	}
	return apiErr
}

func lookup(node any, name string) any {
	fields, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	return fields[name]
}

// sortedNames gives objects a stable field visiting order.
func sortedNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
