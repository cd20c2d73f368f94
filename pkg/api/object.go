// Package api holds typed objects and services for the media and upload
// endpoints, built on the client runtime.
package api

import (
	"github.com/rexliu/ksdk/pkg/core"
	"github.com/rexliu/ksdk/pkg/decode"
)

// ObjectBase is embedded by every object. It tracks fields explicitly set to
// null and the relatedObjects map returned by response profiles.
type ObjectBase struct {
	RelatedObjects map[string]any
	nulls          map[string]bool
}

// SetNull marks a field to be cleared on the server. It wins over any value
// set on the same field.
func (b *ObjectBase) SetNull(field string) {
	if b.nulls == nil {
		b.nulls = make(map[string]bool)
	}
	b.nulls[field] = true
}

// IsNull reports whether SetNull was called for field.
func (b *ObjectBase) IsNull(field string) bool {
	return b.nulls[field]
}

func (b *ObjectBase) add(sink core.FieldSink, name string, value any) {
	if b.nulls[name] {
		sink.Add(name, core.Null)
		return
	}
	sink.Add(name, value)
}

func (b *ObjectBase) decodeBase(name string, value any) (bool, error) {
	if name != core.RelatedObjectsField {
		return false, nil
	}
	m, err := decode.Map(value)
	if err != nil {
		return true, err
	}
	b.RelatedObjects = m
	return true, nil
}

func stringPtr(v any) *string {
	s := decode.String(v)
	return &s
}

func intPtr(v any) (*int64, error) {
	n, err := decode.Int(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func floatPtr(v any) (*float64, error) {
	f, err := decode.Float(v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func boolPtr(v any) (*bool, error) {
	b, err := decode.Bool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// String returns a pointer to s, for optional fields.
func String(s string) *string { return &s }

// Int returns a pointer to n, for optional fields.
func Int(n int64) *int64 { return &n }

// Bool returns a pointer to b, for optional fields.
func Bool(b bool) *bool { return &b }
