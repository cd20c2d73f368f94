// Package params implements the request parameter tree: an ordered, nested,
// string-keyed structure that every API call is flattened into before it is
// signed and sent as a JSON body or a query string.
package params

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rexliu/ksdk/pkg/core"
)

const (
	// NullSuffix marks a field the server should clear.
	NullSuffix = "__null"
	// EmptyKey marks an empty collection so it is not confused with an absent one.
	EmptyKey = "-"
	// TypeKey carries the wire type tag of an encoded object.
	TypeKey = "objectType"
)

// Params is an ordered tree. Leaf values are string or bool; inner nodes are *Params.
type Params struct {
	keys   []string
	values map[string]any
}

// New returns an empty tree.
func New() *Params {
	return &Params{values: make(map[string]any)}
}

// Len returns the number of keys at this level.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys at this level in order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Lookup returns the value stored directly under key.
func (p *Params) Lookup(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Get resolves a dotted path such as "entry.objectType".
func (p *Params) Get(path string) (any, bool) {
	node := p
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := node.Lookup(part)
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		child, ok := v.(*Params)
		if !ok {
			return nil, false
		}
		node = child
	}
	return nil, false
}

// Set stores a raw value. An existing key keeps its position.
func (p *Params) Set(key string, value any) {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Delete removes a key.
func (p *Params) Delete(key string) {
	if _, exists := p.values[key]; !exists {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Merge copies every top-level key of other into p, overwriting duplicates.
func (p *Params) Merge(other *Params) {
	if other == nil {
		return
	}
	for _, key := range other.keys {
		p.Set(key, cloneValue(other.values[key]))
	}
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	out := New()
	if p == nil {
		return out
	}
	for _, key := range p.keys {
		out.Set(key, cloneValue(p.values[key]))
	}
	return out
}

func cloneValue(v any) any {
	if child, ok := v.(*Params); ok {
		return child.Clone()
	}
	return v
}

// Add encodes value under name:
//   - nil is skipped entirely
//   - core.Null becomes "<name>__null" = ""
//   - a core.Object becomes a subtree with objectType and its fields
//   - bool is stored raw
//   - containers become subtrees; an empty one is marked with "-" = ""
//   - any other scalar is stored as a string
func (p *Params) Add(name string, value any) {
	if isNil(value) {
		return
	}
	switch v := value.(type) {
	case core.NullMarker, *core.NullMarker:
		p.Set(name+NullSuffix, "")
	case core.Object:
		child := New()
		child.Set(TypeKey, v.ObjectType())
		v.EncodeFields(child)
		p.Set(name, child)
	case *Params:
		p.Set(name, v.Clone())
	case bool:
		p.Set(name, v)
	case *bool:
		p.Set(name, *v)
	case string:
		p.Set(name, v)
	case *string:
		p.Set(name, *v)
	case json.Number:
		p.Set(name, v.String())
	case int:
		p.Set(name, strconv.Itoa(v))
	case *int:
		p.Set(name, strconv.Itoa(*v))
	case int64:
		p.Set(name, strconv.FormatInt(v, 10))
	case *int64:
		p.Set(name, strconv.FormatInt(*v, 10))
	case float64:
		p.Set(name, strconv.FormatFloat(v, 'f', -1, 64))
	case *float64:
		p.Set(name, strconv.FormatFloat(*v, 'f', -1, 64))
	case []any:
		child := New()
		for i, item := range v {
			child.Add(strconv.Itoa(i), item)
		}
		p.setContainer(name, child)
	case map[string]any:
		child := New()
		for _, key := range sortedKeys(v) {
			child.Add(key, v[key])
		}
		p.setContainer(name, child)
	case fmt.Stringer:
		p.Set(name, v.String())
	default:
		p.addReflect(name, value)
	}
}

// addReflect handles typed slices and maps such as []*MediaEntry or map[string]string.
func (p *Params) addReflect(name string, value any) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		child := New()
		for i := 0; i < rv.Len(); i++ {
			child.Add(strconv.Itoa(i), rv.Index(i).Interface())
		}
		p.setContainer(name, child)
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		for _, k := range rv.MapKeys() {
			ks := fmt.Sprint(k.Interface())
			keys = append(keys, ks)
			byKey[ks] = k
		}
		sort.Strings(keys)
		child := New()
		for _, ks := range keys {
			child.Add(ks, rv.MapIndex(byKey[ks]).Interface())
		}
		p.setContainer(name, child)
	case reflect.Pointer:
		p.Add(name, rv.Elem().Interface())
	default:
		p.Set(name, fmt.Sprint(value))
	}
}

func (p *Params) setContainer(name string, child *Params) {
	if child.Len() == 0 {
		child.Set(EmptyKey, "")
	}
	p.Set(name, child)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortRecursive orders keys at every level. Integer keys compare numerically
// with each other; every other pair compares as strings.
func (p *Params) SortRecursive() {
	if p == nil {
		return
	}
	sort.SliceStable(p.keys, func(i, j int) bool {
		return keyLess(p.keys[i], p.keys[j])
	})
	for _, key := range p.keys {
		if child, ok := p.values[key].(*Params); ok {
			child.SortRecursive()
		}
	}
}

func keyLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return a < b
}

// isList reports whether the keys are exactly "0".."n-1" in order.
func (p *Params) isList() bool {
	for i, key := range p.keys {
		if key != strconv.Itoa(i) {
			return false
		}
	}
	return len(p.keys) > 0
}

// MarshalJSON writes the tree in key order. Sequentially indexed levels are
// written as JSON arrays.
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Params) writeJSON(buf *bytes.Buffer) error {
	if p == nil {
		buf.WriteString("{}")
		return nil
	}
	list := p.isList()
	if list {
		buf.WriteByte('[')
	} else {
		buf.WriteByte('{')
	}
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if !list {
			encodedKey, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(encodedKey)
			buf.WriteByte(':')
		}
		switch v := p.values[key].(type) {
		case *Params:
			if err := v.writeJSON(buf); err != nil {
				return err
			}
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode param %s: %w", key, err)
			}
			buf.Write(encoded)
		}
	}
	if list {
		buf.WriteByte(']')
	} else {
		buf.WriteByte('}')
	}
	return nil
}

// Signature returns the hex MD5 of the recursively key-sorted JSON encoding.
// The receiver is left untouched.
func (p *Params) Signature() (string, error) {
	sorted := p.Clone()
	sorted.SortRecursive()
	body, err := sorted.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:]), nil
}

// Flatten returns every leaf keyed by its dotted path. Booleans become "1" or "0".
func (p *Params) Flatten() map[string]string {
	out := make(map[string]string)
	p.walk(nil, func(path []string, leaf string) {
		out[strings.Join(path, ".")] = leaf
	})
	return out
}

// QueryString encodes the tree in bracket notation, e.g. entry[objectType]=MediaEntry.
func (p *Params) QueryString() string {
	var pairs []string
	p.walk(nil, func(path []string, leaf string) {
		key := path[0]
		for _, part := range path[1:] {
			key += "[" + part + "]"
		}
		pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(leaf))
	})
	return strings.Join(pairs, "&")
}

func (p *Params) walk(prefix []string, fn func(path []string, leaf string)) {
	if p == nil {
		return
	}
	for _, key := range p.keys {
		path := append(append([]string(nil), prefix...), key)
		switch v := p.values[key].(type) {
		case *Params:
			v.walk(path, fn)
		case bool:
			if v {
				fn(path, "1")
			} else {
				fn(path, "0")
			}
		default:
			fn(path, fmt.Sprint(v))
		}
	}
}
