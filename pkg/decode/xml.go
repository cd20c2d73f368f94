package decode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/rexliu/ksdk/pkg/core"
)

const (
	itemTag = "item"
	itemKey = "itemKey"
)

// repeated holds sibling elements that share a name. Only multi-lingual
// fields keep all of them; everything else reads the first.
type repeated []any

type element struct {
	name     string
	text     strings.Builder
	children []*element
}

// ParseXML reads an XML document into generic values. The root element is
// returned as a map of its children, e.g. {"result": ..., "executionTime": "0.1"}.
// Leaves become strings, elements whose children are all <item> become []any,
// and lists whose items all carry an itemKey become map[string]any.
func ParseXML(payload []byte) (any, error) {
	root, err := parseElements(payload)
	if err != nil {
		return nil, core.Wrap(core.CodeUnserializeFailed, err, "failed to unserialize server result")
	}
	return root.value(), nil
}

func parseElements(payload []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.CharsetReader = charset.NewReaderLabel

	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("empty xml document")
	}
	return root, nil
}

func (e *element) value() any {
	if len(e.children) == 0 {
		return e.text.String()
	}
	if e.isList() {
		items := make([]any, 0, len(e.children))
		for _, child := range e.children {
			items = append(items, child.value())
		}
		if keyed, ok := keyedMap(items); ok {
			return keyed
		}
		return items
	}
	out := make(map[string]any, len(e.children))
	for _, child := range e.children {
		v := child.value()
		prev, seen := out[child.name]
		switch {
		case !seen:
			out[child.name] = v
		case isRepeated(prev):
			out[child.name] = append(prev.(repeated), v)
		default:
			out[child.name] = repeated{prev, v}
		}
	}
	return out
}

func isRepeated(v any) bool {
	_, ok := v.(repeated)
	return ok
}

func (e *element) isList() bool {
	for _, child := range e.children {
		if child.name != itemTag {
			return false
		}
	}
	return true
}

// keyedMap turns a list of items that each carry an itemKey into a map.
func keyedMap(items []any) (map[string]any, bool) {
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		if _, ok := fields[itemKey].(string); !ok {
			return nil, false
		}
	}
	out := make(map[string]any, len(items))
	for _, item := range items {
		fields := item.(map[string]any)
		key := fields[itemKey].(string)
		delete(fields, itemKey)
		out[key] = fields
	}
	return out, true
}
