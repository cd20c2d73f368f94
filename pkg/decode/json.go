package decode

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/rexliu/ksdk/pkg/core"
)

// ParseJSON reads a JSON payload into generic values. Numbers stay json.Number
// so integer ids and large values keep their literal form.
func ParseJSON(payload []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, core.Wrap(core.CodeUnserializeFailed, err, "failed to unserialize server result")
	}
	if dec.More() {
		return nil, core.Errorf(core.CodeUnserializeFailed, "failed to unserialize server result: trailing data")
	}
	return out, nil
}
