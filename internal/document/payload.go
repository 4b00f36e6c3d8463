package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoPayload is returned when a page carries no embedded JSON block.
var ErrNoPayload = errors.New("no embedded json payload")

// Payload decodes the embedded JSON block into v, unwrapping one level of
// string encoding when the block holds a quoted document.
func (d *Document) Payload(v any) error {
	raw, ok := d.EmbeddedJSON()
	if !ok {
		return ErrNoPayload
	}
	inner, ok := Unwrap(raw)
	if !ok {
		return fmt.Errorf("embedded payload on %s is not valid json", d.url)
	}
	if err := json.Unmarshal(inner, v); err != nil {
		return fmt.Errorf("decode embedded payload on %s: %w", d.url, err)
	}
	return nil
}

// Unwrap returns the JSON document carried by raw. When raw is a JSON string
// the string's contents are returned instead, provided they are JSON too.
func Unwrap(raw []byte) ([]byte, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, false
	}
	if raw[0] != '"' {
		return raw, true
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, false
	}
	trimmed := []byte(strings.TrimSpace(inner))
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, false
	}
	return trimmed, true
}
