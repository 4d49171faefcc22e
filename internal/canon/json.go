// Package canon implements the deterministic byte-exact serialization
// used for the legacy (v1) dialect's signing image and sync envelopes
// (content-identifiers are built from DAG-CBOR in both dialects), plus the byte/string coercion helpers both dialects share.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// JSON emits v as canonical JSON: every object's keys in ascending
// code-point order at every nesting level, no whitespace, arrays in
// their original order, and integers printed without a decimal point.
//
// v may be any value encoding/json can marshal (a struct, a map, a
// slice of scalars, ...); it is first normalized through a marshal/
// decode round trip so struct field ordering and tags are resolved the
// same way the standard library resolves them, then re-emitted in
// sorted-key form.
func JSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := emit(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func emit(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		writeJSONString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := emit(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, k)
			buf.WriteByte(':')
			if err := emit(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canon: unsupported value type %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// writeJSONString writes s as a quoted JSON string without HTML-escaping
// '<', '>' and '&' (unlike encoding/json's default), so the byte image is
// stable across implementations that don't share that Go-specific quirk.
func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[(r>>4)&0xf])
				buf.WriteByte(hexDigits[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
