package canon

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// ToBytes accepts either a string under the given encoding name (utf8,
// hex, base16, base64) or a raw byte sequence, and returns bytes.
func ToBytes(v any, encoding string) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		switch encoding {
		case "", "utf8":
			return []byte(t), nil
		case "hex", "base16":
			return hex.DecodeString(t)
		case "base64":
			return base64.StdEncoding.DecodeString(t)
		default:
			return nil, fmt.Errorf("canon: unsupported encoding %q", encoding)
		}
	default:
		return nil, fmt.Errorf("canon: cannot coerce %T to bytes", v)
	}
}

// ToString renders b as a string under the given encoding name (utf8,
// hex, base16, base64).
func ToString(b []byte, encoding string) (string, error) {
	switch encoding {
	case "", "utf8":
		return string(b), nil
	case "hex", "base16":
		return hex.EncodeToString(b), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("canon: unsupported encoding %q", encoding)
	}
}
