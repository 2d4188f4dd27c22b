package app

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeKey decodes a secret from hex, base64 or raw URL-safe base64. Values that match none of
// these are used verbatim.
func DecodeKey(value string) ([]byte, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, fmt.Errorf("key value is empty")
	}

	if len(v)%2 == 0 {
		if decoded, err := hex.DecodeString(v); err == nil {
			return decoded, nil
		}
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(v); err == nil {
			return decoded, nil
		}
	}

	return []byte(v), nil
}

// KeyByteLength returns the decoded byte length of a key string, zero when blank.
func KeyByteLength(value string) int {
	decoded, err := DecodeKey(value)
	if err != nil {
		return 0
	}
	return len(decoded)
}
