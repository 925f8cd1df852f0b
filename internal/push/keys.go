package push

import (
	"crypto/ecdh"
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeApplicationKey decodes a base64url application server key and
// checks that it is an uncompressed P-256 point. Padding is optional and
// the standard alphabet is tolerated.
func DecodeApplicationKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("application server key is empty")
	}
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	s = strings.TrimRight(s, "=")

	key, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding application server key: %w", err)
	}
	if _, err := ecdh.P256().NewPublicKey(key); err != nil {
		return nil, fmt.Errorf("application server key is not a P-256 point: %w", err)
	}
	return key, nil
}

func encodeKey(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
