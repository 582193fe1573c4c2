// Package gateway implements the payment gateway wire contract: field names,
// status codes, and the keyed checksum that authenticates both the outbound
// payment request and the inbound callback.
package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"
	"strings"
)

// Signer computes and verifies gateway checksums with a single secret and a
// single exclusion set, so the outbound and inbound paths cannot disagree.
type Signer struct {
	secret   []byte
	excluded map[string]struct{}
}

// NewSigner returns a Signer. Field names in excluded are matched exactly;
// the checksum fields themselves are always excluded.
func NewSigner(secret string, excluded ...string) *Signer {
	ex := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		ex[name] = struct{}{}
	}
	return &Signer{secret: []byte(secret), excluded: ex}
}

// Sign returns the lowercase hex SHA-256 digest of the secret followed by the
// values of every participating field in lexicographic key order.
func (s *Signer) Sign(fields map[string]string) string {
	sum := s.digest(fields)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether signature matches the checksum of fields. Malformed
// hex never verifies.
func (s *Signer) Verify(fields map[string]string, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	want := s.digest(fields)
	return subtle.ConstantTimeCompare(want[:], got) == 1
}

func (s *Signer) digest(fields map[string]string) [sha256.Size]byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if s.participates(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	h := sha256.New()
	h.Write(s.secret)
	for _, k := range keys {
		h.Write([]byte(fields[k]))
	}

	var out [sha256.Size]byte
	h.Sum(out[:0])
	return out
}

func (s *Signer) participates(key string) bool {
	if IsChecksumField(key) {
		return false
	}
	_, skip := s.excluded[key]
	return !skip
}

// Sign is a convenience wrapper for one-off signing without an exclusion set.
func Sign(fields map[string]string, secret string) string {
	return NewSigner(secret).Sign(fields)
}

// Verify is the counterpart of Sign.
func Verify(fields map[string]string, signature, secret string) bool {
	return NewSigner(secret).Verify(fields, signature)
}

// IsChecksumField reports whether key names the checksum field, in either
// of the spellings the gateway uses.
func IsChecksumField(key string) bool {
	return strings.EqualFold(key, FieldChecksum)
}
