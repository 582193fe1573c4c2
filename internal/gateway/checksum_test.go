package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFields() map[string]string {
	return map[string]string{
		FieldMerchantID:  "MID123",
		FieldOrderID:     "3f9c2d0e-4e9b-4a43-bd3e-0e0e2a7c8c11",
		FieldAmount:      "45.00",
		FieldCurrency:    "INR",
		FieldEmail:       "buyer@example.com",
		FieldCallbackURL: "https://shop.example.com/payment/callback",
	}
}

func TestSign_KnownDigest(t *testing.T) {
	fields := map[string]string{"b": "2", "a": "1", "c": "3"}

	sum := sha256.Sum256([]byte("secret" + "1" + "2" + "3"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Sign(fields, "secret"))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	fields := sampleFields()
	sig := Sign(fields, "k3y")

	assert.True(t, Verify(fields, sig, "k3y"))
	assert.True(t, Verify(fields, strings.ToUpper(sig), "k3y"), "hex case must not matter")
	assert.False(t, Verify(fields, sig, "other"))
}

func TestVerify_AnyMutatedFieldFails(t *testing.T) {
	s := NewSigner("k3y", DefaultExcluded...)
	fields := sampleFields()
	sig := s.Sign(fields)

	for key := range fields {
		t.Run(key, func(t *testing.T) {
			mutated := make(map[string]string, len(fields))
			for k, v := range fields {
				mutated[k] = v
			}
			mutated[key] += "x"
			assert.False(t, s.Verify(mutated, sig))
		})
	}
}

func TestSign_ExcludesChecksumAndExcludedFields(t *testing.T) {
	s := NewSigner("k3y", DefaultExcluded...)
	fields := sampleFields()
	sig := s.Sign(fields)

	withExtras := sampleFields()
	withExtras[FieldProductDetails] = `[{"name":"Tee","qty":2}]`
	withExtras["checksumhash"] = sig
	withExtras[FieldChecksum] = "stale"

	assert.Equal(t, sig, s.Sign(withExtras))
	assert.True(t, s.Verify(withExtras, sig))
}

func TestSign_MissingFieldIsNotEmptyField(t *testing.T) {
	fields := map[string]string{"a": "1", "c": "3"}
	withEmpty := map[string]string{"a": "1", "b": "", "c": "3"}
	withValue := map[string]string{"a": "1", "b": "2", "c": "3"}

	// An empty value contributes no bytes, so only a present value changes
	// the digest; absent keys are simply skipped.
	assert.Equal(t, Sign(fields, "s"), Sign(withEmpty, "s"))
	assert.NotEqual(t, Sign(fields, "s"), Sign(withValue, "s"))
}

func TestVerify_MalformedSignature(t *testing.T) {
	fields := sampleFields()

	tests := []struct {
		name string
		sig  string
	}{
		{name: "empty", sig: ""},
		{name: "not hex", sig: "zz"},
		{name: "short", sig: "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, Verify(fields, tt.sig, "k3y"))
		})
	}
}
