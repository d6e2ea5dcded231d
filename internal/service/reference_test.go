package service

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
)

func TestEncodeReference(t *testing.T) {
	// base64("501_42")
	assert.Equal(t, "NTAxXzQy", EncodeReference(501, 42))
}

func TestReferenceRoundTrip(t *testing.T) {
	pairs := [][2]int64{
		{0, 0},
		{501, 42},
		{7, 1},
		{1, 7},
		{123456789, 987654321},
		{math.MaxInt64, math.MaxInt64},
		{math.MaxInt64, 0},
	}

	for _, p := range pairs {
		ref, err := DecodeReference(EncodeReference(p[0], p[1]))
		require.NoError(t, err, "pair %v", p)
		assert.Equal(t, p[0], ref.DocumentID)
		assert.Equal(t, p[1], ref.ClaimedPatientID)
	}
}

func TestDecodeReference_Malformed(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name string
		ref  string
	}{
		{"empty", ""},
		{"not base64", "%%%not-base64"},
		{"extra separator", enc("501_42_9")},
		{"no separator", enc("50142")},
		{"missing document id", enc("_42")},
		{"missing patient id", enc("501_")},
		{"non numeric document id", enc("abc_42")},
		{"non numeric patient id", enc("501_x")},
		{"negative id", enc("-1_42")},
		{"signed id", enc("+1_42")},
		{"whitespace", enc(" 501_42")},
		{"overflow", enc("99999999999999999999_42")},
		{"url-safe alphabet", base64.RawURLEncoding.EncodeToString([]byte("501_42>?"))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := DecodeReference(tc.ref)
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeMalformedReference, apperrors.GetCode(err))
			})
		})
	}
}
