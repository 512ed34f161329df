package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/tabula/internal/fault"
)

var goodAddr = "0x" + strings.Repeat("ab", 20)

func TestValidateAddress(t *testing.T) {
	require.NoError(t, ValidateAddress(goodAddr))
	require.NoError(t, ValidateAddress("0X"+strings.Repeat("AB", 20)))

	bad := []string{
		"",
		strings.Repeat("ab", 20),        // missing prefix
		"0x" + strings.Repeat("ab", 19), // too short
		"0x" + strings.Repeat("ab", 21), // too long
		"0x" + strings.Repeat("zz", 20), // not hex
		"0x" + strings.Repeat("ab", 19) + "a",
	}
	for _, addr := range bad {
		err := ValidateAddress(addr)
		require.Error(t, err, addr)
		assert.True(t, fault.IsKind(err, fault.Validation), addr)
	}
}

func TestNormalizeAddress(t *testing.T) {
	upper := "0X" + strings.Repeat("AB", 20)
	assert.Equal(t, goodAddr, NormalizeAddress(upper))
	// normalizing twice equals normalizing once
	assert.Equal(t, goodAddr, NormalizeAddress(NormalizeAddress(upper)))
}

func TestAddressBytesRoundTrip(t *testing.T) {
	b, err := AddressBytes("0X" + strings.Repeat("AB", 20))
	require.NoError(t, err)
	assert.Len(t, b, 20)
	assert.Equal(t, goodAddr, AddressHex(b))

	_, err = AddressBytes("0x123")
	require.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail("a@b.co"))
	require.NoError(t, ValidateEmail("first.last+tag@example.org"))

	for _, email := range []string{"", "plain", "a@b", "a b@c.co", "@b.co"} {
		err := ValidateEmail(email)
		require.Error(t, err, email)
		assert.True(t, fault.IsKind(err, fault.Validation), email)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("since", "2026-08-30T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, 10, ts.Hour())

	_, err = ParseTimestamp("since", "yesterday")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Validation))
	assert.Contains(t, err.Error(), "since")
}
