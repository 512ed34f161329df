package validation

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/core-coin/tabula/internal/fault"
)

// Ledger addresses are 20 bytes: '0x' followed by 40 hex characters.
const addressHexLen = 40

var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidateAddress validates a ledger address format. Letter casing is
// accepted in any combination.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fault.New(fault.Validation, "address cannot be empty")
	}

	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fault.Newf(fault.Validation, "invalid address, must be hex encoded %d character string starting with '0x' (%s)", addressHexLen+2, addr)
	}

	hexPart := addr[2:]
	if len(hexPart) != addressHexLen {
		return fault.Newf(fault.Validation, "invalid address length: expected %d characters (without 0x), got %d", addressHexLen, len(hexPart))
	}

	if _, err := hex.DecodeString(hexPart); err != nil {
		return fault.Wrap(fault.Validation, "invalid hex address", err)
	}

	return nil
}

// NormalizeAddress converts an address to its canonical lowercase '0x'
// prefixed form. Normalizing twice equals normalizing once.
func NormalizeAddress(addr string) string {
	addr = strings.TrimPrefix(addr, "0x")
	addr = strings.TrimPrefix(addr, "0X")
	return "0x" + strings.ToLower(addr)
}

// ValidateAndNormalizeAddress validates an address and returns its canonical form.
func ValidateAndNormalizeAddress(addr string) (string, error) {
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}

// AddressBytes decodes a canonical address into the 20 raw bytes stored in
// the ledger.
func AddressBytes(addr string) ([]byte, error) {
	normalized, err := ValidateAndNormalizeAddress(addr)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(normalized[2:])
}

// AddressHex renders raw address bytes back to the canonical '0x' prefixed
// hex form.
func AddressHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ValidateEmail validates an email address shape.
func ValidateEmail(email string) error {
	if email == "" || !emailRe.MatchString(email) {
		return fault.Newf(fault.Validation, "invalid email (%s)", email)
	}
	return nil
}
