package challenge

import (
	"strings"
	"sync/atomic"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
	"github.com/core-coin/tabula/pkg/validation"
)

// AuthTokenChecker verifies a signature over the caller's bearer token.
// Unlike the loopback gate the message is chosen by the caller (their
// Authorization header), so there is no freshness window.
type AuthTokenChecker struct {
	logger   *logger.Logger
	verifier models.SignatureVerifier

	validSignatures   atomic.Int64
	invalidSignatures atomic.Int64
	noSignature       atomic.Int64
}

func NewAuthTokenChecker(logger *logger.Logger, verifier models.SignatureVerifier) *AuthTokenChecker {
	return &AuthTokenChecker{logger: logger, verifier: verifier}
}

// CheckSignature verifies that signature signs the Authorization header
// value and that the recovered signer is address.
func (c *AuthTokenChecker) CheckSignature(address, signature, authHeader string) error {
	if signature == "" {
		c.noSignature.Add(1)
		return fault.New(fault.Authorization, "no signature provided")
	}
	if authHeader == "" {
		c.invalidSignatures.Add(1)
		return fault.New(fault.Authorization, "no Authorization header provided")
	}
	normalized, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		c.invalidSignatures.Add(1)
		return err
	}
	recovered, err := c.verifier.Recover(authHeader, signature)
	if err != nil {
		c.logger.Debug("Signature recovery failed: ", err)
		c.invalidSignatures.Add(1)
		return fault.New(fault.Authorization, "signature does not parse")
	}
	if !strings.EqualFold(normalized, recovered) {
		c.invalidSignatures.Add(1)
		return fault.Newf(fault.Authorization, "signature does not match address %s", normalized)
	}
	c.validSignatures.Add(1)
	return nil
}

func (c *AuthTokenChecker) Metrics() models.ChallengeMetrics {
	return models.ChallengeMetrics{
		ValidSignatures:   c.validSignatures.Load(),
		InvalidSignatures: c.invalidSignatures.Load(),
		NoSignature:       c.noSignature.Load(),
	}
}
