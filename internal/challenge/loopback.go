package challenge

import (
	"encoding/base64"
	"strings"
	"sync/atomic"
	"time"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/crypt"
	"github.com/core-coin/tabula/pkg/logger"
	"github.com/core-coin/tabula/pkg/validation"
)

// maxChallengeAge bounds how old a loopback challenge may be when the
// signed copy comes back.
const maxChallengeAge = 5 * time.Minute

// LoopbackChecker issues opaque challenge tokens and verifies signatures
// over them. The token is this service's own encrypted timestamp, so a
// valid signature proves control of the address within the freshness
// window.
type LoopbackChecker struct {
	logger   *logger.Logger
	verifier models.SignatureVerifier
	salt     string

	validSignatures   atomic.Int64
	invalidSignatures atomic.Int64
	noSignature       atomic.Int64

	// now is swappable for freshness tests.
	now func() time.Time
}

func NewLoopbackChecker(logger *logger.Logger, verifier models.SignatureVerifier, salt string) *LoopbackChecker {
	return &LoopbackChecker{
		logger:   logger,
		verifier: verifier,
		salt:     salt,
		now:      time.Now,
	}
}

// GetChallenge returns a fresh challenge token: the current timestamp
// encrypted under the instance salt, base64 encoded.
func (c *LoopbackChecker) GetChallenge() (string, error) {
	plaintext := c.now().UTC().Format(time.RFC3339Nano)
	sealed, err := crypt.Encrypt([]byte(plaintext), c.salt)
	if err != nil {
		return "", fault.Wrap(fault.Upstream, "failed to build challenge", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// CheckSignature verifies that signature signs message, that message is one
// of our own fresh challenges, and that the recovered signer is address.
func (c *LoopbackChecker) CheckSignature(address, signature, message string) error {
	if signature == "" {
		c.noSignature.Add(1)
		return fault.New(fault.Authorization, "no signature provided")
	}
	if err := c.checkFreshChallenge(message); err != nil {
		c.invalidSignatures.Add(1)
		return err
	}
	if err := c.recoverAndCompare(address, signature, message); err != nil {
		c.invalidSignatures.Add(1)
		return err
	}
	c.validSignatures.Add(1)
	return nil
}

func (c *LoopbackChecker) checkFreshChallenge(message string) error {
	sealed, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return fault.New(fault.Authorization, "message is not a challenge issued by this service")
	}
	plaintext, err := crypt.Decrypt(sealed, c.salt)
	if err != nil {
		return fault.New(fault.Authorization, "message is not a challenge issued by this service")
	}
	issued, err := time.Parse(time.RFC3339Nano, string(plaintext))
	if err != nil {
		return fault.New(fault.Authorization, "message is not a challenge issued by this service")
	}
	if c.now().UTC().Sub(issued) > maxChallengeAge {
		return fault.New(fault.Authorization, "challenge expired, request a new one")
	}
	return nil
}

func (c *LoopbackChecker) recoverAndCompare(address, signature, message string) error {
	normalized, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	recovered, err := c.verifier.Recover(message, signature)
	if err != nil {
		c.logger.Debug("Signature recovery failed: ", err)
		return fault.New(fault.Authorization, "signature does not parse")
	}
	if !strings.EqualFold(normalized, recovered) {
		return fault.Newf(fault.Authorization, "signature does not match address %s", normalized)
	}
	return nil
}

func (c *LoopbackChecker) Metrics() models.ChallengeMetrics {
	return models.ChallengeMetrics{
		ValidSignatures:   c.validSignatures.Load(),
		InvalidSignatures: c.invalidSignatures.Load(),
		NoSignature:       c.noSignature.Load(),
	}
}
