package challenge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/pkg/logger"
)

var (
	addrA = "0x" + strings.Repeat("aa", 20)
	addrB = "0x" + strings.Repeat("bb", 20)
)

type stubVerifier struct {
	address string
	err     error
}

func (v *stubVerifier) Recover(message, signature string) (string, error) {
	if v.err != nil {
		return "", v.err
	}
	return v.address, nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func TestLoopbackRoundTrip(t *testing.T) {
	c := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrA}, "salt")

	challenge, err := c.GetChallenge()
	require.NoError(t, err)
	require.NotEmpty(t, challenge)

	require.NoError(t, c.CheckSignature(addrA, "sig", challenge))
	assert.Equal(t, int64(1), c.Metrics().ValidSignatures)
}

func TestLoopbackAddressCaseInsensitive(t *testing.T) {
	c := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrA}, "salt")

	challenge, err := c.GetChallenge()
	require.NoError(t, err)

	require.NoError(t, c.CheckSignature("0x"+strings.ToUpper(addrA[2:]), "sig", challenge))
}

func TestLoopbackRejectsForeignMessage(t *testing.T) {
	c := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrA}, "salt")

	err := c.CheckSignature(addrA, "sig", "not-a-challenge")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))
	assert.Equal(t, int64(1), c.Metrics().InvalidSignatures)
}

func TestLoopbackRejectsOtherSalt(t *testing.T) {
	issuer := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrA}, "salt-one")
	checker := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrA}, "salt-two")

	challenge, err := issuer.GetChallenge()
	require.NoError(t, err)

	err = checker.CheckSignature(addrA, "sig", challenge)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))
}

func TestLoopbackFreshnessWindow(t *testing.T) {
	c := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrA}, "salt")

	issued := time.Now()
	c.now = func() time.Time { return issued }
	challenge, err := c.GetChallenge()
	require.NoError(t, err)

	// just inside the window
	c.now = func() time.Time { return issued.Add(maxChallengeAge - time.Second) }
	require.NoError(t, c.CheckSignature(addrA, "sig", challenge))

	// past the window
	c.now = func() time.Time { return issued.Add(maxChallengeAge + time.Second) }
	err = c.CheckSignature(addrA, "sig", challenge)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))
}

func TestLoopbackRejectsWrongSigner(t *testing.T) {
	c := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrB}, "salt")

	challenge, err := c.GetChallenge()
	require.NoError(t, err)

	err = c.CheckSignature(addrA, "sig", challenge)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))
}

func TestLoopbackNoSignature(t *testing.T) {
	c := NewLoopbackChecker(testLogger(), &stubVerifier{address: addrA}, "salt")

	err := c.CheckSignature(addrA, "", "whatever")
	require.Error(t, err)
	assert.Equal(t, int64(1), c.Metrics().NoSignature)
}

func TestAuthTokenMatchesHeader(t *testing.T) {
	c := NewAuthTokenChecker(testLogger(), &stubVerifier{address: addrA})

	require.NoError(t, c.CheckSignature(addrA, "sig", "Bearer some-token"))
	assert.Equal(t, int64(1), c.Metrics().ValidSignatures)
}

func TestAuthTokenRejectsWrongSigner(t *testing.T) {
	c := NewAuthTokenChecker(testLogger(), &stubVerifier{address: addrB})

	err := c.CheckSignature(addrA, "sig", "Bearer some-token")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Authorization))
	assert.Equal(t, int64(1), c.Metrics().InvalidSignatures)
}

func TestAuthTokenMissingPieces(t *testing.T) {
	c := NewAuthTokenChecker(testLogger(), &stubVerifier{address: addrA})

	err := c.CheckSignature(addrA, "", "Bearer some-token")
	require.Error(t, err)
	assert.Equal(t, int64(1), c.Metrics().NoSignature)

	err = c.CheckSignature(addrA, "sig", "")
	require.Error(t, err)
	assert.Equal(t, int64(1), c.Metrics().InvalidSignatures)
}
