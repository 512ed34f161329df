package tallycache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

var (
	addrA = "0x" + strings.Repeat("aa", 20)
	addrB = "0x" + strings.Repeat("bb", 20)
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func TestEligibility(t *testing.T) {
	asOf := time.Now().UTC()

	assert.False(t, Eligible(models.TallyQuery{FromAddress: addrA, ToAddress: addrB}))
	assert.False(t, Eligible(models.TallyQuery{FromAddress: addrA, ToAddress: addrB, TallyOnly: true}))
	assert.False(t, Eligible(models.TallyQuery{FromAddress: addrA, ToAddress: addrB, AsOf: &asOf}))
	assert.True(t, Eligible(models.TallyQuery{FromAddress: addrA, ToAddress: addrB, TallyOnly: true, AsOf: &asOf}))
}

func TestSavePinsResultAsOf(t *testing.T) {
	g := NewGate(time.Minute, testLogger())

	// first call: tally-only without as-of, as a front-end caller would
	fresh := models.TallyQuery{FromAddress: addrA, ToAddress: addrB, TallyOnly: true}
	result := &models.TallyResult{Tally: 299, AsOf: time.Now().UTC().Format(time.RFC3339Nano)}
	g.Save(fresh, result)
	assert.Equal(t, int64(1), g.Metrics().Saves)

	// follow-up pinned to the returned as-of replays from cache
	asOf, err := time.Parse(time.RFC3339Nano, result.AsOf)
	require.NoError(t, err)
	pinned := models.TallyQuery{FromAddress: addrA, ToAddress: addrB, TallyOnly: true, AsOf: &asOf}

	cached, ok := g.Check(pinned)
	require.True(t, ok)
	assert.Equal(t, int64(299), cached.Tally)
	assert.Equal(t, int64(1), g.Metrics().Hits)
}

func TestCheckMiss(t *testing.T) {
	g := NewGate(time.Minute, testLogger())
	asOf := time.Now().UTC()

	_, ok := g.Check(models.TallyQuery{FromAddress: addrA, ToAddress: addrB, TallyOnly: true, AsOf: &asOf})
	assert.False(t, ok)
	assert.Equal(t, int64(1), g.Metrics().Misses)
}

func TestKeyCoversSelectors(t *testing.T) {
	asOf := time.Now().UTC()
	base := models.TallyQuery{FromAddress: addrA, ToAddress: addrB, TallyOnly: true, AsOf: &asOf}

	other := base
	other.MaxMostRecent = 5
	assert.NotEqual(t, Key(base), Key(other))

	other = base
	other.IncludePrivate = true
	assert.NotEqual(t, Key(base), Key(other))

	other = base
	since := asOf.Add(-time.Hour)
	other.Since = &since
	assert.NotEqual(t, Key(base), Key(other))
}

func TestListingQueriesNotSaved(t *testing.T) {
	g := NewGate(time.Minute, testLogger())
	asOf := time.Now().UTC()
	q := models.TallyQuery{FromAddress: addrA, ToAddress: addrB, AsOf: &asOf}

	g.Save(q, &models.TallyResult{Tally: 1, AsOf: asOf.Format(time.RFC3339Nano)})
	assert.Equal(t, int64(0), g.Metrics().Saves)
}
