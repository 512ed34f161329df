package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/core-coin/tabula/internal/fault"
	"github.com/core-coin/tabula/internal/models"
	"github.com/core-coin/tabula/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func TestPutGetDelete(t *testing.T) {
	store := NewStore(time.Minute, testLogger())
	session := &models.RetargetSession{Email: "a@b.co", EmailHash: "deadbeef", Address: "0xabc"}

	require.NoError(t, store.Put("id-1", session, time.Minute))

	got, err := store.Get("id-1")
	require.NoError(t, err)
	assert.Equal(t, session, got)

	// Get does not consume
	got, err = store.Get("id-1")
	require.NoError(t, err)
	assert.Equal(t, session, got)

	require.NoError(t, store.Delete("id-1"))
	_, err = store.Get("id-1")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.NotFound))
}

func TestTakeConsumes(t *testing.T) {
	store := NewStore(time.Minute, testLogger())
	session := &models.RetargetSession{Email: "a@b.co"}
	require.NoError(t, store.Put("id-1", session, time.Minute))

	got, err := store.Take("id-1")
	require.NoError(t, err)
	assert.Equal(t, session, got)

	_, err = store.Take("id-1")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.NotFound))
}

func TestConcurrentTakeSingleWinner(t *testing.T) {
	store := NewStore(time.Minute, testLogger())
	require.NoError(t, store.Put("id-1", &models.RetargetSession{Email: "a@b.co"}, time.Minute))

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take("id-1"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}

func TestTTLExpiry(t *testing.T) {
	store := NewStore(time.Minute, testLogger())
	require.NoError(t, store.Put("id-1", &models.RetargetSession{Email: "a@b.co"}, 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	_, err := store.Get("id-1")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.NotFound))
}

func TestUnknownID(t *testing.T) {
	store := NewStore(time.Minute, testLogger())
	_, err := store.Get("missing")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.NotFound))
}
