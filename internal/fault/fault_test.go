package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(New(NotFound, "nothing here")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := New(StoreUnavailable, "ping failed")
	outer := fmt.Errorf("loading providers: %w", inner)

	assert.True(t, IsKind(outer, StoreUnavailable))
	assert.False(t, IsKind(outer, NotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Upstream, "charge failed", cause)

	assert.True(t, IsKind(err, Upstream))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "charge failed: connection refused", err.Error())
}

func TestNewfFormats(t *testing.T) {
	err := Newf(Validation, "invalid amount (%d)", -5)
	require.Error(t, err)
	assert.Equal(t, "invalid amount (-5)", err.Error())
}
