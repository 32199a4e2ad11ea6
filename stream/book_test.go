package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	Last string `json:"last"`
	High string `json:"high"`
	Low  string `json:"low"`
}

func TestApplyDeltaMergesOverSnapshot(t *testing.T) {
	book := NewBook[quote]()

	_, err := book.ApplySnapshot("BTCUSDT", []byte(`{"last":"65000","high":"65500","low":"63900"}`))
	require.NoError(t, err)
	assert.True(t, book.Has("BTCUSDT"))

	merged, ok, err := book.ApplyDelta("BTCUSDT", []byte(`{"last":"65100"}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "65100", merged.Last, "delta fields overwrite")
	assert.Equal(t, "65500", merged.High, "absent fields keep the stored value")

	// The merge result becomes the new stored state.
	merged, ok, err = book.ApplyDelta("BTCUSDT", []byte(`{"low":"63800"}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "65100", merged.Last)
	assert.Equal(t, "63800", merged.Low)
}

func TestApplyDeltaWithoutSnapshot(t *testing.T) {
	book := NewBook[quote]()
	_, ok, err := book.ApplyDelta("ETHUSDT", []byte(`{"last":"3500"}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, book.Has("ETHUSDT"))
}

func TestApplySnapshotReplacesState(t *testing.T) {
	book := NewBook[quote]()
	_, err := book.ApplySnapshot("BTCUSDT", []byte(`{"last":"65000","high":"65500"}`))
	require.NoError(t, err)

	replaced, err := book.ApplySnapshot("BTCUSDT", []byte(`{"last":"64000"}`))
	require.NoError(t, err)
	assert.Equal(t, "64000", replaced.Last)
	assert.Empty(t, replaced.High, "a snapshot replaces, it does not merge")
}

func TestApplySnapshotBadPayload(t *testing.T) {
	book := NewBook[quote]()
	_, err := book.ApplySnapshot("BTCUSDT", []byte("garbage"))
	assert.Error(t, err)
	assert.False(t, book.Has("BTCUSDT"))
}
