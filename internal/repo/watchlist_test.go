package repo

import (
	"testing"

	"coinwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWatchPair(t *testing.T) {
	r := setupRepo(t)

	require.NoError(t, r.AddWatchPair(&models.WatchPair{Base: "BTC", Quote: "USD"}))
	require.NoError(t, r.AddWatchPair(&models.WatchPair{Base: "ETH", Quote: "USD"}))

	list, err := r.GetWatchList()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BTC", list[0].Base)
	assert.Equal(t, "ETH", list[1].Base)
}

func TestAddWatchPair_Duplicate(t *testing.T) {
	r := setupRepo(t)

	require.NoError(t, r.AddWatchPair(&models.WatchPair{Base: "BTC", Quote: "USD"}))
	err := r.AddWatchPair(&models.WatchPair{Base: "BTC", Quote: "USD"})
	assert.ErrorIs(t, err, ErrDuplicateWatchPair)

	list, err := r.GetWatchList()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddWatchPair_SameBaseDifferentQuote(t *testing.T) {
	r := setupRepo(t)

	require.NoError(t, r.AddWatchPair(&models.WatchPair{Base: "BTC", Quote: "USD"}))
	require.NoError(t, r.AddWatchPair(&models.WatchPair{Base: "BTC", Quote: "EUR"}))

	list, err := r.GetWatchList()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRemoveWatchPair(t *testing.T) {
	r := setupRepo(t)

	require.NoError(t, r.AddWatchPair(&models.WatchPair{Base: "BTC", Quote: "USD"}))
	require.NoError(t, r.RemoveWatchPair("BTC", "USD"))

	list, err := r.GetWatchList()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRemoveWatchPair_NotFound(t *testing.T) {
	r := setupRepo(t)
	err := r.RemoveWatchPair("BTC", "USD")
	assert.ErrorIs(t, err, ErrWatchPairNotFound)
}
