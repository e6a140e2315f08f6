package memcache

import (
	"sync"
	"testing"

	"coinwatch/pkg/types/prices"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string, float64]()

	c.Set("BTC-USD", 64000.5)
	val, ok := c.Get("BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 64000.5, val)

	_, ok = c.Get("ETH-USD")
	assert.False(t, ok)
}

func TestCache_ReplaceWholeValue(t *testing.T) {
	c := New[string, prices.PricePoint]()

	c.Set("BTC-USD", prices.PricePoint{Pair: prices.SamplePair, Price: 100})
	c.Set("BTC-USD", prices.PricePoint{Pair: prices.SamplePair, Price: 200})

	point, ok := c.Get("BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 200.0, point.Price)
	assert.Equal(t, 1, c.Len())
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string, int]()
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
	assert.Empty(t, c.Values())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(i%10, i)
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Get(i % 10)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 10)
}
