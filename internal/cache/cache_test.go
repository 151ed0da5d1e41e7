package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpAndETag(t *testing.T) {
	var v Versions

	assert.Equal(t, uint64(0), v.Get(Inventory))
	before := v.ETag(Inventory)

	v.Bump(Inventory, Stats, Inventory)

	assert.Equal(t, uint64(1), v.Get(Inventory), "duplicate keys bump once")
	assert.Equal(t, uint64(1), v.Get(Stats))
	assert.Equal(t, uint64(0), v.Get(Borrowed))
	assert.NotEqual(t, before, v.ETag(Inventory))
	assert.Equal(t, `W/"inventory-1.borrowed-0"`, v.ETag(Inventory, Borrowed))
}

func TestWatchers(t *testing.T) {
	var v Versions
	var got []Key
	v.Watch(func(k Key) { got = append(got, k) })

	v.Bump(Borrowed, Inventory)

	assert.Equal(t, []Key{Borrowed, Inventory}, got)
}

func TestMemo(t *testing.T) {
	var v Versions
	m := NewMemo[int](&v, Stats)
	calls := 0
	compute := func() (int, error) {
		calls++
		return calls * 10, nil
	}

	first, err := m.Get(compute)
	require.NoError(t, err)
	second, err := m.Get(compute)
	require.NoError(t, err)
	assert.Equal(t, 10, first)
	assert.Equal(t, 10, second)
	assert.Equal(t, 1, calls)

	v.Bump(Users)
	_, _ = m.Get(compute)
	assert.Equal(t, 1, calls, "unrelated key does not invalidate")

	v.Bump(Stats)
	third, err := m.Get(compute)
	require.NoError(t, err)
	assert.Equal(t, 20, third)
}

func TestMemoDoesNotCacheErrors(t *testing.T) {
	var v Versions
	m := NewMemo[string](&v, Stats)

	_, err := m.Get(func() (string, error) { return "", errors.New("boom") })
	require.Error(t, err)

	got, err := m.Get(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
