package pebble

import (
	"github.com/xenosgpu/xenos/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestIterator(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{
			name: "full_range_iteration",
			fn:   testFullRangeIteration,
		},
		{
			name: "bounded_range_iteration",
			fn:   testBoundedRangeIteration,
		},
		{
			name: "iterator_validity",
			fn:   testIteratorValidity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewKVStore()
			require.NoError(t, err)
			defer store.Close() //nolint:errcheck // TODO: handle error

			tc.fn(t, store)
		})
	}
}

func testFullRangeIteration(t *testing.T, store db.KVStore) {
	// Shader dump entries across both stages.
	data := map[string]string{
		"p/33d9e0b7": "exece\n",
		"v/11aa02c4": "cnop\n",
		"v/8c1f04a2": "exec\n",
		"v/f01d22e9": "alloc position\n",
	}

	for k, v := range data {
		err := store.Put([]byte(k), []byte(v))
		require.NoError(t, err)
	}

	// Test full range iteration
	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // TODO: handle error

	count := 0
	// First position the iterator at the start
	if iter.Next() {
		count++
		value, err := iter.Value()
		require.NoError(t, err)

		expectedValue, exists := data[string(iter.Key())]
		assert.True(t, exists)
		assert.Equal(t, []byte(expectedValue), value)

		// Then continue with the rest
		for iter.Next() {
			value, err := iter.Value()
			require.NoError(t, err)

			expectedValue, exists := data[string(iter.Key())]
			assert.True(t, exists)
			assert.Equal(t, []byte(expectedValue), value)
			count++
		}
	}
	assert.Equal(t, len(data), count)
}

func testBoundedRangeIteration(t *testing.T, store db.KVStore) {
	// Dumps for both stages; the scan below must only see the vertex ones.
	data := map[string]string{
		"p/33d9e0b7": "exece\n",
		"p/c2e00451": "cnop\n",
		"v/11aa02c4": "cnop\n",
		"v/8c1f04a2": "exec\n",
		"v/f01d22e9": "alloc position\n",
	}

	for k, v := range data {
		err := store.Put([]byte(k), []byte(v))
		require.NoError(t, err)
	}

	// Scan the vertex stage prefix only.
	iter, err := store.NewIterator([]byte("v/"), []byte("v0"))
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // TODO: handle error

	expected := map[string]string{
		"v/11aa02c4": "cnop\n",
		"v/8c1f04a2": "exec\n",
		"v/f01d22e9": "alloc position\n",
	}

	count := 0
	if iter.Next() {
		count++
		value, err := iter.Value()
		require.NoError(t, err)

		expectedValue, exists := expected[string(iter.Key())]
		assert.True(t, exists)
		assert.Equal(t, []byte(expectedValue), value)

		for iter.Next() {
			value, err := iter.Value()
			require.NoError(t, err)

			expectedValue, exists := expected[string(iter.Key())]
			assert.True(t, exists)
			assert.Equal(t, []byte(expectedValue), value)
			count++
		}
	}
	assert.Equal(t, len(expected), count)
}

func testIteratorValidity(t *testing.T, store db.KVStore) {
	// Prepare a few key-value pairs to ensure proper iteration
	testData := map[string]string{
		"v/11aa02c4": "cnop\n",
		"v/8c1f04a2": "exec\n",
	}

	for k, v := range testData {
		err := store.Put([]byte(k), []byte(v))
		require.NoError(t, err)
	}

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // TODO: handle error

	// Initial state - iterator is not positioned
	assert.False(t, iter.Valid())

	// First Next() should position at first element
	assert.True(t, iter.Next())
	assert.True(t, iter.Valid())

	val, err := iter.Value()
	require.NoError(t, err)
	assert.Contains(t, testData, string(iter.Key()))
	assert.Equal(t, testData[string(iter.Key())], string(val))

	// Should be able to move to second element
	assert.True(t, iter.Next())
	assert.True(t, iter.Valid())

	val, err = iter.Value()
	require.NoError(t, err)
	assert.Contains(t, testData, string(iter.Key()))
	assert.Equal(t, testData[string(iter.Key())], string(val))

	// No more elements
	assert.False(t, iter.Next())
	assert.False(t, iter.Valid())

	// Value() should error when invalid
	_, err = iter.Value()
	assert.ErrorIs(t, err, ErrIteratorInvalid)
}
