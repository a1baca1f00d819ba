package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackends(t *testing.T) {
	fileBackend, err := NewFile(t.TempDir())
	require.NoError(t, err)

	backends := map[string]Backend{
		"memory": NewMemory(),
		"file":   fileBackend,
	}

	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := b.Get(ctx, KeyAccounts)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, KeyAccounts, []byte(`[{"id":"A"}]`)))
			got, err := b.Get(ctx, KeyAccounts)
			require.NoError(t, err)
			assert.JSONEq(t, `[{"id":"A"}]`, string(got))

			require.NoError(t, b.Put(ctx, KeyAccounts, []byte(`[]`)))
			got, err = b.Get(ctx, KeyAccounts)
			require.NoError(t, err)
			assert.Equal(t, "[]", string(got))
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	data := []byte("abc")
	require.NoError(t, m.Put(context.Background(), KeyNotes, data))
	data[0] = 'x'

	got, err := m.Get(context.Background(), KeyNotes)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src := NewMemory()
	require.NoError(t, src.Put(ctx, KeyAccounts, []byte(`[{"id":"A"}]`)))
	require.NoError(t, src.Put(ctx, KeyNotes, []byte(`"remember rent"`)))

	dst, err := NewFile(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, dst.Put(ctx, KeyPurposes, []byte(`["Food"]`)))

	n, err := Copy(ctx, dst, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := dst.Get(ctx, KeyNotes)
	require.NoError(t, err)
	assert.Equal(t, `"remember rent"`, string(got))

	got, err = dst.Get(ctx, KeyPurposes)
	require.NoError(t, err)
	assert.Equal(t, `["Food"]`, string(got))
}
