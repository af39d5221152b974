package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeObjectNameRejectsTraversal(t *testing.T) {
	assert.Error(t, SafeObjectName("../../etc/passwd"))
	assert.Error(t, SafeObjectName("/etc/passwd"))
	assert.Error(t, SafeObjectName(""))
	assert.NoError(t, SafeObjectName("a1b2c3"))
}

func TestSaveOpenRoundTrip(t *testing.T) {
	store, err := NewBucketStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte("blob contents")
	require.NoError(t, store.Save("obj-1", payload))

	f, err := store.Open("obj-1")
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestOpenRejectsTraversalName(t *testing.T) {
	store, err := NewBucketStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("../outside")
	assert.ErrorIs(t, err, ErrInvalidObjectName)
}

func TestListAndDelete(t *testing.T) {
	store, err := NewBucketStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("a", []byte("1")))
	require.NoError(t, store.Save("b", []byte("2")))

	names, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)

	require.NoError(t, store.Delete("a"))
	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}
