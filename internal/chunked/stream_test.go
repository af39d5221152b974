package chunked

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextProducesContiguousChunks(t *testing.T) {
	data := make([]byte, BufferSize*2+100)
	for i := range data {
		data[i] = byte(i)
	}

	source := bytes.NewReader(data)
	rs := New(source, 0, int64(len(data)))

	var got []byte
	for {
		chunk, err := rs.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
	}

	assert.Equal(t, data, got)
}

func TestNextHonorsSubRange(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}

	source := bytes.NewReader(data)
	rs := New(source, 1024, 1024)

	var got []byte
	for {
		chunk, err := rs.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
	}

	assert.Equal(t, data[1024:2048], got)
}

func TestNextLastChunkMaySmaller(t *testing.T) {
	data := make([]byte, BufferSize+10)
	source := bytes.NewReader(data)
	rs := New(source, 0, int64(len(data)))

	first, err := rs.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, BufferSize)

	second, err := rs.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 10)

	_, err = rs.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestNextReturnsErrorOnEmptyRead(t *testing.T) {
	data := make([]byte, 10)
	source := bytes.NewReader(data)
	// Ask for more than the source actually has.
	rs := New(source, 0, 100)

	_, err := rs.Next(context.Background())
	require.NoError(t, err)
	_, err = rs.Next(context.Background())
	assert.Error(t, err)
}

func TestNextRespectsCancellation(t *testing.T) {
	data := make([]byte, 10)
	source := bytes.NewReader(data)
	rs := New(source, 0, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rs.Next(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
