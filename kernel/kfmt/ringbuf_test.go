package kfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	expStr := "the big brown fox jumped over the lazy dog"

	t.Run("read/write", func(t *testing.T) {
		var rb ringBuffer
		n, err := rb.Write([]byte(expStr))
		require.NoError(t, err)
		require.Equal(t, len(expStr), n)

		require.Equal(t, expStr, readByteByByte(t, &rb))
	})

	t.Run("wrap around", func(t *testing.T) {
		var rb ringBuffer
		rb.head = ringBufferSize - 2

		_, err := rb.Write([]byte(expStr))
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = io.Copy(&buf, &rb)
		require.NoError(t, err)
		require.Equal(t, expStr, buf.String())
	})

	t.Run("overflow keeps newest bytes", func(t *testing.T) {
		var rb ringBuffer
		input := strings.Repeat("a", ringBufferSize) + "tail"

		_, err := rb.Write([]byte(input))
		require.NoError(t, err)
		require.Equal(t, ringBufferSize, rb.count)

		got := readByteByByte(t, &rb)
		require.Len(t, got, ringBufferSize)
		require.True(t, strings.HasSuffix(got, "tail"))
	})

	t.Run("empty read", func(t *testing.T) {
		var rb ringBuffer
		n, err := rb.Read(make([]byte, 4))
		require.Equal(t, io.EOF, err)
		require.Zero(t, n)
	})
}

func readByteByByte(t *testing.T, r io.Reader) string {
	t.Helper()

	var (
		buf bytes.Buffer
		b   = make([]byte, 1)
	)
	for {
		_, err := r.Read(b)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		buf.Write(b)
	}
	return buf.String()
}
