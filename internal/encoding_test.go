package internal

import (
	"bytes"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestSnapshot(t *testing.T) {
	entries := make([]Entry, 0, 100)
	for i := 0; i < 100; i++ {
		entries = append(entries, Entry{
			Key:   EncodeKey(int64(i)),
			Value: []byte(gofakeit.Sentence(5)),
		})
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, entries))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	require.Equal(t, entries, decoded)
}

func TestSnapshotRejectsForeignData(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{"magic": "OTHER", "version": 1})
	require.NoError(t, err)

	_, err = DecodeSnapshot(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrBadSnapshot)

	_, err = DecodeSnapshot(bytes.NewReader([]byte{0xc1}))
	require.Error(t, err)
}
