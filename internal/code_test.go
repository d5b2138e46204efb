package internal

import (
	"bytes"
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

func getSign(v int) int {
	if v > 0 {
		return 1
	} else if v < 0 {
		return -1
	}
	return 0
}

func compareInt64(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func TestEncodeKeyPreservesOrder(t *testing.T) {
	n := 10000
	for i := 0; i < n; i++ {
		a, b := gofakeit.Int64(), gofakeit.Int64()
		if i%2 == 0 {
			a, b = int64(gofakeit.Number(-1000, 1000)), int64(gofakeit.Number(-1000, 1000))
		}

		aEncoded := EncodeKey(a)
		bEncoded := EncodeKey(b)

		require.Equal(t, compareInt64(a, b), getSign(bytes.Compare(aEncoded, bEncoded)))
	}
}

func TestDecodeKey(t *testing.T) {
	for _, key := range []int64{0, 1, -1, 7, math.MaxInt64, math.MinInt64} {
		decoded, err := DecodeKey(EncodeKey(key))
		require.NoError(t, err)
		require.Equal(t, key, decoded)
	}

	_, err := DecodeKey(append(EncodeKey(7), 0x01))
	require.Error(t, err)

	_, err = DecodeKey(nil)
	require.Error(t, err)
}
