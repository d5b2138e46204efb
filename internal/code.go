package internal

import (
	"fmt"

	"github.com/google/orderedcode"
)

// EncodeKey returns the order preserving encoding of a record key: for any
// a < b, bytes.Compare(EncodeKey(a), EncodeKey(b)) < 0. Byte ordered
// engines therefore iterate records in numeric key order.
func EncodeKey(key int64) []byte {
	buf, err := orderedcode.Append(make([]byte, 0, 9), key)
	if err != nil {
		// orderedcode accepts every int64
		panic(err)
	}
	return buf
}

func DecodeKey(buf []byte) (int64, error) {
	var key int64
	remaining, err := orderedcode.Parse(string(buf), &key)
	if err != nil {
		return 0, err
	}
	if remaining != "" {
		return 0, fmt.Errorf("%d trailing bytes after key", len(remaining))
	}
	return key, nil
}
