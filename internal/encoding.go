package internal

import (
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	snapshotMagic   = "KVDBSNAP"
	snapshotVersion = 1
)

var ErrBadSnapshot = errors.New("not a kvdb snapshot")

// Entry is one key/value pair of a snapshot.
type Entry struct {
	Key   []byte `msgpack:"k"`
	Value []byte `msgpack:"v"`
}

type snapshot struct {
	Magic   string  `msgpack:"magic"`
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// EncodeSnapshot writes entries to w. Entries are written in the given order.
func EncodeSnapshot(w io.Writer, entries []Entry) error {
	return msgpack.NewEncoder(w).Encode(&snapshot{
		Magic:   snapshotMagic,
		Version: snapshotVersion,
		Entries: entries,
	})
}

func DecodeSnapshot(r io.Reader) ([]Entry, error) {
	s := &snapshot{}
	if err := msgpack.NewDecoder(r).Decode(s); err != nil {
		return nil, err
	}
	if s.Magic != snapshotMagic || s.Version != snapshotVersion {
		return nil, ErrBadSnapshot
	}
	return s.Entries, nil
}
