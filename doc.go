// Package kvdb provides a single record store API over interchangeable
// storage engines.
//
// A Database is opened from a Conf naming the engine: an in-process
// ordered map, badger, bbolt, PostgreSQL or MySQL. Every engine offers the
// same operations with the same semantics: int64 keys, byte string values,
// insert and update that refuse to overwrite or create, explicit
// transactions and a handle-local read cache.
//
//	db, err := kvdb.Open(ctx, kvdb.NewBadgerConf("/var/lib/app"), true)
//	if err != nil {
//		return err
//	}
//	defer db.Destruct()
//
//	if err := db.InsertRecord(ctx, 7, []byte("x")); kvdb.IsConflict(err) {
//		// already there
//	}
package kvdb
