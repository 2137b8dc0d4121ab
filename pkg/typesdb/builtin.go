package typesdb

import (
	"bytes"
	_ "embed" // for the default types database
	"sync"
)

//go:embed types.db
var builtinTypes []byte

var (
	builtinOnce sync.Once
	builtinDB   *Database
)

// Builtin returns a copy of the embedded default types database.  It panics if the embedded file is invalid,
// which is checked by tests.
func Builtin() *Database {
	builtinOnce.Do(func() {
		db, err := Load(bytes.NewReader(builtinTypes))
		if err != nil {
			panic(err)
		}
		builtinDB = db
	})
	db := New()
	db.Merge(builtinDB)
	return db
}
