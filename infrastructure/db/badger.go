package db

import (
	"github.com/dgraph-io/badger/v4"
)

func OpenBadger(path string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
}

// OpenBadgerInMemory keeps everything in RAM. Nothing survives Close.
func OpenBadgerInMemory() (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
}
