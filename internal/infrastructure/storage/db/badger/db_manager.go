package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"
)

// DbManager holds the badgerhold store backing the trade repository.
type DbManager struct {
	Store *badgerhold.Store
}

// NewDbManager opens (or creates) the badger store under the given data
// directory. An empty dir opens an in-memory store, used by tests.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	var tradeDir string
	if len(baseDbDir) > 0 {
		tradeDir = filepath.Join(baseDbDir, "trades")
	}

	store, err := createDb(tradeDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening trade db: %w", err)
	}
	return &DbManager{Store: store}, nil
}

func (d *DbManager) Close() error {
	return d.Store.Close()
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer
	if err := json.NewEncoder(&buff).Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.None
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
