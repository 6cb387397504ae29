package documents

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/models"
)

// Key layout:
//
//	doc/<id>                      -> JSON document
//	ts/<uint64 BE unix nanos><id> -> empty, recency index
var (
	docPrefix = []byte("doc/")
	tsPrefix  = []byte("ts/")
)

// BadgerStore keeps documents in an embedded badger database. Badger holds an
// exclusive directory lock, so only one process can open a given dir.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a store in dir. An empty dir selects
// in-memory mode.
func OpenBadger(dir string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if log != nil {
		opts = opts.WithLogger(badgerLogger{log.Sugar().Named("badger")})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func docKey(id string) []byte {
	return append(append([]byte(nil), docPrefix...), id...)
}

func tsKey(doc models.AnalysisDocument) []byte {
	k := make([]byte, 0, len(tsPrefix)+8+len(doc.ID))
	k = append(k, tsPrefix...)
	k = binary.BigEndian.AppendUint64(k, sortableNanos(doc))
	return append(k, doc.ID...)
}

// sortableNanos clamps pre-1970 timestamps to zero so big-endian byte order
// matches chronological order.
func sortableNanos(doc models.AnalysisDocument) uint64 {
	n := doc.ProcessedTimestamp.UnixNano()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func (s *BadgerStore) Exists(ctx context.Context, id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(docKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return true, nil
}

func (s *BadgerStore) Get(ctx context.Context, id string) (models.AnalysisDocument, error) {
	var doc models.AnalysisDocument
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = getDoc(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.AnalysisDocument{}, ErrNotFound
	}
	if err != nil {
		return models.AnalysisDocument{}, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

func getDoc(txn *badger.Txn, id string) (models.AnalysisDocument, error) {
	var doc models.AnalysisDocument
	item, err := txn.Get(docKey(id))
	if err != nil {
		return doc, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	})
	return doc, err
}

func (s *BadgerStore) Recent(ctx context.Context, limit int) ([]models.AnalysisDocument, error) {
	out := make([]models.AnalysisDocument, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = tsPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration seeks to the last key <= seek
		seek := append(append([]byte(nil), tsPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(tsPrefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			id := string(key[len(tsPrefix)+8:])
			doc, err := getDoc(txn, id)
			if err != nil {
				return fmt.Errorf("index entry %s: %w", id, err)
			}
			out = append(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Put(ctx context.Context, doc models.AnalysisDocument) error {
	if err := doc.Normalize(); err != nil {
		return err
	}
	val, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		prev, err := getDoc(txn, doc.ID)
		switch {
		case err == nil:
			// a reprocessed upload replaces its old recency entry
			if err := txn.Delete(tsKey(prev)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(docKey(doc.ID), val); err != nil {
			return err
		}
		return txn.Set(tsKey(doc), nil)
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts zap to badger.Logger, which spells Warningf.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
