package descriptor

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	apperrors "github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/logger"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// Key layout:
//
//	d/<field>/<retrievable>/<descriptor>  msgpack Record
//	i/<field>/<descriptor>                primary key
const (
	dataPrefix  = "d/"
	indexPrefix = "i/"
)

func dataKey(field string, rid, id uuid.UUID) []byte {
	return []byte(dataPrefix + field + "/" + rid.String() + "/" + id.String())
}

func fieldPrefix(field string) []byte {
	return []byte(dataPrefix + field + "/")
}

func retrievablePrefix(field string, rid uuid.UUID) []byte {
	return []byte(dataPrefix + field + "/" + rid.String() + "/")
}

func indexKey(field string, id uuid.UUID) []byte {
	return []byte(indexPrefix + field + "/" + id.String())
}

// Badger stores msgpack-encoded descriptors in an embedded badger database.
type Badger struct {
	db *badger.DB
}

// badgerLogger routes badger's logs to the component logger.
type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any)   { l.log.Error(fmt.Sprintf(msg, args...)) }
func (l badgerLogger) Warningf(msg string, args ...any) { l.log.Warn(fmt.Sprintf(msg, args...)) }
func (l badgerLogger) Infof(msg string, args ...any)    { l.log.Debug(fmt.Sprintf(msg, args...)) }
func (l badgerLogger) Debugf(msg string, args ...any)   { l.log.Debug(fmt.Sprintf(msg, args...)) }

// OpenBadger opens or creates a database in dir. An empty dir opens an
// in-memory database.
func OpenBadger(dir string) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("descriptor: create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = badgerLogger{log: logger.Get("badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("descriptor: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (s *Badger) Get(_ context.Context, field string, id uuid.UUID) (*retrievable.Descriptor, bool, error) {
	var out *retrievable.Descriptor
	err := s.db.View(func(txn *badger.Txn) error {
		key, err := primaryKey(txn, field, id)
		if err != nil || key == nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = decodeItem(item)
		return err
	})
	if err != nil {
		return nil, false, apperrors.StorageError("get", fmt.Errorf("descriptor: get %s/%s: %w", field, id, err))
	}
	return out, out != nil, nil
}

// GetAll iterates the field's keys, or one key range per retrievable when
// the query names retrievables.
func (s *Badger) GetAll(ctx context.Context, q Query) (pipeline.Iterator[*retrievable.Descriptor], error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}
	var p *pipeline.Pipeline[*retrievable.Descriptor]
	if len(q.RetrievableIDs) == 0 {
		p = s.scan(fieldPrefix(q.Field))
	} else {
		parts := make([]*pipeline.Pipeline[*retrievable.Descriptor], len(q.RetrievableIDs))
		for i, rid := range q.RetrievableIDs {
			parts[i] = s.scan(retrievablePrefix(q.Field, rid))
		}
		p = pipeline.Concat(parts...)
	}
	return limit(p, q).Iter(ctx), nil
}

func (s *Badger) scan(prefix []byte) *pipeline.Pipeline[*retrievable.Descriptor] {
	return pipeline.FromFunc(func(context.Context) pipeline.Iterator[*retrievable.Descriptor] {
		txn := s.db.NewTransaction(false)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		it.Rewind()
		return &badgerIter{txn: txn, it: it}
	})
}

type badgerIter struct {
	txn     *badger.Txn
	it      *badger.Iterator
	started bool
}

func (b *badgerIter) Next(ctx context.Context) (*retrievable.Descriptor, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if b.started {
		b.it.Next()
	}
	b.started = true
	if !b.it.Valid() {
		return nil, false, nil
	}
	d, err := decodeItem(b.it.Item())
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

func (b *badgerIter) Close() error {
	b.it.Close()
	b.txn.Discard()
	return nil
}

func (s *Badger) Count(_ context.Context, field string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(indexPrefix + field + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Badger) Add(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	added := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		added, err = addTxn(txn, d)
		return err
	})
	if err != nil {
		return false, apperrors.StorageError("add", fmt.Errorf("descriptor: add %s: %w", d.ID, err))
	}
	return added, nil
}

// AddAll writes all descriptors in one write batch.
func (s *Badger) AddAll(_ context.Context, ds []*retrievable.Descriptor) (bool, error) {
	all := true
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, d := range ds {
			added, err := addTxn(txn, d)
			if err != nil {
				return err
			}
			all = all && added
		}
		return nil
	})
	if stderrors.Is(err, badger.ErrTxnTooBig) {
		// Fall back to one transaction per descriptor.
		return addAll(context.Background(), ds, s.Add)
	}
	if err != nil {
		return false, apperrors.StorageError("add", fmt.Errorf("descriptor: add batch: %w", err))
	}
	return all, nil
}

func addTxn(txn *badger.Txn, d *retrievable.Descriptor) (bool, error) {
	key, err := primaryKey(txn, d.Field, d.ID)
	if err != nil || key != nil {
		return false, err
	}
	val, err := msgpack.Marshal(NewRecord(d))
	if err != nil {
		return false, err
	}
	pk := dataKey(d.Field, d.RetrievableID, d.ID)
	if err := txn.Set(pk, val); err != nil {
		return false, err
	}
	return true, txn.Set(indexKey(d.Field, d.ID), pk)
}

func (s *Badger) Update(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	updated := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key, err := primaryKey(txn, d.Field, d.ID)
		if err != nil || key == nil {
			return err
		}
		val, err := msgpack.Marshal(NewRecord(d))
		if err != nil {
			return err
		}
		pk := dataKey(d.Field, d.RetrievableID, d.ID)
		if string(pk) != string(key) {
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(indexKey(d.Field, d.ID), pk); err != nil {
				return err
			}
		}
		updated = true
		return txn.Set(pk, val)
	})
	if err != nil {
		return false, apperrors.StorageError("update", fmt.Errorf("descriptor: update %s: %w", d.ID, err))
	}
	return updated, nil
}

func (s *Badger) Delete(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key, err := primaryKey(txn, d.Field, d.ID)
		if err != nil || key == nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		deleted = true
		return txn.Delete(indexKey(d.Field, d.ID))
	})
	if err != nil {
		return false, apperrors.StorageError("delete", fmt.Errorf("descriptor: delete %s: %w", d.ID, err))
	}
	return deleted, nil
}

func (s *Badger) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

// primaryKey looks up the data key of a descriptor id. It returns nil when
// the id is unknown.
func primaryKey(txn *badger.Txn, field string, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(indexKey(field, id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func decodeItem(item *badger.Item) (*retrievable.Descriptor, error) {
	var r Record
	err := item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &r)
	})
	if err != nil {
		return nil, err
	}
	return r.Descriptor()
}
