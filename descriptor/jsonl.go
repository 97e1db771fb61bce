package descriptor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/mediaflow/errors"
	"github.com/kbukum/mediaflow/pipeline"
	"github.com/kbukum/mediaflow/retrievable"
)

// JSONL stores one newline-delimited JSON file per field. Appends are
// cheap; updates and deletes rewrite the field's file.
type JSONL struct {
	dir string

	mu     sync.Mutex
	index  map[string]map[uuid.UUID]struct{}
	closed bool
}

// OpenJSONL opens a store rooted at dir, creating it if needed.
func OpenJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("descriptor: create jsonl dir: %w", err)
	}
	return &JSONL{dir: dir, index: make(map[string]map[uuid.UUID]struct{})}, nil
}

func (s *JSONL) path(field string) string {
	return filepath.Join(s.dir, field+".jsonl")
}

// ids returns the id set of field, loading it on first use. Caller holds mu.
func (s *JSONL) ids(field string) (map[uuid.UUID]struct{}, error) {
	if ids, ok := s.index[field]; ok {
		return ids, nil
	}
	records, err := s.readAll(field)
	if err != nil {
		return nil, err
	}
	ids := make(map[uuid.UUID]struct{}, len(records))
	for _, r := range records {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("descriptor: %s: bad id %q", s.path(field), r.ID)
		}
		ids[id] = struct{}{}
	}
	s.index[field] = ids
	return ids, nil
}

func (s *JSONL) readAll(field string) ([]Record, error) {
	f, err := os.Open(s.path(field))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StorageError("read", fmt.Errorf("descriptor: open %s: %w", field, err))
	}
	defer f.Close()

	var out []Record
	sc := newScanner(f)
	for sc.Scan() {
		if len(strings.TrimSpace(sc.Text())) == 0 {
			continue
		}
		r, err := decodeRecord(sc.Bytes())
		if err != nil {
			return nil, apperrors.StorageError("read", fmt.Errorf("descriptor: decode %s: %w", field, err))
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.StorageError("read", fmt.Errorf("descriptor: scan %s: %w", field, err))
	}
	return out, nil
}

// decodeRecord keeps numbers as json.Number so Long values above 2^53
// survive the round trip.
func decodeRecord(line []byte) (Record, error) {
	var r Record
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	err := dec.Decode(&r)
	return r, err
}

func (s *JSONL) writeAll(field string, records []Record) error {
	tmp, err := os.CreateTemp(s.dir, field+".*.tmp")
	if err != nil {
		return apperrors.StorageError("rewrite", fmt.Errorf("descriptor: rewrite %s: %w", field, err))
	}
	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return apperrors.StorageError("encode", fmt.Errorf("descriptor: encode %s: %w", field, err))
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(field))
}

func (s *JSONL) Get(ctx context.Context, field string, id uuid.UUID) (*retrievable.Descriptor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	records, err := s.readAll(field)
	if err != nil {
		return nil, false, err
	}
	for _, r := range records {
		if r.ID == id.String() {
			d, err := r.Descriptor()
			return d, err == nil, err
		}
	}
	return nil, false, nil
}

// GetAll streams the field's file line by line. Writes that happen while
// the iterator is open may or may not be observed.
func (s *JSONL) GetAll(ctx context.Context, q Query) (pipeline.Iterator[*retrievable.Descriptor], error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	f, err := os.Open(s.path(q.Field))
	if os.IsNotExist(err) {
		return pipeline.Just[*retrievable.Descriptor]().Iter(ctx), nil
	}
	if err != nil {
		return nil, apperrors.StorageError("read", fmt.Errorf("descriptor: open %s: %w", q.Field, err))
	}

	lines := pipeline.From[[]byte](&lineIter{file: f, scanner: newScanner(f)})
	decoded := pipeline.Map(lines, func(_ context.Context, line []byte) (*retrievable.Descriptor, error) {
		r, err := decodeRecord(line)
		if err != nil {
			return nil, apperrors.StorageError("read", fmt.Errorf("descriptor: decode %s: %w", q.Field, err))
		}
		return r.Descriptor()
	})
	return limit(pipeline.Filter(decoded, q.Match), q).Iter(ctx), nil
}

func (s *JSONL) Count(_ context.Context, field string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	ids, err := s.ids(field)
	return len(ids), err
}

func (s *JSONL) Add(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	ids, err := s.ids(d.Field)
	if err != nil {
		return false, err
	}
	if _, exists := ids[d.ID]; exists {
		return false, nil
	}

	line, err := json.Marshal(NewRecord(d))
	if err != nil {
		return false, apperrors.StorageError("encode", fmt.Errorf("descriptor: encode %s: %w", d.Field, err))
	}
	f, err := os.OpenFile(s.path(d.Field), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return false, apperrors.StorageError("add", fmt.Errorf("descriptor: open %s: %w", d.Field, err))
	}
	_, werr := f.Write(append(line, '\n'))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return false, apperrors.StorageError("add", fmt.Errorf("descriptor: append %s: %w", d.Field, werr))
	}
	ids[d.ID] = struct{}{}
	return true, nil
}

func (s *JSONL) AddAll(ctx context.Context, ds []*retrievable.Descriptor) (bool, error) {
	return addAll(ctx, ds, s.Add)
}

func (s *JSONL) Update(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	return s.rewrite(d, func(records []Record, i int) []Record {
		records[i] = NewRecord(d)
		return records
	})
}

func (s *JSONL) Delete(_ context.Context, d *retrievable.Descriptor) (bool, error) {
	ok, err := s.rewrite(d, func(records []Record, i int) []Record {
		return append(records[:i], records[i+1:]...)
	})
	if ok {
		s.mu.Lock()
		if ids, loaded := s.index[d.Field]; loaded {
			delete(ids, d.ID)
		}
		s.mu.Unlock()
	}
	return ok, err
}

// rewrite applies edit to the record of d and writes the file back.
func (s *JSONL) rewrite(d *retrievable.Descriptor, edit func([]Record, int) []Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	records, err := s.readAll(d.Field)
	if err != nil {
		return false, err
	}
	for i, r := range records {
		if r.ID == d.ID.String() {
			return true, s.writeAll(d.Field, edit(records, i))
		}
	}
	return false, nil
}

func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.index = nil
	return nil
}

func newScanner(f *os.File) *bufio.Scanner {
	sc := bufio.NewScanner(f)
	// Vectors can make long lines.
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return sc
}

// lineIter yields the non-blank lines of a file.
type lineIter struct {
	file    *os.File
	scanner *bufio.Scanner
}

func (it *lineIter) Next(ctx context.Context) ([]byte, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if !it.scanner.Scan() {
			return nil, false, it.scanner.Err()
		}
		line := it.scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		return append([]byte(nil), line...), true, nil
	}
}

func (it *lineIter) Close() error { return it.file.Close() }
