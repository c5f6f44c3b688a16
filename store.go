package mangashark

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	"github.com/cockroachdb/pebble"
	"github.com/franciscasao/manga-shark-sub000/mangashark_errors"
	"github.com/learn-decentralized-systems/toytlv"
)

// DurableStore is the local persistence boundary for progress records.
// Get returns (nil, nil) for an absent key. Every implementation must
// gate writes through Resolve; no writer may bypass the conflict
// resolver.
type DurableStore interface {
	Get(ctx context.Context, unitKey string) (*ProgressRecord, error)
	Put(ctx context.Context, rec *ProgressRecord) error
	BatchGet(ctx context.Context, unitKeys []string) (map[string]*ProgressRecord, error)
	Delete(ctx context.Context, unitKey string) error
	DeleteAll(ctx context.Context) error
	Close() error
}

// Progress values are TLV records: a 'P' envelope carrying
// T (stamp nanos), F (fraction bits), X (last index), C (flags),
// U (unit key), S (series key) in that order.
func appendProgress(dst []byte, rec *ProgressRecord) []byte {
	var stamp, frac [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(rec.UpdatedAt.UnixNano()))
	binary.BigEndian.PutUint64(frac[:], math.Float64bits(rec.Fraction))
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(rec.LastIndex))
	var flags byte
	if rec.Complete {
		flags |= 1
	}
	return toytlv.Append(dst, 'P',
		toytlv.Record('T', stamp[:]),
		toytlv.Record('F', frac[:]),
		toytlv.Record('X', idx[:]),
		toytlv.Record('C', []byte{flags}),
		toytlv.Record('U', []byte(rec.UnitKey)),
		toytlv.Record('S', []byte(rec.SeriesKey)),
	)
}

func parseProgress(raw []byte) (*ProgressRecord, error) {
	body, rest := toytlv.Take('P', raw)
	if body == nil || len(rest) != 0 {
		return nil, mangashark_errors.ErrBadRecord
	}
	stamp, body := toytlv.Take('T', body)
	frac, body := toytlv.Take('F', body)
	idx, body := toytlv.Take('X', body)
	flags, body := toytlv.Take('C', body)
	unit, body := toytlv.Take('U', body)
	series, body := toytlv.Take('S', body)
	if len(stamp) != 8 || len(frac) != 8 || len(idx) != 4 || len(flags) != 1 ||
		unit == nil || series == nil || len(body) != 0 {
		return nil, mangashark_errors.ErrBadRecord
	}
	return &ProgressRecord{
		UpdatedAt: time.Unix(0, int64(binary.BigEndian.Uint64(stamp))),
		Fraction:  math.Float64frombits(binary.BigEndian.Uint64(frac)),
		LastIndex: int(binary.BigEndian.Uint32(idx)),
		Complete:  flags[0]&1 != 0,
		UnitKey:   string(unit),
		SeriesKey: string(series),
	}, nil
}

// progress keys live under the 'P' prefix; the hash keeps the sorted
// portion fixed-width, the raw key disambiguates collisions
func progressKey(unitKey string) []byte {
	key := make([]byte, 0, 9+len(unitKey))
	key = append(key, 'P')
	key = binary.BigEndian.AppendUint64(key, xxhash.Sum64String(unitKey))
	key = append(key, unitKey...)
	return key
}

type progressMergeAdaptor struct {
	old  bool
	vals [][]byte
}

func (a *progressMergeAdaptor) MergeNewer(value []byte) error {
	target := make([]byte, len(value))
	copy(target, value)
	a.vals = append(a.vals, target)
	return nil
}

func (a *progressMergeAdaptor) MergeOlder(value []byte) error {
	target := make([]byte, len(value))
	copy(target, value)
	a.vals = append(a.vals, target)
	a.old = true
	return nil
}

func (a *progressMergeAdaptor) Finish(includesBase bool) ([]byte, io.Closer, error) {
	if a.old {
		slices.Reverse(a.vals)
	}
	if len(a.vals) == 0 {
		return nil, nil, nil
	}
	return mergeProgress(a.vals), nil, nil
}

func progressMerger(key, value []byte) (pebble.ValueMerger, error) {
	target := make([]byte, len(value))
	copy(target, value)
	return &progressMergeAdaptor{vals: [][]byte{target}}, nil
}

var writeOptions = pebble.WriteOptions{Sync: false}

// PebbleStore keeps progress records in a pebble database with a
// last-write-wins merge operator, so even writers racing past the
// engine's read-compare-write path converge on the newest record.
type PebbleStore struct {
	db   *pebble.DB
	lock sync.Mutex
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	opts := pebble.Options{
		Merger: &pebble.Merger{
			Name:  "LWW",
			Merge: progressMerger,
		},
	}
	db, err := pebble.Open(dir, &opts)
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(ctx context.Context, unitKey string) (*ProgressRecord, error) {
	if s.db == nil {
		return nil, mangashark_errors.ErrClosed
	}
	val, clo, err := s.db.Get(progressKey(unitKey))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := parseProgress(val)
	_ = clo.Close()
	return rec, err
}

func (s *PebbleStore) Put(ctx context.Context, rec *ProgressRecord) error {
	if s.db == nil {
		return mangashark_errors.ErrClosed
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.db.Merge(progressKey(rec.UnitKey), appendProgress(nil, rec), &writeOptions)
}

func (s *PebbleStore) BatchGet(ctx context.Context, unitKeys []string) (map[string]*ProgressRecord, error) {
	out := make(map[string]*ProgressRecord, len(unitKeys))
	for _, key := range unitKeys {
		rec, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out[key] = rec
		}
	}
	return out, nil
}

func (s *PebbleStore) Delete(ctx context.Context, unitKey string) error {
	if s.db == nil {
		return mangashark_errors.ErrClosed
	}
	return s.db.Delete(progressKey(unitKey), &writeOptions)
}

func (s *PebbleStore) DeleteAll(ctx context.Context) error {
	if s.db == nil {
		return mangashark_errors.ErrClosed
	}
	return s.db.DeleteRange([]byte{'P'}, []byte{'Q'}, &writeOptions)
}

func (s *PebbleStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.db == nil {
		return mangashark_errors.ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Database exposes the underlying pebble handle for metrics collection.
func (s *PebbleStore) Database() *pebble.DB {
	return s.db
}

// MemStore is the in-memory DurableStore used by tests and ephemeral
// sessions. Writes go through the same resolver gate as PebbleStore.
type MemStore struct {
	lock sync.Mutex
	recs map[string]*ProgressRecord
}

func NewMemStore() *MemStore {
	return &MemStore{recs: make(map[string]*ProgressRecord)}
}

func (s *MemStore) Get(ctx context.Context, unitKey string) (*ProgressRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.recs[unitKey], nil
}

func (s *MemStore) Put(ctx context.Context, rec *ProgressRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.lock.Lock()
	s.recs[rec.UnitKey] = Resolve(s.recs[rec.UnitKey], rec)
	s.lock.Unlock()
	return nil
}

func (s *MemStore) BatchGet(ctx context.Context, unitKeys []string) (map[string]*ProgressRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[string]*ProgressRecord, len(unitKeys))
	for _, key := range unitKeys {
		if rec, ok := s.recs[key]; ok {
			out[key] = rec
		}
	}
	return out, nil
}

func (s *MemStore) Delete(ctx context.Context, unitKey string) error {
	s.lock.Lock()
	delete(s.recs, unitKey)
	s.lock.Unlock()
	return nil
}

func (s *MemStore) DeleteAll(ctx context.Context) error {
	s.lock.Lock()
	s.recs = make(map[string]*ProgressRecord)
	s.lock.Unlock()
	return nil
}

func (s *MemStore) Close() error {
	return nil
}
