package mangashark

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsReadMerge(t *testing.T) {
	localRead := &ProgressRecord{UnitKey: "42", Complete: true}
	localUnread := &ProgressRecord{UnitKey: "42", Complete: false}

	// local record wins when present
	assert.True(t, IsRead(localRead, false))
	assert.False(t, IsRead(localUnread, true))

	// server flag is the fallback
	assert.True(t, IsRead(nil, true))
	assert.False(t, IsRead(nil, false))
}

func TestReadStatusCacheMergesSources(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	read := rec("1", t0, 1.0)
	read.Complete = true
	assert.Nil(t, store.Put(ctx, read))
	assert.Nil(t, store.Put(ctx, rec("2", t0, 0.4)))

	cache := NewReadStatusCache(store, 128)
	statuses, err := cache.ReadStatus(ctx, []UnitReadState{
		{UnitKey: "1", ServerRead: false}, // local complete overrides
		{UnitKey: "2", ServerRead: true},  // local incomplete overrides
		{UnitKey: "3", ServerRead: true},  // no local record, server wins
		{UnitKey: "4", ServerRead: false},
	})
	assert.Nil(t, err)
	assert.True(t, statuses["1"])
	assert.False(t, statuses["2"])
	assert.True(t, statuses["3"])
	assert.False(t, statuses["4"])
}

func TestReadStatusCacheServesFromCache(t *testing.T) {
	store := &countingGetStore{MemStore: NewMemStore()}
	ctx := context.Background()
	cache := NewReadStatusCache(store, 128)

	units := []UnitReadState{{UnitKey: "1"}, {UnitKey: "2"}}
	_, err := cache.ReadStatus(ctx, units)
	assert.Nil(t, err)
	assert.Equal(t, 1, store.batchGets)

	_, err = cache.ReadStatus(ctx, units)
	assert.Nil(t, err)
	assert.Equal(t, 1, store.batchGets)
}

func TestReadStatusCacheInvalidation(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	cache := NewReadStatusCache(store, 128)

	units := []UnitReadState{{UnitKey: "1", ServerRead: false}}
	statuses, _ := cache.ReadStatus(ctx, units)
	assert.False(t, statuses["1"])

	read := rec("1", time.Unix(1700000000, 0), 1.0)
	read.Complete = true
	assert.Nil(t, store.Put(ctx, read))
	cache.Invalidate("1")

	statuses, _ = cache.ReadStatus(ctx, units)
	assert.True(t, statuses["1"])
}

func TestUnreadCount(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	read := rec("1", t0, 1.0)
	read.Complete = true
	assert.Nil(t, store.Put(ctx, read))

	cache := NewReadStatusCache(store, 128)
	unread, err := cache.UnreadCount(ctx, []UnitReadState{
		{UnitKey: "1"},
		{UnitKey: "2", ServerRead: true},
		{UnitKey: "3"},
		{UnitKey: "4"},
	})
	assert.Nil(t, err)
	assert.Equal(t, 2, unread)
}

func TestEngineInvalidatesStatusCache(t *testing.T) {
	engine, store, _, _ := testEngine(Options{})
	cache := NewReadStatusCache(store, 128)
	engine.SetStatusCache(cache)
	ctx := context.Background()

	units := []UnitReadState{{UnitKey: "42", ServerRead: false}}
	statuses, _ := cache.ReadStatus(ctx, units)
	assert.False(t, statuses["42"])

	assert.Nil(t, engine.MarkUnitCompleteImmediate(ctx, "42", "s"))

	statuses, _ = cache.ReadStatus(ctx, units)
	assert.True(t, statuses["42"])
	assert.Nil(t, engine.Close(ctx))
}

type countingGetStore struct {
	*MemStore
	batchGets int
}

func (s *countingGetStore) BatchGet(ctx context.Context, keys []string) (map[string]*ProgressRecord, error) {
	s.batchGets++
	return s.MemStore.BatchGet(ctx, keys)
}
