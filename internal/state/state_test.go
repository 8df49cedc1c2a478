package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AllPending(t *testing.T) {
	s := New()
	snap := s.Snapshot()

	require.Len(t, snap.Files, len(Kinds))
	for _, kind := range Kinds {
		rec, ok := snap.Files[kind]
		require.True(t, ok, "missing %s", kind)
		assert.Equal(t, kind, rec.Name)
		assert.Equal(t, StatusPending, rec.Status)
		assert.False(t, rec.Done)
		assert.Zero(t, rec.Progress)
		assert.Zero(t, rec.Size)
		assert.Equal(t, EmptyTimestamp, rec.Timestamp)
		assert.Len(t, rec.Timestamp, 8)
	}
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.URL)
}

func TestCompleted(t *testing.T) {
	now := time.Date(2024, 5, 1, 14, 3, 9, 0, time.UTC)
	rec := Completed(KindScript, now)

	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, "14:03:09", rec.Timestamp)
	assert.Equal(t, StatusDone, rec.Status)
	assert.True(t, rec.Done)
	assert.Zero(t, rec.Size)
}

func TestReplace(t *testing.T) {
	s := New()
	rec := Completed(KindStyle, time.Now())

	require.True(t, s.Replace(rec))
	got, ok := s.Record(KindStyle)
	require.True(t, ok)
	assert.True(t, got.Done)

	assert.False(t, s.Replace(Completed(Kind("fonts"), time.Now())))
	_, ok = s.Record(Kind("fonts"))
	assert.False(t, ok)
	assert.Len(t, s.Snapshot().Files, len(Kinds))
}

func TestSetSize_StaleRecord(t *testing.T) {
	s := New()
	first := Completed(KindScript, time.Now())
	s.Replace(first)

	second := Completed(KindScript, time.Now())
	s.Replace(second)

	s.SetSize(first, 999)
	got, _ := s.Record(KindScript)
	assert.Zero(t, got.Size, "size of a replaced record must not leak")

	s.SetSize(second, 42)
	got, _ = s.Record(KindScript)
	assert.Equal(t, 42, got.Size)
}

func TestErrorAndURL(t *testing.T) {
	s := New()

	s.SetError("E210: Build failed")
	s.SetError("E210: second")
	assert.Equal(t, "E210: second", s.Error())

	s.ClearError()
	assert.Empty(t, s.Error())

	s.SetURL("http://localhost:8080")
	assert.Equal(t, "http://localhost:8080", s.URL())
	assert.Equal(t, "http://localhost:8080", s.Snapshot().URL)
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := New()
	rec := Completed(KindDocument, time.Now())
	s.Replace(rec)

	snap := s.Snapshot()
	s.SetSize(rec, 100)

	assert.Zero(t, snap.Files[KindDocument].Size)
	assert.Equal(t, 100, s.Snapshot().TotalSize())
}

func TestSnapshot_TotalSize(t *testing.T) {
	s := New()
	for i, kind := range Kinds {
		rec := Completed(kind, time.Now())
		s.Replace(rec)
		s.SetSize(rec, i+1)
	}
	assert.Equal(t, 21, s.Snapshot().TotalSize())
}

func TestBuildState_Concurrent(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			rec := Completed(Kinds[i%len(Kinds)], time.Now())
			s.Replace(rec)
			s.SetSize(rec, i)
		}(i)
		go func() {
			defer wg.Done()
			snap := s.Snapshot()
			for _, rec := range snap.Files {
				if rec.Done != (rec.Status == StatusDone) {
					t.Errorf("record %s: Done=%v Status=%s", rec.Name, rec.Done, rec.Status)
				}
			}
		}()
	}
	wg.Wait()
}

func TestKind_Valid(t *testing.T) {
	for _, kind := range Kinds {
		assert.True(t, kind.Valid())
	}
	assert.False(t, Kind("service-worker").Valid())
	assert.False(t, Kind("").Valid())
}
