package memory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecentOrdering(t *testing.T) {
	s := NewStore(nil, nil)
	base := time.UnixMilli(0)

	for i := 0; i < 5; i++ {
		s.Append(ShortTerm, "energy", float64(i)/10, base.Add(time.Duration(i)*time.Second))
	}

	got := s.Recent(ShortTerm, "energy", 3)
	require.Len(t, got, 3)
	assert.InDelta(t, 0.2, got[0].Value, 1e-9)
	assert.InDelta(t, 0.3, got[1].Value, 1e-9)
	assert.InDelta(t, 0.4, got[2].Value, 1e-9)
}

func TestRecentFiltersByKey(t *testing.T) {
	s := NewStore(nil, nil)
	now := time.UnixMilli(0)

	s.Append(Session, "beat", 1, now)
	s.Append(Session, "energy", 0.5, now)
	s.Append(Session, "beat", 2, now)

	beats := s.Recent(Session, "beat", 10)
	require.Len(t, beats, 2)
	assert.InDelta(t, 1, beats[0].Value, 1e-9)
	assert.InDelta(t, 2, beats[1].Value, 1e-9)

	all := s.Recent(Session, "", 10)
	assert.Len(t, all, 3)
}

func TestShortTermEvictsOldest(t *testing.T) {
	s := NewStore(nil, nil)
	base := time.UnixMilli(0)

	for i := 0; i < 150; i++ {
		s.Append(ShortTerm, "energy", float64(i), base.Add(time.Duration(i)*time.Second))
	}

	assert.Equal(t, 100, s.Len(ShortTerm))

	got := s.Recent(ShortTerm, "energy", 100)
	require.Len(t, got, 100)
	// entries 0..49 were evicted
	assert.InDelta(t, 50, got[0].Value, 1e-9)
	assert.InDelta(t, 149, got[99].Value, 1e-9)
}

func TestScopesAreIndependent(t *testing.T) {
	s := NewStore(nil, nil)
	now := time.UnixMilli(0)

	s.Append(ShortTerm, "x", 1, now)
	s.Append(Session, "x", 2, now)
	s.Append(LongTerm, "x", 3, now)

	assert.Equal(t, 1, s.Len(ShortTerm))
	assert.Equal(t, 1, s.Len(Session))
	assert.Equal(t, 1, s.Len(LongTerm))
	assert.InDelta(t, 2, s.Recent(Session, "x", 1)[0].Value, 1e-9)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	fs := NewFileStore(path)
	base := time.UnixMilli(0)

	first := NewStore(nil, fs)
	for i := 0; i < 10; i++ {
		first.Append(LongTerm, "preference", float64(i), base.Add(time.Duration(i)*time.Minute))
	}
	first.Flush()

	second := NewStore(nil, fs)
	assert.Equal(t, 10, second.Len(LongTerm))

	got := second.Recent(LongTerm, "preference", 1)
	require.Len(t, got, 1)
	assert.InDelta(t, 9, got[0].Value, 1e-9)
	assert.Equal(t, LongTerm, got[0].Scope)
}

func TestFileStoreMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))
	entries, err := fs.Load()
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreUnknownSchemaLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schemaVersion":99,"entries":[{"key":"x","value":1}]}`), 0o644))

	entries, err := NewFileStore(path).Load()
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

type failingPersister struct{}

func (failingPersister) Persist([]Entry) error { return fmt.Errorf("disk full") }
func (failingPersister) Load() ([]Entry, error) {
	return nil, errors.New("backend offline")
}

func TestStoreSurvivesFailingPersister(t *testing.T) {
	s := NewStore(nil, failingPersister{})

	assert.Equal(t, 0, s.Len(LongTerm))

	s.Append(LongTerm, "x", 1, time.UnixMilli(0))
	s.Flush()
	assert.Equal(t, 1, s.Len(LongTerm))
}
