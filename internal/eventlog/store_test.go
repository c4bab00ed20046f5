package eventlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendThenFindReturnsEvent(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.Append(Event{Timestamp: now, Type: Created, Path: "/a/b.txt"}))

	got, err := s.Find(Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "/a/b.txt", got[0].Path)
	require.Equal(t, Created, got[0].Type)
}

func TestFindFiltersByType(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.Append(Event{Timestamp: now, Type: Created, Path: "/a"}))
	require.NoError(t, s.Append(Event{Timestamp: now, Type: Deleted, Path: "/b"}))

	got, err := s.Find(Query{Type: Deleted})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, Deleted, got[0].Type)
}

func TestFindIsReverseChronological(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	require.NoError(t, s.Append(Event{Timestamp: base, Type: Created, Path: "/first"}))
	require.NoError(t, s.Append(Event{Timestamp: base.Add(time.Second), Type: Created, Path: "/second"}))

	got, err := s.Find(Query{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "/second", got[0].Path)
	require.Equal(t, "/first", got[1].Path)
}

func TestFindRespectsSinceAndLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(Event{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Type:      Modified,
			Path:      "/f",
		}))
	}

	got, err := s.Find(Query{Since: base.Add(2 * time.Second), Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFindIsQueryableWhileWriting(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(Event{Timestamp: time.Now(), Type: Modified, Path: "/f"}))
		got, err := s.Find(Query{})
		require.NoError(t, err)
		require.Len(t, got, i+1)
	}
}
