package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "checkpoints.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestGetAdvance(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	_, ok, err := s.Get("db.people")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Advance("db.people", 10))
	require.NoError(t, s.Advance("db.people", 5))

	ts, ok, err := s.Get("db.people")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(10), ts)

	require.NoError(t, s.Advance("db.places", 3))
	all, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"db.people": 10, "db.places": 3}, all)
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := openTestStore(t)
	require.NoError(t, s.Advance("db.people", 42))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	ts, ok, err := reopened.Get("db.people")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), ts)
}
