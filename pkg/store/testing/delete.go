package testing

import (
	"testing"

	"github.com/marmos91/tunecache/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDeleteTests executes all delete operation tests.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("DeleteByKey_Success", suite.testDeleteByKey)
	t.Run("DeleteByKey_Idempotent", suite.testDeleteByKeyIdempotent)
	t.Run("DeleteWhere_Count", suite.testDeleteWhereCount)
	t.Run("DeleteWhere_NoMatch", suite.testDeleteWhereNoMatch)
	t.Run("DeleteWhere_MissingField", suite.testDeleteWhereMissingField)
}

func (suite *StoreTestSuite) testDeleteByKey(t *testing.T) {
	s := suite.newStore(t)
	key := generateTestID("delete")

	mustPut(t, s, store.DownloadedSongs, key, songRecord("a", store.Blob{Data: []byte("data")}))

	require.NoError(t, s.DeleteByKey(testContext(), store.DownloadedSongs, key))

	_, err := s.Get(testContext(), store.DownloadedSongs, key)
	AssertErrorIs(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testDeleteByKeyIdempotent(t *testing.T) {
	s := suite.newStore(t)
	key := generateTestID("never-existed")

	assert.NoError(t, s.DeleteByKey(testContext(), store.DownloadedSongs, key))
	assert.NoError(t, s.DeleteByKey(testContext(), store.DownloadedSongs, key))
}

func (suite *StoreTestSuite) testDeleteWhereCount(t *testing.T) {
	s := suite.newStore(t)

	mustPut(t, s, store.DownloadedSongs, "s1", songRecord("album-1", store.Buffer{MimeType: "audio/mpeg", Data: []byte("1")}))
	mustPut(t, s, store.DownloadedSongs, "s2", songRecord("album-1", store.Buffer{MimeType: "audio/mpeg", Data: []byte("2")}))
	mustPut(t, s, store.DownloadedSongs, "s3", songRecord("album-2", store.Buffer{MimeType: "audio/mpeg", Data: []byte("3")}))

	n, err := s.DeleteWhere(testContext(), store.DownloadedSongs, "albumId", "album-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := s.GetAll(testContext(), store.DownloadedSongs)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s3", recs[0].Key)
}

func (suite *StoreTestSuite) testDeleteWhereNoMatch(t *testing.T) {
	s := suite.newStore(t)

	mustPut(t, s, store.DownloadedSongs, "s1", songRecord("album-1", nil))

	n, err := s.DeleteWhere(testContext(), store.DownloadedSongs, "albumId", "other")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func (suite *StoreTestSuite) testDeleteWhereMissingField(t *testing.T) {
	s := suite.newStore(t)

	mustPut(t, s, store.DownloadedSongs, "s1", &store.Record{Value: []byte(`{}`)})

	n, err := s.DeleteWhere(testContext(), store.DownloadedSongs, "albumId", "")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "records without the field must not match an empty value")
}
