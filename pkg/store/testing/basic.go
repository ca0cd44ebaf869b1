package testing

import (
	"testing"

	"github.com/marmos91/tunecache/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes all basic Backend operation tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("Put_Get", suite.testPutGet)
	t.Run("Put_Upsert", suite.testPutUpsert)
	t.Run("Put_InvalidKey", suite.testPutInvalidKey)
	t.Run("Put_InvalidCollection", suite.testPutInvalidCollection)
	t.Run("Put_WithoutPayload", suite.testPutWithoutPayload)
	t.Run("Collections_Isolated", suite.testCollectionsIsolated)
	t.Run("GetAll", suite.testGetAll)
	t.Run("GetAll_Empty", suite.testGetAllEmpty)
	t.Run("FindWhere", suite.testFindWhere)
	t.Run("Keys_URLShaped", suite.testURLKeys)
}

// ============================================================================
// Get / Put Tests
// ============================================================================

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.Get(testContext(), store.DownloadedSongs, generateTestID("missing"))

	AssertErrorIs(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	s := suite.newStore(t)
	key := generateTestID("song")

	mustPut(t, s, store.DownloadedSongs, key, songRecord("album-1", store.Blob{ContentType: "audio/mpeg", Data: []byte("ID3 data")}))

	rec := mustGet(t, s, store.DownloadedSongs, key)
	assert.Equal(t, key, rec.Key)
	assert.Equal(t, "album-1", rec.Field("albumId"))
	assert.JSONEq(t, `{"title":"test"}`, string(rec.Value))
	require.NotNil(t, rec.Payload)
	assert.Equal(t, []byte("ID3 data"), rec.Payload.Bytes())
}

func (suite *StoreTestSuite) testPutUpsert(t *testing.T) {
	s := suite.newStore(t)
	key := generateTestID("upsert")

	mustPut(t, s, store.DownloadedSongs, key, songRecord("album-1", store.Blob{Data: []byte("first version")}))
	mustPut(t, s, store.DownloadedSongs, key, songRecord("album-2", store.Blob{Data: []byte("v2")}))

	recs, err := s.GetAll(testContext(), store.DownloadedSongs)
	require.NoError(t, err)
	require.Len(t, recs, 1, "re-put must replace, not duplicate")

	rec := recs[0]
	assert.Equal(t, "album-2", rec.Field("albumId"))
	assert.Equal(t, []byte("v2"), rec.Payload.Bytes())
}

func (suite *StoreTestSuite) testPutInvalidKey(t *testing.T) {
	s := suite.newStore(t)

	err := s.Put(testContext(), store.DownloadedSongs, "", songRecord("a", nil))

	AssertErrorIs(t, store.ErrInvalidKey, err)
}

func (suite *StoreTestSuite) testPutInvalidCollection(t *testing.T) {
	s := suite.newStore(t)

	err := s.Put(testContext(), store.Collection("playlists"), "k", songRecord("a", nil))

	AssertErrorIs(t, store.ErrInvalidCollection, err)
}

func (suite *StoreTestSuite) testPutWithoutPayload(t *testing.T) {
	s := suite.newStore(t)
	key := generateTestID("meta-only")

	mustPut(t, s, store.CachedAlbums, key, &store.Record{Value: []byte(`{"id":"x"}`)})

	rec := mustGet(t, s, store.CachedAlbums, key)
	assert.Nil(t, rec.Payload)
	assert.JSONEq(t, `{"id":"x"}`, string(rec.Value))
}

func (suite *StoreTestSuite) testCollectionsIsolated(t *testing.T) {
	s := suite.newStore(t)
	key := generateTestID("shared-key")

	mustPut(t, s, store.DownloadedAlbums, key, &store.Record{Value: []byte(`{}`)})

	_, err := s.Get(testContext(), store.CachedAlbums, key)
	AssertErrorIs(t, store.ErrNotFound, err)
}

// ============================================================================
// Listing Tests
// ============================================================================

func (suite *StoreTestSuite) testGetAll(t *testing.T) {
	s := suite.newStore(t)

	for _, key := range []string{"a", "b", "c"} {
		mustPut(t, s, store.DownloadedSongs, key, songRecord("album", store.Blob{Data: []byte(key)}))
	}
	mustPut(t, s, store.DownloadedAlbums, "album", &store.Record{Value: []byte(`{}`)})

	recs, err := s.GetAll(testContext(), store.DownloadedSongs)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	keys := make([]string, 0, len(recs))
	for _, rec := range recs {
		keys = append(keys, rec.Key)
		assert.Equal(t, []byte(rec.Key), rec.Payload.Bytes())
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)
}

func (suite *StoreTestSuite) testGetAllEmpty(t *testing.T) {
	s := suite.newStore(t)

	recs, err := s.GetAll(testContext(), store.CachedImages)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func (suite *StoreTestSuite) testFindWhere(t *testing.T) {
	s := suite.newStore(t)

	mustPut(t, s, store.DownloadedSongs, "s1", songRecord("album-1", nil))
	mustPut(t, s, store.DownloadedSongs, "s2", songRecord("album-1", nil))
	mustPut(t, s, store.DownloadedSongs, "s3", songRecord("album-2", nil))

	recs, err := s.FindWhere(testContext(), store.DownloadedSongs, "albumId", "album-1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.FindWhere(testContext(), store.DownloadedSongs, "albumId", "album-9")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func (suite *StoreTestSuite) testURLKeys(t *testing.T) {
	s := suite.newStore(t)
	key := "https://cdn.example.com/covers/a b/../c.jpg?size=large&v=2"

	mustPut(t, s, store.CachedImages, key, &store.Record{Payload: store.Blob{ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}})

	rec := mustGet(t, s, store.CachedImages, key)
	assert.Equal(t, key, rec.Key)

	recs, err := s.GetAll(testContext(), store.CachedImages)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, key, recs[0].Key)
}
