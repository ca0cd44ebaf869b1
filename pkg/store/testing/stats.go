package testing

import (
	"context"
	"testing"

	"github.com/marmos91/tunecache/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStatsTests executes statistics tests.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("Stats_Empty", suite.testStatsEmpty)
	t.Run("Stats_Counts", suite.testStatsCounts)
}

func (suite *StoreTestSuite) testStatsEmpty(t *testing.T) {
	s := suite.newStore(t)

	stats, err := s.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRecords())
	assert.Equal(t, int64(0), stats.TotalPayloadBytes())
}

func (suite *StoreTestSuite) testStatsCounts(t *testing.T) {
	s := suite.newStore(t)

	mustPut(t, s, store.DownloadedSongs, "s1", songRecord("a", store.Blob{ContentType: "audio/mpeg", Data: make([]byte, 100)}))
	mustPut(t, s, store.DownloadedSongs, "s2", songRecord("a", store.Buffer{MimeType: "audio/mpeg", Data: make([]byte, 50)}))
	mustPut(t, s, store.DownloadedAlbums, "a", &store.Record{Value: []byte(`{}`)})

	stats, err := s.Stats(testContext())
	require.NoError(t, err)

	songs := stats.Collections[store.DownloadedSongs]
	assert.Equal(t, 2, songs.Records)
	assert.Equal(t, int64(150), songs.PayloadBytes, "payload bytes exclude the blob envelope")
	assert.Equal(t, 1, stats.Collections[store.DownloadedAlbums].Records)
	assert.Equal(t, 3, stats.TotalRecords())
}

// RunLifecycleTests checks context and close behavior.
func (suite *StoreTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("Healthcheck", suite.testHealthcheck)
	t.Run("Closed_Unavailable", suite.testClosedUnavailable)
	t.Run("Cancelled_Context", suite.testCancelledContext)
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	s := suite.newStore(t)

	assert.NoError(t, s.Healthcheck(testContext()))
}

func (suite *StoreTestSuite) testClosedUnavailable(t *testing.T) {
	s := suite.newStore(t)
	require.NoError(t, s.Close())

	_, err := s.Get(testContext(), store.DownloadedSongs, "k")
	AssertErrorIs(t, store.ErrUnavailable, err)

	err = s.Put(testContext(), store.DownloadedSongs, "k", songRecord("a", nil))
	AssertErrorIs(t, store.ErrUnavailable, err)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	s := suite.newStore(t)
	ctx, cancel := context.WithCancel(testContext())
	cancel()

	err := s.Put(ctx, store.DownloadedSongs, "k", songRecord("a", store.Blob{Data: []byte("x")}))
	AssertErrorIs(t, context.Canceled, err)

	_, err = s.Get(testContext(), store.DownloadedSongs, "k")
	AssertErrorIs(t, store.ErrNotFound, err)
}
