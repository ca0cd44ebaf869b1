package testing

import (
	"testing"

	"github.com/marmos91/tunecache/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPayloadTests checks that payload bytes and variants survive a round trip.
func (suite *StoreTestSuite) RunPayloadTests(t *testing.T) {
	t.Run("Blob_EmptyPayload", suite.testBlobEmpty)
	t.Run("Blob_OneByte", suite.testBlobOneByte)
	t.Run("Blob_LargePayload", suite.testBlobLarge)
	t.Run("Buffer_EmptyPayload", suite.testBufferEmpty)
	t.Run("Buffer_OneByte", suite.testBufferOneByte)
	t.Run("Buffer_LargePayload", suite.testBufferLarge)
	t.Run("Variant_Preserved", suite.testVariantPreserved)
	t.Run("Payload_Removed", suite.testPayloadRemoved)
	t.Run("Payload_UnsupportedRejected", suite.testPayloadUnsupported)
}

// foreignPayload implements store.Payload without being a Blob or Buffer.
type foreignPayload struct{}

func (foreignPayload) Kind() store.PayloadKind { return store.KindBlob }
func (foreignPayload) Bytes() []byte { return []byte("x") }
func (foreignPayload) MediaType() string { return "audio/mpeg" }

func (suite *StoreTestSuite) roundTrip(t *testing.T, p store.Payload) store.Payload {
	t.Helper()
	s := suite.newStore(t)
	key := generateTestID("payload")

	mustPut(t, s, store.DownloadedSongs, key, songRecord("album", p))

	rec := mustGet(t, s, store.DownloadedSongs, key)
	require.NotNil(t, rec.Payload, "payload must survive the round trip")
	return rec.Payload
}

func (suite *StoreTestSuite) testBlobEmpty(t *testing.T) {
	got := suite.roundTrip(t, store.Blob{ContentType: "audio/mpeg", Data: []byte{}})

	assert.Equal(t, store.KindBlob, got.Kind())
	assert.Equal(t, 0, len(got.Bytes()))
	assert.Equal(t, "audio/mpeg", got.MediaType())
}

func (suite *StoreTestSuite) testBlobOneByte(t *testing.T) {
	got := suite.roundTrip(t, store.Blob{ContentType: "audio/mpeg", Data: []byte{0x42}})

	assert.Equal(t, []byte{0x42}, got.Bytes())
}

func (suite *StoreTestSuite) testBlobLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large payload test in short mode")
	}

	data := randomBytes(10*1024*1024 + 1)
	got := suite.roundTrip(t, store.Blob{ContentType: "audio/flac", Data: data})

	require.Equal(t, len(data), len(got.Bytes()))
	assert.True(t, assert.ObjectsAreEqual(data, got.Bytes()), "large blob bytes differ")
}

func (suite *StoreTestSuite) testBufferEmpty(t *testing.T) {
	got := suite.roundTrip(t, store.Buffer{MimeType: "audio/mpeg", Data: []byte{}})

	assert.Equal(t, store.KindBuffer, got.Kind())
	assert.Equal(t, 0, len(got.Bytes()))
	assert.Equal(t, "audio/mpeg", got.MediaType())
}

func (suite *StoreTestSuite) testBufferOneByte(t *testing.T) {
	got := suite.roundTrip(t, store.Buffer{MimeType: "audio/ogg", Data: []byte{0x00}})

	assert.Equal(t, []byte{0x00}, got.Bytes())
	assert.Equal(t, "audio/ogg", got.MediaType())
}

func (suite *StoreTestSuite) testBufferLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large payload test in short mode")
	}

	data := randomBytes(12 * 1024 * 1024)
	got := suite.roundTrip(t, store.Buffer{MimeType: "audio/mpeg", Data: data})

	require.Equal(t, len(data), len(got.Bytes()))
	assert.True(t, assert.ObjectsAreEqual(data, got.Bytes()), "large buffer bytes differ")
}

func (suite *StoreTestSuite) testVariantPreserved(t *testing.T) {
	s := suite.newStore(t)

	mustPut(t, s, store.DownloadedSongs, "blob", songRecord("a", store.Blob{ContentType: "audio/mpeg", Data: []byte("x")}))
	mustPut(t, s, store.DownloadedSongs, "buffer", songRecord("a", store.Buffer{MimeType: "audio/mpeg", Data: []byte("x")}))

	_, isBlob := mustGet(t, s, store.DownloadedSongs, "blob").Payload.(store.Blob)
	_, isBuffer := mustGet(t, s, store.DownloadedSongs, "buffer").Payload.(store.Buffer)

	assert.True(t, isBlob, "blob payload must decode as store.Blob")
	assert.True(t, isBuffer, "buffer payload must decode as store.Buffer")
}

func (suite *StoreTestSuite) testPayloadRemoved(t *testing.T) {
	s := suite.newStore(t)
	key := generateTestID("drop-payload")

	mustPut(t, s, store.AlbumCovers, key, &store.Record{Payload: store.Blob{ContentType: "image/png", Data: []byte("png")}})
	mustPut(t, s, store.AlbumCovers, key, &store.Record{Value: []byte(`{}`)})

	rec := mustGet(t, s, store.AlbumCovers, key)
	assert.Nil(t, rec.Payload)
}

func (suite *StoreTestSuite) testPayloadUnsupported(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	var nilBlob *store.Blob
	var nilBuffer *store.Buffer
	for name, p := range map[string]store.Payload{
		"foreign":   foreignPayload{},
		"nilBlob":   nilBlob,
		"nilBuffer": nilBuffer,
	} {
		err := s.Put(ctx, store.DownloadedSongs, name, &store.Record{Payload: p})
		assert.ErrorIs(t, err, store.ErrStorageWrite, name)

		_, err = s.Get(ctx, store.DownloadedSongs, name)
		assert.ErrorIs(t, err, store.ErrNotFound, "%s: a rejected put writes nothing", name)
	}
}
