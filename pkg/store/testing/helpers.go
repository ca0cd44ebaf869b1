package testing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/marmos91/tunecache/pkg/store"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks if an error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// mustPut writes a record and fails the test if it errors.
func mustPut(t *testing.T, s store.Backend, c store.Collection, key string, rec *store.Record) {
	t.Helper()
	err := s.Put(testContext(), c, key, rec)
	require.NoError(t, err, "Put should succeed")
}

// mustGet reads a record and fails the test if it errors.
func mustGet(t *testing.T, s store.Backend, c store.Collection, key string) *store.Record {
	t.Helper()
	rec, err := s.Get(testContext(), c, key)
	require.NoError(t, err, "Get should succeed")
	require.NotNil(t, rec)
	return rec
}

// songRecord builds a song-shaped record with an album field.
func songRecord(albumID string, payload store.Payload) *store.Record {
	return &store.Record{
		Fields:  map[string]string{"albumId": albumID},
		Value:   []byte(`{"title":"test"}`),
		Payload: payload,
	}
}

// generateTestID returns a readable test key.
func generateTestID(name string) string {
	return "test-" + name
}

// randomBytes returns deterministic pseudo-random data of the given size.
func randomBytes(size int) []byte {
	data := make([]byte, size)
	r := rand.New(rand.NewSource(int64(size)))
	_, _ = r.Read(data)
	return data
}
