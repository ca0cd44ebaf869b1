package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePayload_BlobEnvelope(t *testing.T) {
	enc, err := EncodePayload(Blob{ContentType: "audio/mpeg", Data: []byte("abc")})
	require.NoError(t, err)

	assert.Equal(t, KindBlob, enc.Kind)
	assert.Empty(t, enc.Meta, "blob type travels inside the envelope")
	assert.Equal(t, int64(3), enc.Size())

	p, err := DecodePayload(enc.Kind, enc.Meta, enc.Data)
	require.NoError(t, err)
	assert.Equal(t, Blob{ContentType: "audio/mpeg", Data: []byte("abc")}, p)
}

func TestEncodePayload_BufferRaw(t *testing.T) {
	enc, err := EncodePayload(&Buffer{MimeType: "audio/ogg", Data: []byte("abc")})
	require.NoError(t, err)

	assert.Equal(t, KindBuffer, enc.Kind)
	assert.Equal(t, "audio/ogg", enc.Meta)
	assert.Equal(t, []byte("abc"), enc.Data)
}

func TestDecodePayload_Errors(t *testing.T) {
	_, err := DecodePayload(KindBlob, "", nil)
	assert.ErrorIs(t, err, ErrDecode)

	// Declared type length larger than the remaining bytes.
	_, err = DecodePayload(KindBlob, "", []byte{0x10, 'a'})
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodePayload(PayloadKind(9), "", []byte("x"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodePayload_None(t *testing.T) {
	p, err := DecodePayload(KindNone, "", nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRecordClone(t *testing.T) {
	orig := &Record{
		Key:     "k",
		Fields:  map[string]string{"albumId": "a"},
		Value:   []byte("v"),
		Payload: Buffer{MimeType: "audio/mpeg", Data: []byte("d")},
	}

	clone := orig.Clone()
	clone.Fields["albumId"] = "b"
	clone.Payload.Bytes()[0] = 'x'

	assert.Equal(t, "a", orig.Field("albumId"))
	assert.Equal(t, []byte("d"), orig.Payload.Bytes())
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey(DownloadedSongs, "abc"))
	assert.ErrorIs(t, ValidateKey(DownloadedSongs, ""), ErrInvalidKey)
	assert.ErrorIs(t, ValidateKey(Collection("nope"), "abc"), ErrInvalidCollection)
}

type otherPayload struct{}

func (otherPayload) Kind() PayloadKind { return KindBuffer }
func (otherPayload) Bytes() []byte { return nil }
func (otherPayload) MediaType() string { return "" }

func TestEncodePayload_Rejected(t *testing.T) {
	var nilBlob *Blob
	var nilBuffer *Buffer

	for _, p := range []Payload{otherPayload{}, nilBlob, nilBuffer} {
		_, err := EncodePayload(p)
		assert.ErrorIs(t, err, ErrStorageWrite, "%T", p)

		_, _, err = SplitRecord("k", &Record{Payload: p})
		assert.ErrorIs(t, err, ErrStorageWrite, "%T", p)
	}

	assert.Equal(t, int64(0), PayloadSize(nilBlob))
}

func TestEncodePayload_NoPayload(t *testing.T) {
	enc, err := EncodePayload(nil)
	require.NoError(t, err)
	assert.Equal(t, KindNone, enc.Kind)
}
