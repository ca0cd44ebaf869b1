package store

import (
	"encoding/binary"
	"fmt"
)

// PayloadKind tags the stored representation of a payload.
type PayloadKind uint8

const (
	// KindNone marks a record without payload.
	KindNone PayloadKind = iota

	// KindBlob is a self-describing payload: its content type travels with the bytes.
	KindBlob

	// KindBuffer is a raw byte buffer whose MIME type is kept beside it in the record.
	KindBuffer
)

func (k PayloadKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBlob:
		return "blob"
	case KindBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Payload is the binary content attached to a record.
//
// The set of implementations is closed: Blob and Buffer. Consumers resolve
// it with a type switch rather than probing fields.
type Payload interface {
	Kind() PayloadKind

	// Bytes returns the raw content without any envelope.
	Bytes() []byte

	// MediaType returns the declared content type, possibly empty.
	MediaType() string
}

// Blob is an opaque self-describing binary payload.
type Blob struct {
	ContentType string
	Data        []byte
}

func (Blob) Kind() PayloadKind { return KindBlob }
func (b Blob) Bytes() []byte { return b.Data }
func (b Blob) MediaType() string { return b.ContentType }

// Buffer is a raw byte buffer with an explicit MIME type.
type Buffer struct {
	MimeType string
	Data     []byte
}

func (Buffer) Kind() PayloadKind { return KindBuffer }
func (b Buffer) Bytes() []byte { return b.Data }
func (b Buffer) MediaType() string { return b.MimeType }

// PayloadSize returns the content length of p, 0 for nil.
func PayloadSize(p Payload) int64 {
	if p == nil || isNilVariant(p) {
		return 0
	}
	return int64(len(p.Bytes()))
}

// ValidatePayload rejects payloads a backend cannot persist: implementations
// other than Blob and Buffer, and nil *Blob or *Buffer pointers. A nil
// interface is valid and means "no payload".
func ValidatePayload(p Payload) error {
	switch p.(type) {
	case nil, Blob, Buffer:
		return nil
	case *Blob, *Buffer:
		if isNilVariant(p) {
			return fmt.Errorf("nil %T payload: %w", p, ErrStorageWrite)
		}
		return nil
	default:
		return fmt.Errorf("unsupported payload type %T: %w", p, ErrStorageWrite)
	}
}

func isNilVariant(p Payload) bool {
	switch v := p.(type) {
	case *Blob:
		return v == nil
	case *Buffer:
		return v == nil
	}
	return false
}

// EncodedPayload is the storage form of a payload.
//
// Blob payloads are stored as an envelope (uvarint type length, type, data)
// so the type is recoverable from the stored bytes alone. Buffer payloads are
// stored raw and their MIME type lives in Meta, next to the record header.
type EncodedPayload struct {
	Kind PayloadKind
	Meta string
	Data []byte
}

// EncodePayload converts p into its storage form. Payloads rejected by
// ValidatePayload return an error wrapping ErrStorageWrite.
func EncodePayload(p Payload) (EncodedPayload, error) {
	if err := ValidatePayload(p); err != nil {
		return EncodedPayload{}, err
	}

	switch v := p.(type) {
	case Blob:
		return EncodedPayload{Kind: KindBlob, Data: encodeEnvelope(v.ContentType, v.Data)}, nil
	case *Blob:
		return EncodedPayload{Kind: KindBlob, Data: encodeEnvelope(v.ContentType, v.Data)}, nil
	case Buffer:
		return EncodedPayload{Kind: KindBuffer, Meta: v.MimeType, Data: v.Data}, nil
	case *Buffer:
		return EncodedPayload{Kind: KindBuffer, Meta: v.MimeType, Data: v.Data}, nil
	default:
		return EncodedPayload{Kind: KindNone}, nil
	}
}

// DecodePayload reconstructs a payload from its storage form.
//
// The returned payload may alias data.
func DecodePayload(kind PayloadKind, meta string, data []byte) (Payload, error) {
	switch kind {
	case KindNone:
		return nil, nil
	case KindBlob:
		contentType, body, err := decodeEnvelope(data)
		if err != nil {
			return nil, err
		}
		return Blob{ContentType: contentType, Data: body}, nil
	case KindBuffer:
		if data == nil {
			data = []byte{}
		}
		return Buffer{MimeType: meta, Data: data}, nil
	default:
		return nil, fmt.Errorf("payload kind %s: %w", kind, ErrDecode)
	}
}

// Size returns the content length represented by the encoded payload.
func (e EncodedPayload) Size() int64 {
	if e.Kind != KindBlob {
		return int64(len(e.Data))
	}
	_, body, err := decodeEnvelope(e.Data)
	if err != nil {
		return 0
	}
	return int64(len(body))
}

func encodeEnvelope(contentType string, data []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(contentType)+len(data))
	out = binary.AppendUvarint(out, uint64(len(contentType)))
	out = append(out, contentType...)
	out = append(out, data...)
	return out
}

func decodeEnvelope(raw []byte) (string, []byte, error) {
	n, read := binary.Uvarint(raw)
	if read <= 0 {
		return "", nil, fmt.Errorf("blob envelope header: %w", ErrDecode)
	}
	raw = raw[read:]
	if n > uint64(len(raw)) {
		return "", nil, fmt.Errorf("blob envelope truncated (type length %d, have %d): %w", n, len(raw), ErrDecode)
	}
	return string(raw[:n]), raw[n:], nil
}

func clonePayload(p Payload) Payload {
	data := append([]byte{}, p.Bytes()...)
	switch v := p.(type) {
	case Blob:
		return Blob{ContentType: v.ContentType, Data: data}
	case *Blob:
		return Blob{ContentType: v.ContentType, Data: data}
	case Buffer:
		return Buffer{MimeType: v.MimeType, Data: data}
	case *Buffer:
		return Buffer{MimeType: v.MimeType, Data: data}
	default:
		return p
	}
}
