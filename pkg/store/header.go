package store

import (
	"encoding/json"
	"fmt"
)

// Header is the persisted form of a record without its payload bytes.
//
// Backends that store payloads separately from record metadata (badger keeps
// them under a sibling key, fs appends them after the header) share this
// encoding so the on-disk descriptor is identical across engines.
type Header struct {
	Key         string            `json:"key"`
	Fields      map[string]string `json:"fields,omitempty"`
	Value       []byte            `json:"value,omitempty"`
	PayloadKind PayloadKind       `json:"payload_kind"`
	PayloadMeta string            `json:"payload_meta,omitempty"`
	PayloadSize int64             `json:"payload_size"`
}

// SplitRecord separates a record into its header and encoded payload bytes.
func SplitRecord(key string, rec *Record) (*Header, []byte, error) {
	enc, err := EncodePayload(rec.Payload)
	if err != nil {
		return nil, nil, err
	}
	return &Header{
		Key:         key,
		Fields:      rec.Fields,
		Value:       rec.Value,
		PayloadKind: enc.Kind,
		PayloadMeta: enc.Meta,
		PayloadSize: PayloadSize(rec.Payload),
	}, enc.Data, nil
}

// JoinRecord rebuilds a record from a header and its encoded payload bytes.
func JoinRecord(h *Header, payload []byte) (*Record, error) {
	p, err := DecodePayload(h.PayloadKind, h.PayloadMeta, payload)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", h.Key, err)
	}
	return &Record{
		Key:     h.Key,
		Fields:  h.Fields,
		Value:   h.Value,
		Payload: p,
	}, nil
}

// EncodeHeader serializes a header to JSON.
func EncodeHeader(h *Header) ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record header: %w", err)
	}
	return data, nil
}

// DecodeHeader deserializes a header from JSON.
func DecodeHeader(data []byte) (*Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to decode record header: %v: %w", err, ErrDecode)
	}
	return &h, nil
}
