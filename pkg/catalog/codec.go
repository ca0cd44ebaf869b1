package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/tunecache/pkg/store"
)

// encodeRecord wraps a JSON descriptor, indexed fields and payload into a store record.
func encodeRecord(descriptor any, fields map[string]string, payload store.Payload) (*store.Record, error) {
	data, err := json.Marshal(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", descriptor, err)
	}
	return &store.Record{Fields: fields, Value: data, Payload: payload}, nil
}

// decodeRecord unmarshals the record descriptor into out.
func decodeRecord(rec *store.Record, out any) error {
	if len(rec.Value) == 0 {
		return fmt.Errorf("record %s has no descriptor: %w", rec.Key, store.ErrDecode)
	}
	if err := json.Unmarshal(rec.Value, out); err != nil {
		return fmt.Errorf("record %s: %v: %w", rec.Key, err, store.ErrDecode)
	}
	return nil
}

func decodeSong(rec *store.Record) (*DownloadedSong, error) {
	var song DownloadedSong
	if err := decodeRecord(rec, &song); err != nil {
		return nil, err
	}
	if rec.Payload == nil {
		return nil, fmt.Errorf("song %s has no payload: %w", rec.Key, store.ErrDecode)
	}
	song.ID = rec.Key
	song.Payload = rec.Payload
	return &song, nil
}

func decodeAlbum(rec *store.Record) (*DownloadedAlbum, error) {
	var album DownloadedAlbum
	if err := decodeRecord(rec, &album); err != nil {
		return nil, err
	}
	album.AlbumID = rec.Key
	return &album, nil
}

func decodeSongs(recs []*store.Record) ([]*DownloadedSong, error) {
	songs := make([]*DownloadedSong, 0, len(recs))
	for _, rec := range recs {
		song, err := decodeSong(rec)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, nil
}
