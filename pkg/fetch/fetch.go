// Package fetch retrieves remote assets for the downloader.
//
// A Fetcher returns the whole asset in memory: tunecache stores songs and
// images as single payloads, so streaming to disk would only move the copy.
// Every failure is reported as ErrNetworkFetch (possibly a *StatusError),
// which the downloader treats as a soft failure.
package fetch

import (
	"context"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Asset is a fetched remote resource.
type Asset struct {
	URL         string
	ContentType string
	Data        []byte
}

// Size returns the asset length in bytes.
func (a *Asset) Size() int64 {
	return int64(len(a.Data))
}

// Fetcher retrieves a remote asset by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Asset, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Asset, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Asset, error) {
	return f(ctx, url)
}

// genericTypes are declared types that say nothing about the content.
var genericTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
	"application/binary":       true,
}

// ResolveContentType picks the media type of data. A specific declared type
// wins; otherwise the bytes are sniffed. fallback is used when sniffing only
// yields a generic type.
func ResolveContentType(declared string, data []byte, fallback string) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mediaType
	} else {
		declared = strings.ToLower(strings.TrimSpace(declared))
	}
	if !genericTypes[declared] {
		return declared
	}

	if len(data) > 0 {
		detected := mimetype.Detect(data)
		if detected != nil && !genericTypes[detected.String()] && !strings.HasPrefix(detected.String(), "text/plain") {
			return detected.String()
		}
	}

	if fallback != "" {
		return fallback
	}
	return declared
}
