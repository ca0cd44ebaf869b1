package badger

import (
	"github.com/marmos91/tunecache/pkg/store"
)

// Database Key Namespace Design
// ==============================
//
// Every collection gets two namespaces: one for record headers and one for
// payload bytes. A record and its payload are always written and deleted in
// the same transaction.
//
// Data Type        Prefix   Key Format                     Value Type
// ====================================================================
// Record Header    "r:"     r:<collection>:<key>           store.Header (JSON)
// Payload Bytes    "p:"     p:<collection>:<key>           raw or enveloped bytes
//
// Listing a collection is a prefix scan over "r:<collection>:". Payload
// entries are only read for records that are returned to the caller.

const (
	prefixRecord  = "r:"
	prefixPayload = "p:"
)

func keyRecord(collection store.Collection, key string) []byte {
	return []byte(prefixRecord + string(collection) + ":" + key)
}

func keyPayload(collection store.Collection, key string) []byte {
	return []byte(prefixPayload + string(collection) + ":" + key)
}

func recordPrefix(collection store.Collection) []byte {
	return []byte(prefixRecord + string(collection) + ":")
}
