package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mfederowicz/bookrec/core"
)

// Key prefixes for different data types
const (
	ebookPrefix        = "ebkrec"
	ebookPendingPrefix = "ebkpend"
	embeddingPrefix    = "embrec"
	embeddingSyncQueue = "embuns"
	recPrefix          = "recrec"
	recUserHashPrefix  = "recuh"
	recResultPrefix    = "recres"
	tagPrefix          = "tagrec"
	tagSlugPrefix      = "tagslug"
	queryVectorPrefix  = "qvec"
)

// makeEbookKey generates a key for a catalog record by ISBN.
func makeEbookKey(isbn string) []byte {
	return []byte(fmt.Sprintf("%s:%s", ebookPrefix, isbn))
}

// makeEbookPendingKey generates a key in the pending-embedding index.
// ISBNs are fixed-length digit strings, so lexicographic key order is
// ascending ISBN order.
func makeEbookPendingKey(isbn string) []byte {
	return []byte(fmt.Sprintf("%s:%s", ebookPendingPrefix, isbn))
}

// makeEmbeddingKey generates a key for an embedding record.
func makeEmbeddingKey(key string) []byte {
	return []byte(fmt.Sprintf("%s:%s", embeddingPrefix, key))
}

// makeSyncQueueKey generates a composite key in the unsynced index.
// Format: prefix:insertedAt:recordKey
func makeSyncQueueKey(insertedAt time.Time, recordKey string) []byte {
	prefix := embeddingSyncQueue + ":"
	buf := make([]byte, len(prefix)+8+len(recordKey))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort follows creation time
	binary.BigEndian.PutUint64(buf[offset:], uint64(insertedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], recordKey)
	return buf
}

// makeRecommendationKey generates a key for a recommendation by ID.
func makeRecommendationKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", recPrefix, id))
}

// makeRecUserHashKey generates a composite key for the (user, hash) index.
// Format: prefix:userID:hash
func makeRecUserHashKey(userID uint64, hash string) []byte {
	prefix := recUserHashPrefix + ":"
	buf := make([]byte, len(prefix)+8+len(hash))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], userID)
	offset += 8
	copy(buf[offset:], hash)
	return buf
}

// makeRecResultKey generates a composite key for one recommendation result.
// Format: prefix:recommendationID:isbn
func makeRecResultKey(recID core.ID, isbn string) []byte {
	prefix := recResultPrefix + ":"
	buf := make([]byte, len(prefix)+8+len(isbn))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(recID))
	offset += 8
	copy(buf[offset:], isbn)
	return buf
}

// makeRecResultPrefix generates the key prefix covering all results of
// one recommendation.
func makeRecResultPrefix(recID core.ID) []byte {
	prefix := recResultPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(recID))
	return buf
}

// makeTagKey generates a key for a tag by ID.
func makeTagKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", tagPrefix, id))
}

// makeTagSlugKey generates a key in the slug uniqueness index.
func makeTagSlugKey(slug string) []byte {
	return []byte(fmt.Sprintf("%s:%s", tagSlugPrefix, slug))
}

// makeQueryVectorKey generates a key for a cached query embedding.
func makeQueryVectorKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", queryVectorPrefix, hash))
}

// storeNow returns the current time at the microsecond precision the
// record serializers keep, so records returned to callers compare
// equal to records read back from the store.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// marshalID encodes an ID as 8 BigEndian bytes for index values.
func marshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// unmarshalID decodes an ID from 8 BigEndian bytes.
func unmarshalID(data []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(data))
}
