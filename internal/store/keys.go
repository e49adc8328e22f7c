package store

import (
	"strconv"
	"sync"
)

// Chapter keys are "chapter:<book_id>:<number>" with the number zero-padded
// to numberWidth digits, so byte order within a partition is number order.
const (
	chapterPrefix = "chapter:"
	numberWidth   = 10
)

// keyPool provides reusable byte slices for building keys on the hot path.
var keyPool = sync.Pool{
	New: func() any {
		// prefix (8) + uuid (36) + ':' + number (10), with headroom for index keys.
		return make([]byte, 0, 128)
	},
}

// buildIndexKey constructs "<prefix>idx:<name>:<value>" in a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

// releaseKey returns a key buffer to the pool. The slice must not be used afterwards.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}

// partitionKey is the scan prefix (relative to chapterPrefix) of one book's chapters.
func partitionKey(bookID string) string {
	return bookID + ":"
}

// clusterKey is the primary key (relative to chapterPrefix) of one chapter.
func clusterKey(bookID string, number int) string {
	n := strconv.Itoa(number)
	buf := make([]byte, 0, len(bookID)+1+numberWidth)
	buf = append(buf, bookID...)
	buf = append(buf, ':')
	for i := len(n); i < numberWidth; i++ {
		buf = append(buf, '0')
	}
	buf = append(buf, n...)
	return string(buf)
}
