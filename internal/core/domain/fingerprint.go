package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// FingerprintText derives the cache key for a textual query.
// The key covers the normalised query, the model version and every
// store-level filter parameter, so an index or option change can never
// serve a stale entry for a different query shape.
func FingerprintText(query, modelVersion string, opts SearchOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "text|%s|%d|", modelVersion, opts.TopK)
	writeFilters(h, opts)
	h.Write([]byte(NormalizeText(query)))
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintVector derives the cache key for a vector query.
func FingerprintVector(vector []float32, modelVersion string, opts SearchOptions) string {
	h := sha256.New()
	fmt.Fprintf(h, "vector|%s|%d|", modelVersion, opts.TopK)
	writeFilters(h, opts)
	var buf [4]byte
	for _, v := range vector {
		binary.BigEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFilters(h interface{ Write([]byte) (int, error) }, opts SearchOptions) {
	ids := make([]string, len(opts.DocumentIDs))
	copy(ids, opts.DocumentIDs)
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(h, "id=%s|", id)
	}
}
