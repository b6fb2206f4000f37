package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// digestVersion is the content digest function's version tag, stored
// alongside a snapshot's id so a future hash change is detectable.
const digestVersion = "v1"

// File is one entry in the set of files a snapshot covers.
type File struct {
	Path    string
	Content []byte
}

// contentDigest hashes a single file's content, generalized from the
// teacher's graph canonicalization hasher to raw file bytes.
func contentDigest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// StableHash computes a snapshot's content-addressed id: sort file
// entries by path byte-lexicographically, hash each content, join
// entries as "path:digest" with "|", hash the joined string.
func StableHash(files []File) string {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	entries := make([]string, 0, len(sorted))
	for _, f := range sorted {
		entries = append(entries, f.Path+":"+contentDigest(f.Content))
	}
	joined := strings.Join(entries, "|")

	sum := sha256.Sum256([]byte(joined))
	return "sha256-" + digestVersion + "-" + hex.EncodeToString(sum[:])
}
