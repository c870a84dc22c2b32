// Package digest computes stable content digests for schema-less records.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strings"
)

// Of returns a 128-bit hex digest of a name/value map. The result does not
// depend on map iteration order.
func Of(values map[string]string) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		// Length prefixes keep ("ab","c") and ("a","bc") apart.
		writePart(h, name)
		writePart(h, values[name])
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// Key returns a 128-bit hex digest of the joined parts.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "#")))
	return hex.EncodeToString(h[:16])
}

func writePart(w io.Writer, s string) {
	var n [8]byte
	l := uint64(len(s))
	for i := range n {
		n[i] = byte(l >> (8 * i))
	}
	w.Write(n[:])
	w.Write([]byte(s))
}
