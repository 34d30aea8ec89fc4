// Package fingerprint derives a short stable identifier from the subset of
// configuration that affects gateway runtime behavior. The gateway persists
// the fingerprint it was started with; comparing it against the fingerprint
// of the current configuration detects drift without an explicit restart
// signal.
package fingerprint

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Entry is a single configuration key/value pair. Absent fields are carried
// as empty strings so that adding a field later changes the fingerprint.
type Entry struct {
	Key   string
	Value string
}

// Snapshot is an ordered projection of the tracked configuration. Order is
// fixed by the producer; two snapshots with the same entries in the same
// order always hash identically.
type Snapshot []Entry

// Fingerprint is a fixed-width hex string. This is an equality check, not a
// security boundary; distribution quality matters, collision resistance does
// not.
type Fingerprint string

// Width is the fixed character width of a rendered fingerprint.
const Width = 8

// Compute hashes a snapshot to its fingerprint. Deterministic, pure, total.
func Compute(s Snapshot) Fingerprint {
	var b strings.Builder
	for _, e := range s {
		b.WriteString(e.Key)
		b.WriteByte('=')
		b.WriteString(e.Value)
		b.WriteByte('\n')
	}
	sum := xxhash.Sum64String(b.String())
	// Fold to 32 bits; 8 hex chars is plenty for an equality check.
	folded := uint32(sum>>32) ^ uint32(sum)
	return Fingerprint(fmt.Sprintf("%0*x", Width, folded))
}
