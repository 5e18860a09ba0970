package treaty

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 keyed digest identifying a schema. Equal
// fingerprints mean equal validation behavior: the digest covers structure,
// constraints, defaults, unknown-key policy, and coercion mode, computed
// over the schema's canonical encoding. Field declaration order does not
// participate (fields are canonically sorted).
type Fingerprint [32]byte

// schemaDomainKey is the BLAKE3 keyed-mode domain separator for schema
// fingerprints. Changing it invalidates every recorded fingerprint. The
// bytes are the ASCII encoding of the domain name, zero-padded to 32 bytes,
// so the key stays readable in hex dumps.
var schemaDomainKey = [32]byte{
	't', 'r', 'e', 'a', 't', 'y', '.', 's', 'c', 'h', 'e', 'm', 'a', '.', 'v', '1',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// NewFingerprint hashes a canonical schema encoding. Schema implementations
// call this once at construction time; everything else compares the result.
func NewFingerprint(canonical []byte) Fingerprint {
	h, err := blake3.NewKeyed(schemaDomainKey[:])
	if err != nil {
		panic("treaty: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = h.Write(canonical)
	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

// String returns the hex encoding, the canonical form used in logs, CLI
// output, and error payloads.
func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// IsZero reports whether f is the zero fingerprint (no schema).
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("parse fingerprint: want %d bytes, got %d", len(f), len(b))
	}
	copy(f[:], b)
	return f, nil
}
