// Package hashpolicy computes and validates the canonical content hash used
// to name every artifact (§3.1 "hash policy", §6.3). There is no teacher
// analog for hash selection itself — the teacher never hashes the content it
// moves, it only carries P4/git identifiers through — so this package is
// built from the spec's two named algorithms directly, kept as small,
// single-purpose functions the way the teacher keeps e.g.
// GitBlob.setCompressionDetails small and single-purpose.
package hashpolicy

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Policy names the cryptographic hash family used to identify artifacts.
// A repository is opened with exactly one, named by the config package's
// hash_policy setting; this package does not store the choice anywhere.
type Policy int

const (
	// SHA1 produces a 40 hex-digit name, the legacy default.
	SHA1 Policy = iota
	// SHA3_256 produces a 64 hex-digit name.
	SHA3_256
)

// String renders the policy name in a form that Parse accepts.
func (p Policy) String() string {
	switch p {
	case SHA1:
		return "sha1"
	case SHA3_256:
		return "sha3-256"
	default:
		return "unknown"
	}
}

// Len returns the canonical hex length for the policy.
func (p Policy) Len() int {
	switch p {
	case SHA1:
		return 40
	case SHA3_256:
		return 64
	default:
		return 0
	}
}

// Parse maps a config string back to a Policy.
func Parse(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sha1":
		return SHA1, nil
	case "sha3-256", "sha3_256", "sha3":
		return SHA3_256, nil
	default:
		return 0, fmt.Errorf("unknown hash policy %q", s)
	}
}

// Compute hashes content under policy, returning the canonical lowercase hex
// string stored in blob.hash (§3.1).
func Compute(p Policy, content []byte) string {
	switch p {
	case SHA3_256:
		sum := sha3.Sum256(content)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha1.Sum(content)
		return hex.EncodeToString(sum[:])
	}
}

// IsValidHash reports whether s is a syntactically valid full hash under any
// known policy: lowercase hex, and one of the two known lengths.
func IsValidHash(s string) bool {
	return (len(s) == SHA1.Len() || len(s) == SHA3_256.Len()) && IsHexPrefix(s)
}

// IsHexPrefix reports whether s is a syntactically valid hash *prefix*
// (§6.3): lowercase hex, length >= 4, no longer than the longest known
// policy.
func IsHexPrefix(s string) bool {
	if len(s) < 4 || len(s) > SHA3_256.Len() {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// HasPrefix reports whether full begins with prefix, both already validated
// hash strings. Used by catalog name resolution (§6.3) before it decides
// between NotFound, a unique match, or Ambiguous.
func HasPrefix(full, prefix string) bool {
	return strings.HasPrefix(full, prefix)
}
