package catalog

import (
	"fmt"

	"github.com/rcowham/corevcs/hashpolicy"
)

// ResolveHash implements §6.3's artifact name resolution: prefix ≥ 4 hex
// digits that uniquely identifies an artifact is accepted in place of the
// full hash. Returns the corresponding rid and full hash, or a plain error
// (not a *corevcs.Error, and with no corevcs kind) when the prefix is
// malformed, matches no artifact, or matches more than one ("ambiguous");
// catalog does not import the corevcs error package.
func (r *RepoDB) ResolveHash(prefix string) (rid int64, hash string, err error) {
	if !hashpolicy.IsHexPrefix(prefix) {
		return 0, "", fmt.Errorf("not a valid hash prefix: %q", prefix)
	}
	rows, err := r.Query(`SELECT rid, hash FROM blob WHERE hash LIKE ? ORDER BY hash`, prefix+"%")
	if err != nil {
		return 0, "", fmt.Errorf("catalog: resolve hash %s: %w", prefix, err)
	}
	defer rows.Close()

	type match struct {
		rid  int64
		hash string
	}
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.rid, &m.hash); err != nil {
			return 0, "", fmt.Errorf("catalog: resolve hash %s: %w", prefix, err)
		}
		if hashpolicy.HasPrefix(m.hash, prefix) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return 0, "", fmt.Errorf("no artifact matches prefix %q", prefix)
	case 1:
		return matches[0].rid, matches[0].hash, nil
	default:
		return 0, "", fmt.Errorf("prefix %q matches %d artifacts, ambiguous", prefix, len(matches))
	}
}
