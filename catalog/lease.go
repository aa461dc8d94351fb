package catalog

import (
	"fmt"
)

// Lease is the decoded form of the config("backoffice") row (§3.4,
// §4.5.1): a current-worker lease and an on-deck lease, each a
// (pid, expiry-epoch-second) pair. Grounded directly on
// original_source/src/backoffice.c's `struct Lease`.
type Lease struct {
	IDCurrent int64
	TMCurrent int64
	IDNext    int64
	TMNext    int64
}

const leaseConfigName = "backoffice"

// ReadLease reads and parses the backoffice lease row. A missing row reads
// as the zero Lease (no current worker, no on-deck worker), matching
// backofficeReadLease's behavior on a fresh repository.
func (r *RepoDB) ReadLease() (Lease, error) {
	value, ok, err := r.GetConfig(leaseConfigName)
	if err != nil {
		return Lease{}, err
	}
	if !ok || value == "" {
		return Lease{}, nil
	}
	var l Lease
	n, err := fmt.Sscanf(value, "%d %d %d %d", &l.IDCurrent, &l.TMCurrent, &l.IDNext, &l.TMNext)
	if err != nil || n != 4 {
		return Lease{}, fmt.Errorf("catalog: malformed backoffice lease row %q", value)
	}
	return l, nil
}

// WriteLease writes the four-integer lease row atomically (a single REPLACE
// of the whole row, never a column-wise UPDATE), matching
// backofficeWriteLease.
func (r *RepoDB) WriteLease(l Lease) error {
	value := fmt.Sprintf("%d %d %d %d", l.IDCurrent, l.TMCurrent, l.IDNext, l.TMNext)
	return r.SetConfig(leaseConfigName, value)
}
