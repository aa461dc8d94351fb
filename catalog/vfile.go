package catalog

import (
	"database/sql"
	"strconv"
)

// VFile is one row of the checkout database's vfile table (§3.3): a
// tracked path's last-known committed identity plus in-progress edits.
type VFile struct {
	ID       int64
	Pathname string
	Origname string // non-empty when this path is the destination of a pending rename
	Rid      int64  // content rid as last recorded at commit time
	Mrid     int64  // content rid of the in-progress edit, 0 if unedited
	Mhash    string
	Msize    int64 // size recorded at the last commit or edit, for the mtime+size status heuristic
	Mtime    int64 // filesystem mtime (unix seconds) recorded at the same point
	Chnged   bool
	Deleted  bool
	Isexe    bool
	Islink   bool
}

// ListVFiles returns every tracked path, ordered by pathname for
// deterministic status output (§4.4.1).
func (c *CheckoutDB) ListVFiles() ([]VFile, error) {
	rows, err := c.Query(`SELECT id, pathname, origname, rid, mrid, mhash, msize, mtime, chnged, deleted, isexe, islink
		FROM vfile ORDER BY pathname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VFile
	for rows.Next() {
		var v VFile
		var origname, mhash sql.NullString
		if err := rows.Scan(&v.ID, &v.Pathname, &origname, &v.Rid, &v.Mrid, &mhash, &v.Msize, &v.Mtime, &v.Chnged, &v.Deleted, &v.Isexe, &v.Islink); err != nil {
			return nil, err
		}
		v.Origname = origname.String
		v.Mhash = mhash.String
		out = append(out, v)
	}
	return out, nil
}

// GetVFile looks up one tracked path; ok is false if path is untracked.
func (c *CheckoutDB) GetVFile(pathname string) (v VFile, ok bool, err error) {
	var origname, mhash sql.NullString
	err = c.QueryRow(`SELECT id, pathname, origname, rid, mrid, mhash, msize, mtime, chnged, deleted, isexe, islink
		FROM vfile WHERE pathname = ?`, pathname).
		Scan(&v.ID, &v.Pathname, &origname, &v.Rid, &v.Mrid, &mhash, &v.Msize, &v.Mtime, &v.Chnged, &v.Deleted, &v.Isexe, &v.Islink)
	if err == sql.ErrNoRows {
		return VFile{}, false, nil
	}
	if err != nil {
		return VFile{}, false, err
	}
	v.Origname = origname.String
	v.Mhash = mhash.String
	return v, true, nil
}

// UpsertVFile inserts or replaces the tracked row for v.Pathname.
func (c *CheckoutDB) UpsertVFile(v VFile) error {
	_, err := c.Exec(`INSERT INTO vfile(pathname, origname, rid, mrid, mhash, msize, mtime, chnged, deleted, isexe, islink)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pathname) DO UPDATE SET
			origname=excluded.origname, rid=excluded.rid, mrid=excluded.mrid, mhash=excluded.mhash,
			msize=excluded.msize, mtime=excluded.mtime,
			chnged=excluded.chnged, deleted=excluded.deleted, isexe=excluded.isexe, islink=excluded.islink`,
		v.Pathname, nullIfEmpty(v.Origname), v.Rid, v.Mrid, nullIfEmpty(v.Mhash), v.Msize, v.Mtime, v.Chnged, v.Deleted, v.Isexe, v.Islink)
	return err
}

// DeleteVFile removes pathname's tracked row entirely (used after a commit
// reconciles a path that no longer exists in the new baseline).
func (c *CheckoutDB) DeleteVFile(pathname string) error {
	_, err := c.Exec(`DELETE FROM vfile WHERE pathname = ?`, pathname)
	return err
}

// ClearVMerge empties the vmerge table, run after a successful commit
// (§4.4.6: "vmerge is emptied").
func (c *CheckoutDB) ClearVMerge() error {
	_, err := c.Exec(`DELETE FROM vmerge`)
	return err
}

// CheckoutScalar reads/writes the vvar "checkout" row: the rid of the
// commit this working tree is based on.
func (c *CheckoutDB) CheckoutScalar() (int64, error) {
	var v string
	err := c.QueryRow(`SELECT value FROM vvar WHERE name = 'checkout'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// SetCheckoutScalar advances the checkout's basis commit to rid.
func (c *CheckoutDB) SetCheckoutScalar(rid int64) error {
	_, err := c.Exec(`INSERT INTO vvar(name, value) VALUES('checkout', ?)
		ON CONFLICT(name) DO UPDATE SET value=excluded.value`, strconv.FormatInt(rid, 10))
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
