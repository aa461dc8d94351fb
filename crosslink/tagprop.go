package crosslink

import (
	"fmt"

	"github.com/rcowham/corevcs/catalog"
	"github.com/rcowham/corevcs/manifest"
)

const branchTagName = "branch"

// tagxrefType is the tagtype column §relaxTag filters on: 1 marks a row
// that is (or has become, via propagation) a live propagating tag at that
// rid; anything else is a one-shot add or an explicit cancel/override,
// neither of which should itself seed further relaxation (though both still
// block it via hasTagRow's plain existence check).
func tagxrefType(op manifest.TagOp) int {
	if op == manifest.AddPropagating {
		return 1
	}
	return 0
}

type tagxrefRow struct {
	tagid  int64
	srcid  int64
	value  string
	mtime  float64
	rid    int64
}

// propagateAllTags runs the §4.3 fixed-point relaxation over plink: a
// propagating tag on commit C (tagtype=1) reaches every descendant not
// blocked by an explicit cancel/override on that tag or a branch boundary,
// per Design Note §9's "fixed-point propagation uses repeated relational
// updates rather than graph traversal with mutable visited marks" — each
// round below is exactly that, a SELECT/INSERT pass over plink joined with
// tagxref, repeated until a round inserts nothing.
//
// Branch membership is itself modeled as a propagating "branch" tag, so it
// is propagated first to a fixed point, then used as the boundary test for
// every other tag's propagation.
func propagateAllTags(repo *catalog.RepoDB) error {
	branchTagID, err := tagIDReadOnly(repo, branchTagName)
	if err != nil {
		return fmt.Errorf("crosslink: propagate: %w", err)
	}

	if branchTagID != 0 {
		if err := relaxTag(repo, branchTagID, 0); err != nil {
			return err
		}
	}
	tagIDs, err := allTagIDs(repo)
	if err != nil {
		return fmt.Errorf("crosslink: propagate: %w", err)
	}
	for _, tagid := range tagIDs {
		if tagid == branchTagID {
			continue
		}
		if err := relaxTag(repo, tagid, branchTagID); err != nil {
			return err
		}
	}
	return nil
}

func tagIDReadOnly(repo *catalog.RepoDB, name string) (int64, error) {
	var id int64
	err := repo.QueryRow(`SELECT tagid FROM tag WHERE tagname = ?`, name).Scan(&id)
	if err != nil {
		return 0, nil //nolint:nilerr // no such tag yet is not an error here
	}
	return id, nil
}

func allTagIDs(repo *catalog.RepoDB) ([]int64, error) {
	rows, err := repo.Query(`SELECT tagid FROM tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// relaxTag propagates one tag id along plink edges until a round produces
// no new rows. boundaryTagID, when nonzero, is the resolved branch tag: a
// child whose branch-tag value differs from its parent's is a propagation
// boundary for every tag except the branch tag itself.
func relaxTag(repo *catalog.RepoDB, tagid, boundaryTagID int64) error {
	for {
		parents, err := tagRowsForTag(repo, tagid)
		if err != nil {
			return fmt.Errorf("crosslink: propagate tag %d: %w", tagid, err)
		}
		changed := 0
		for _, parentRow := range parents {
			if parentRow.tagid != tagid {
				continue
			}
			children, err := childrenOf(repo, parentRow.rid)
			if err != nil {
				return fmt.Errorf("crosslink: propagate tag %d: %w", tagid, err)
			}
			for _, child := range children {
				has, err := hasTagRow(repo, tagid, child)
				if err != nil {
					return fmt.Errorf("crosslink: propagate tag %d: %w", tagid, err)
				}
				if has {
					continue // explicit cancel, override, or already-propagated row wins
				}
				if boundaryTagID != 0 {
					sameBranch, err := sameBranchValue(repo, boundaryTagID, parentRow.rid, child)
					if err != nil {
						return fmt.Errorf("crosslink: propagate tag %d: %w", tagid, err)
					}
					if !sameBranch {
						continue
					}
				}
				if _, err := repo.Exec(
					`INSERT INTO tagxref(tagid, tagtype, srcid, value, mtime, rid) VALUES(?, 1, ?, ?, ?, ?)`,
					tagid, parentRow.srcid, parentRow.value, parentRow.mtime, child); err != nil {
					return fmt.Errorf("crosslink: propagate tag %d: %w", tagid, err)
				}
				changed++
			}
		}
		if changed == 0 {
			return nil
		}
	}
}

func tagRowsForTag(repo *catalog.RepoDB, tagid int64) ([]tagxrefRow, error) {
	rows, err := repo.Query(
		`SELECT tagid, srcid, value, mtime, rid FROM tagxref WHERE tagid = ? AND tagtype = 1`, tagid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []tagxrefRow
	for rows.Next() {
		var r tagxrefRow
		if err := rows.Scan(&r.tagid, &r.srcid, &r.value, &r.mtime, &r.rid); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func childrenOf(repo *catalog.RepoDB, rid int64) ([]int64, error) {
	rows, err := repo.Query(`SELECT cid FROM plink WHERE pid = ?`, rid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func hasTagRow(repo *catalog.RepoDB, tagid, rid int64) (bool, error) {
	var x int64
	err := repo.QueryRow(`SELECT rid FROM tagxref WHERE tagid = ? AND rid = ?`, tagid, rid).Scan(&x)
	if err != nil {
		return false, nil //nolint:nilerr // sql.ErrNoRows means "no row", not a failure
	}
	return true, nil
}

func sameBranchValue(repo *catalog.RepoDB, branchTagID, parentRid, childRid int64) (bool, error) {
	var parentVal, childVal string
	perr := repo.QueryRow(`SELECT value FROM tagxref WHERE tagid = ? AND rid = ?`, branchTagID, parentRid).Scan(&parentVal)
	cerr := repo.QueryRow(`SELECT value FROM tagxref WHERE tagid = ? AND rid = ?`, branchTagID, childRid).Scan(&childVal)
	if perr != nil || cerr != nil {
		// At least one of the two commits has no resolved branch tag yet;
		// treat as same branch rather than blocking propagation on
		// incomplete data.
		return true, nil
	}
	return parentVal == childVal, nil
}
