package catalog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Schema DDL for the two on-disk databases named in §3. The exact table and
// column names are the public contract of §6.1 ("the exact schemas named in
// §3 are the public contract for the on-disk format"), so they are spelled
// out verbatim here rather than generated, the way
// other_examples/5e0beabc_steveyegge-beads's sqlite-schema.go embeds its
// CREATE TABLE statements as Go string constants.

const repoSchema = `
CREATE TABLE IF NOT EXISTS blob(
  rid      INTEGER PRIMARY KEY,
  hash     TEXT UNIQUE NOT NULL,
  size     INTEGER NOT NULL,
  content  BLOB,
  rcvid    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS delta(
  rid    INTEGER PRIMARY KEY REFERENCES blob(rid),
  srcid  INTEGER NOT NULL REFERENCES blob(rid)
);
CREATE INDEX IF NOT EXISTS delta_srcid ON delta(srcid);
CREATE TABLE IF NOT EXISTS unsent(rid INTEGER PRIMARY KEY REFERENCES blob(rid));
CREATE TABLE IF NOT EXISTS unclustered(rid INTEGER PRIMARY KEY REFERENCES blob(rid));
CREATE TABLE IF NOT EXISTS private(rid INTEGER PRIMARY KEY REFERENCES blob(rid));
CREATE TABLE IF NOT EXISTS shun(hash TEXT PRIMARY KEY);

CREATE TABLE IF NOT EXISTS event(
  type     TEXT NOT NULL,
  mtime    REAL NOT NULL,
  objid    INTEGER NOT NULL REFERENCES blob(rid),
  user     TEXT,
  comment  TEXT,
  PRIMARY KEY(type, objid)
);
CREATE INDEX IF NOT EXISTS event_mtime ON event(mtime);

CREATE TABLE IF NOT EXISTS mlink(
  mid       INTEGER NOT NULL REFERENCES blob(rid),
  pid       INTEGER,
  fid       INTEGER,
  fnid      INTEGER NOT NULL REFERENCES filename(fnid),
  pfnid     INTEGER,
  mperm     INTEGER NOT NULL DEFAULT 0,
  isaux     INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(mid, fnid)
);
CREATE INDEX IF NOT EXISTS mlink_fnid ON mlink(fnid);

CREATE TABLE IF NOT EXISTS filename(
  fnid  INTEGER PRIMARY KEY,
  name  TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS plink(
  pid      INTEGER NOT NULL REFERENCES blob(rid),
  cid      INTEGER NOT NULL REFERENCES blob(rid),
  isprim   INTEGER NOT NULL,
  mtime    REAL,
  baseid   INTEGER,
  PRIMARY KEY(pid, cid)
);
CREATE INDEX IF NOT EXISTS plink_cid ON plink(cid);

CREATE TABLE IF NOT EXISTS tagxref(
  tagid     INTEGER NOT NULL,
  tagtype   INTEGER NOT NULL,
  srcid     INTEGER NOT NULL REFERENCES blob(rid),
  value     TEXT,
  mtime     REAL,
  rid       INTEGER NOT NULL REFERENCES blob(rid),
  PRIMARY KEY(tagid, rid)
);
CREATE TABLE IF NOT EXISTS tag(
  tagid  INTEGER PRIMARY KEY,
  tagname TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS config(
  name   TEXT PRIMARY KEY,
  value  TEXT,
  mtime  REAL
);

CREATE TABLE IF NOT EXISTS user(
  uid    INTEGER PRIMARY KEY,
  login  TEXT UNIQUE NOT NULL,
  info   TEXT
);
`

const checkoutSchema = `
CREATE TABLE IF NOT EXISTS vfile(
  id        INTEGER PRIMARY KEY,
  pathname  TEXT NOT NULL,
  origname  TEXT,
  rid       INTEGER NOT NULL DEFAULT 0,
  mrid      INTEGER NOT NULL DEFAULT 0,
  mhash     TEXT,
  msize     INTEGER NOT NULL DEFAULT 0,
  mtime     INTEGER NOT NULL DEFAULT 0,
  chnged    INTEGER NOT NULL DEFAULT 0,
  deleted   INTEGER NOT NULL DEFAULT 0,
  isexe     INTEGER NOT NULL DEFAULT 0,
  islink    INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS vfile_pathname ON vfile(pathname);

CREATE TABLE IF NOT EXISTS vmerge(
  id     INTEGER NOT NULL,
  mhash  TEXT NOT NULL,
  merge  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS vvar(
  name   TEXT PRIMARY KEY,
  value  TEXT
);

CREATE TABLE IF NOT EXISTS sfile(
  pathname  TEXT PRIMARY KEY,
  isdir     INTEGER NOT NULL DEFAULT 0
);
`

// RepoDB is the repository-wide database of §3.1/§3.2/§3.4.
type RepoDB struct {
	*DB
}

// CheckoutDB is the checkout-local database of §3.3.
type CheckoutDB struct {
	*DB
}

// OpenRepository opens (creating if absent) the repository database at
// path and ensures its schema exists.
func OpenRepository(path string, logger *logrus.Logger) (*RepoDB, error) {
	base, err := open(path, logger)
	if err != nil {
		return nil, err
	}
	if _, err := base.sqldb.Exec(repoSchema); err != nil {
		base.sqldb.Close()
		return nil, fmt.Errorf("catalog: apply repo schema: %w", err)
	}
	return &RepoDB{DB: base}, nil
}

// OpenCheckout opens (creating if absent) the checkout database at path.
// §6.2 names the conventional filenames (_FOSSIL_, .fslckout, legacy .fos)
// that locate this file; the caller resolves that filename.
func OpenCheckout(path string, logger *logrus.Logger) (*CheckoutDB, error) {
	base, err := open(path, logger)
	if err != nil {
		return nil, err
	}
	if _, err := base.sqldb.Exec(checkoutSchema); err != nil {
		base.sqldb.Close()
		return nil, fmt.Errorf("catalog: apply checkout schema: %w", err)
	}
	return &CheckoutDB{DB: base}, nil
}
