// Package blobstore implements the L1 layer (§4.1): content-addressed
// put/get keyed by a hashpolicy hash, delta-chain storage with cycle
// detection, and the unsent/unclustered/private bookkeeping sets of §3.1.
//
// Grounded on the teacher's GitBlob/BlobFileMatcher/writeBlob/getBlobIDPath:
// the same shape of a small wrapper around raw content plus lazily computed
// derived fields, a matcher type keyed by an integer id, and a worker pool
// (alitto/pond) submitting the CPU-bound parts (hashing, compression) the
// way GitBlob.SaveBlob submits compression work to its pool.
package blobstore

import (
	"bytes"
	"compress/zlib"
	"database/sql"
	"fmt"
	"io"
	"sync"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	corevcs "github.com/rcowham/corevcs"
	"github.com/rcowham/corevcs/catalog"
	"github.com/rcowham/corevcs/hashpolicy"
)

const rcvSchema = `
CREATE TABLE IF NOT EXISTS rcv(
  rcvid  INTEGER PRIMARY KEY,
  token  TEXT UNIQUE NOT NULL,
  mtime  REAL NOT NULL
);
`

// Store is the L1 blob store bound to one repository database.
type Store struct {
	repo   *catalog.RepoDB
	logger *logrus.Logger
	policy hashpolicy.Policy
	pool   *pond.WorkerPool

	// mu serializes the read-modify-write of a single rid's content; the
	// underlying connection is already single-writer (catalog caps
	// MaxOpenConns at 1), but this additionally protects the
	// check-cycle-then-write sequence in Deltify from a racing Put/Get.
	mu sync.RWMutex
}

// NewStore binds a blob store to repo, using policy as the default hash
// algorithm for Put and poolSize workers for concurrent compression.
func NewStore(repo *catalog.RepoDB, policy hashpolicy.Policy, logger *logrus.Logger, poolSize int) (*Store, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	if _, err := repo.Exec(rcvSchema); err != nil {
		return nil, fmt.Errorf("blobstore: create rcv table: %w", err)
	}
	return &Store{
		repo:   repo,
		logger: logger,
		policy: policy,
		pool:   pond.New(poolSize, poolSize*4),
	}, nil
}

// Close stops the worker pool, waiting for submitted work to finish.
func (s *Store) Close() {
	s.pool.StopAndWait()
}

// NewReceipt allocates a fresh rcvid grouping artifacts received together
// in one transfer event (§3.1 "rcvid: receipt identifier"), returning both
// the dense SQL-side id the schema names and a caller-facing uuid
// correlation token recorded alongside it.
func (s *Store) NewReceipt() (rcvid int64, token uuid.UUID, err error) {
	token = uuid.New()
	res, err := s.repo.Exec(`INSERT INTO rcv(token, mtime) VALUES(?, strftime('%s','now'))`, token.String())
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("blobstore: new receipt: %w", err)
	}
	rcvid, err = res.LastInsertId()
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("blobstore: new receipt: %w", err)
	}
	return rcvid, token, nil
}

func compress(content []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Hash computes content's hash under the store's configured policy, the
// same computation Put uses internally, exposed for callers that need the
// hash before or independent of storing (e.g. a commit's own manifest hash
// for event logging).
func (s *Store) Hash(content []byte) string {
	return hashpolicy.Compute(s.policy, content)
}

// Put computes hash(content) under the store's hash policy (unless
// hashOverride is given), and stores it exactly once (§4.1):
//   - an existing non-phantom row with the same hash returns its rid
//     unchanged, content is never rewritten.
//   - an existing phantom row (size == -1) is populated in place.
//   - otherwise a new full (non-delta) row is inserted.
//
// rcvid groups this insert with others from the same receipt (0 means
// ungrouped). Private content goes into the private set instead of
// unsent/unclustered.
func (s *Store) Put(content []byte, private bool, rcvid int64, hashOverride string) (rid int64, err error) {
	hash := hashOverride
	if hash == "" {
		hash = hashpolicy.Compute(s.policy, content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existingRid, existingSize int64
	err = s.repo.QueryRow(`SELECT rid, size FROM blob WHERE hash = ?`, hash).Scan(&existingRid, &existingSize)
	switch {
	case err == nil && existingSize >= 0:
		return existingRid, nil
	case err == nil && existingSize < 0:
		// Phantom: populate it.
		compressed, cerr := compress(content)
		if cerr != nil {
			return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", cerr)
		}
		if _, err := s.repo.Exec(`UPDATE blob SET size = ?, content = ?, rcvid = ? WHERE rid = ?`,
			len(content), compressed, rcvid, existingRid); err != nil {
			return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
		}
		if private {
			_, err = s.repo.Exec(`INSERT OR IGNORE INTO private(rid) VALUES(?)`, existingRid)
		} else if _, err = s.repo.Exec(`INSERT OR IGNORE INTO unsent(rid) VALUES(?)`, existingRid); err == nil {
			_, err = s.repo.Exec(`INSERT OR IGNORE INTO unclustered(rid) VALUES(?)`, existingRid)
		}
		if err != nil {
			return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
		}
		return existingRid, nil
	case err != sql.ErrNoRows:
		return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
	}

	compressed, err := compress(content)
	if err != nil {
		return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
	}
	res, err := s.repo.Exec(`INSERT INTO blob(hash, size, content, rcvid) VALUES(?, ?, ?, ?)`,
		hash, len(content), compressed, rcvid)
	if err != nil {
		return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
	}
	rid, err = res.LastInsertId()
	if err != nil {
		return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
	}

	if private {
		if _, err := s.repo.Exec(`INSERT INTO private(rid) VALUES(?)`, rid); err != nil {
			return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
		}
	} else {
		if _, err := s.repo.Exec(`INSERT INTO unsent(rid) VALUES(?)`, rid); err != nil {
			return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
		}
		if _, err := s.repo.Exec(`INSERT INTO unclustered(rid) VALUES(?)`, rid); err != nil {
			return 0, corevcs.Wrap(corevcs.IO, "blobstore.Put", err)
		}
	}
	return rid, nil
}

// PutPhantom inserts a row whose hash is known but whose content is not yet
// available (size = -1), to be later populated by Put with the matching
// hash.
func (s *Store) PutPhantom(hash string) (rid int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.repo.Exec(`INSERT OR IGNORE INTO blob(hash, size, rcvid) VALUES(?, -1, 0)`, hash)
	if err != nil {
		return 0, corevcs.Wrap(corevcs.IO, "blobstore.PutPhantom", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return res.LastInsertId()
	}
	var rid2 int64
	if err := s.repo.QueryRow(`SELECT rid FROM blob WHERE hash = ?`, hash).Scan(&rid2); err != nil {
		return 0, corevcs.Wrap(corevcs.IO, "blobstore.PutPhantom", err)
	}
	return rid2, nil
}

// PutConcurrent submits len(contents) Put calls to the worker pool and
// waits for all of them, mirroring GitBlob.SaveBlob's pattern of fanning
// work out across a pond pool and collecting results. Because the
// repository connection is single-writer, each Put holds s.mu for its
// lookup, compression and database write; only the hashing runs in
// parallel across submissions.
func (s *Store) PutConcurrent(contents [][]byte, private bool, rcvid int64) ([]int64, error) {
	rids := make([]int64, len(contents))
	errs := make([]error, len(contents))
	var wg sync.WaitGroup
	wg.Add(len(contents))
	for i, content := range contents {
		i, content := i, content
		s.pool.Submit(func() {
			defer wg.Done()
			rid, err := s.Put(content, private, rcvid, "")
			rids[i] = rid
			errs[i] = err
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return rids, nil
}

// Get reconstructs the content for rid by walking its delta chain to a full
// copy and applying deltas in reverse, verifying the resulting length
// against blob.size (§4.1).
func (s *Store) Get(rid int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(rid, make(map[int64]bool))
}

func (s *Store) getLocked(rid int64, visited map[int64]bool) ([]byte, error) {
	if visited[rid] {
		return nil, corevcs.Newf(corevcs.Integrity, "blobstore.Get", "delta chain cycle detected at rid %d", rid)
	}
	visited[rid] = true

	var size int64
	var compressed []byte
	if err := s.repo.QueryRow(`SELECT size, content FROM blob WHERE rid = ?`, rid).Scan(&size, &compressed); err != nil {
		if err == sql.ErrNoRows {
			return nil, corevcs.Newf(corevcs.NotFound, "blobstore.Get", "no such rid %d", rid)
		}
		return nil, corevcs.Wrap(corevcs.IO, "blobstore.Get", err)
	}
	if size < 0 {
		return nil, corevcs.Newf(corevcs.NotFound, "blobstore.Get", "rid %d is a phantom", rid)
	}

	var srcid int64
	hasDelta := false
	err := s.repo.QueryRow(`SELECT srcid FROM delta WHERE rid = ?`, rid).Scan(&srcid)
	switch {
	case err == nil:
		hasDelta = true
	case err == sql.ErrNoRows:
	default:
		return nil, corevcs.Wrap(corevcs.IO, "blobstore.Get", err)
	}

	raw, err := decompress(compressed)
	if err != nil {
		return nil, corevcs.Wrap(corevcs.Integrity, "blobstore.Get", err)
	}

	var content []byte
	if hasDelta {
		source, err := s.getLocked(srcid, visited)
		if err != nil {
			return nil, err
		}
		content, err = applyDelta(source, raw)
		if err != nil {
			return nil, corevcs.Wrap(corevcs.Integrity, "blobstore.Get", err)
		}
	} else {
		content = raw
	}

	if int64(len(content)) != size {
		return nil, corevcs.Newf(corevcs.Integrity, "blobstore.Get", "rid %d: reconstructed length %d != recorded size %d", rid, len(content), size)
	}
	return content, nil
}

// isAncestor reports whether candidate appears anywhere in rid's delta
// ancestry, used by Deltify to refuse introducing a cycle.
func (s *Store) isAncestor(rid, candidate int64) (bool, error) {
	visited := make(map[int64]bool)
	for {
		if rid == candidate {
			return true, nil
		}
		if visited[rid] {
			return false, corevcs.Newf(corevcs.Integrity, "blobstore.Deltify", "existing delta chain is cyclic at rid %d", rid)
		}
		visited[rid] = true
		var srcid int64
		err := s.repo.QueryRow(`SELECT srcid FROM delta WHERE rid = ?`, rid).Scan(&srcid)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, corevcs.Wrap(corevcs.IO, "blobstore.Deltify", err)
		}
		rid = srcid
	}
}

// Deltify rewrites blob[targetRid].content as a delta against sourceRid if
// that would shrink its stored size, or unconditionally when force is set
// (§4.1). Refuses if doing so would introduce a cycle.
func (s *Store) Deltify(targetRid, sourceRid int64, force bool) (bool, error) {
	if targetRid == sourceRid {
		return false, corevcs.Newf(corevcs.Usage, "blobstore.Deltify", "target and source rid are the same (%d)", targetRid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if isCyclic, err := s.isAncestor(sourceRid, targetRid); err != nil {
		return false, err
	} else if isCyclic {
		return false, corevcs.Newf(corevcs.Integrity, "blobstore.Deltify", "deltifying %d against %d would introduce a cycle", targetRid, sourceRid)
	}

	target, err := s.getLocked(targetRid, make(map[int64]bool))
	if err != nil {
		return false, err
	}
	source, err := s.getLocked(sourceRid, make(map[int64]bool))
	if err != nil {
		return false, err
	}

	var currentCompressedLen int
	if err := s.repo.QueryRow(`SELECT length(content) FROM blob WHERE rid = ?`, targetRid).Scan(&currentCompressedLen); err != nil {
		return false, corevcs.Wrap(corevcs.IO, "blobstore.Deltify", err)
	}

	deltaBytes := encodeDelta(source, target)
	compressedDelta, err := compress(deltaBytes)
	if err != nil {
		return false, corevcs.Wrap(corevcs.IO, "blobstore.Deltify", err)
	}

	if !force && len(compressedDelta) >= currentCompressedLen {
		return false, nil
	}

	if err := s.repo.WithTransaction(func() error {
		if _, err := s.repo.Exec(`UPDATE blob SET content = ? WHERE rid = ?`, compressedDelta, targetRid); err != nil {
			return err
		}
		_, err := s.repo.Exec(`REPLACE INTO delta(rid, srcid) VALUES(?, ?)`, targetRid, sourceRid)
		return err
	}); err != nil {
		return false, corevcs.Wrap(corevcs.IO, "blobstore.Deltify", err)
	}
	return true, nil
}

// ContentIsPrivate reports whether rid is a member of the private set.
func (s *Store) ContentIsPrivate(rid int64) (bool, error) {
	var x int64
	err := s.repo.QueryRow(`SELECT rid FROM private WHERE rid = ?`, rid).Scan(&x)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, corevcs.Wrap(corevcs.IO, "blobstore.ContentIsPrivate", err)
	}
	return true, nil
}

// MakePublic moves rid out of the private set and into unsent/unclustered.
func (s *Store) MakePublic(rid int64) error {
	return s.repo.WithTransaction(func() error {
		if _, err := s.repo.Exec(`DELETE FROM private WHERE rid = ?`, rid); err != nil {
			return err
		}
		if _, err := s.repo.Exec(`INSERT OR IGNORE INTO unsent(rid) VALUES(?)`, rid); err != nil {
			return err
		}
		_, err := s.repo.Exec(`INSERT OR IGNORE INTO unclustered(rid) VALUES(?)`, rid)
		return err
	})
}
