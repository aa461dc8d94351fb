package crosslink

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/corevcs/blobstore"
	"github.com/rcowham/corevcs/catalog"
	"github.com/rcowham/corevcs/hashpolicy"
	"github.com/rcowham/corevcs/manifest"
)

type fixture struct {
	repo  *catalog.RepoDB
	store *blobstore.Store
	link  *Linker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	repo, err := catalog.OpenRepository(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	store, err := blobstore.NewStore(repo, hashpolicy.SHA1, logger, 1)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return &fixture{repo: repo, store: store, link: NewLinker(repo, logger)}
}

// commit stores fileContents under their paths, builds a manifest with the
// given parents and tags, stores the manifest artifact itself, and returns
// (rid, hash, encoded bytes) for use as a later commit's parent/tag target.
func (f *fixture) commit(t *testing.T, paths map[string]string, parents []string, tags []manifest.TagCard, when time.Time) (int64, string, []byte) {
	t.Helper()
	var files []manifest.FileEntry
	for path, content := range paths {
		_, err := f.store.Put([]byte(content), false, 0, "")
		require.NoError(t, err)
		files = append(files, manifest.FileEntry{
			Path: path,
			Hash: hashpolicy.Compute(hashpolicy.SHA1, []byte(content)),
		})
	}
	m := &manifest.Manifest{
		Comment: "a commit",
		Date:    when,
		Files:   files,
		Parents: parents,
		Tags:    tags,
		User:    "alice",
	}
	raw, err := manifest.Encode(m)
	require.NoError(t, err)
	rid, err := f.store.Put(raw, false, 0, "")
	require.NoError(t, err)
	hash := hashpolicy.Compute(hashpolicy.SHA1, raw)
	return rid, hash, raw
}

func (f *fixture) countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.repo.QueryRow(query, args...).Scan(&n))
	return n
}

func TestApplyProjectsFilesAndEvent(t *testing.T) {
	f := newFixture(t)
	rid, _, raw := f.commit(t, map[string]string{"a.txt": "one\n", "b.txt": "two\n"}, nil, nil, time.Unix(1000, 0))

	require.NoError(t, f.link.Begin())
	require.NoError(t, f.link.Apply(rid, raw))
	require.NoError(t, f.link.End(false))

	assert.Equal(t, 2, f.countRows(t, `SELECT COUNT(*) FROM mlink WHERE mid = ?`, rid))
	assert.Equal(t, 1, f.countRows(t, `SELECT COUNT(*) FROM event WHERE type='ci' AND objid = ?`, rid))
	assert.Equal(t, 2, f.countRows(t, `SELECT COUNT(*) FROM filename`))
}

func TestApplyProjectsParentEdge(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.link.Begin())
	parentRid, parentHash, parentRaw := f.commit(t, map[string]string{"a.txt": "one\n"}, nil, nil, time.Unix(1000, 0))
	require.NoError(t, f.link.Apply(parentRid, parentRaw))
	childRid, _, childRaw := f.commit(t, map[string]string{"a.txt": "one\n"}, []string{parentHash}, nil, time.Unix(2000, 0))
	require.NoError(t, f.link.Apply(childRid, childRaw))
	require.NoError(t, f.link.End(false))

	assert.Equal(t, 1, f.countRows(t, `SELECT COUNT(*) FROM plink WHERE pid = ? AND cid = ? AND isprim = 1`, parentRid, childRid))
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	rid, _, raw := f.commit(t, map[string]string{"a.txt": "one\n"}, nil, nil, time.Unix(1000, 0))

	require.NoError(t, f.link.Begin())
	require.NoError(t, f.link.Apply(rid, raw))
	require.NoError(t, f.link.Apply(rid, raw))
	require.NoError(t, f.link.End(false))

	assert.Equal(t, 1, f.countRows(t, `SELECT COUNT(*) FROM mlink WHERE mid = ?`, rid))
	assert.Equal(t, 1, f.countRows(t, `SELECT COUNT(*) FROM event WHERE type='ci' AND objid = ?`, rid))
}

func TestTagPropagatesToDescendant(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.link.Begin())
	parentRid, parentHash, parentRaw := f.commit(t, map[string]string{"a.txt": "one\n"}, nil,
		[]manifest.TagCard{{Op: manifest.AddPropagating, Name: "release", Value: "v1"}}, time.Unix(1000, 0))
	require.NoError(t, f.link.Apply(parentRid, parentRaw))
	childRid, _, childRaw := f.commit(t, map[string]string{"a.txt": "two\n"}, []string{parentHash}, nil, time.Unix(2000, 0))
	require.NoError(t, f.link.Apply(childRid, childRaw))
	require.NoError(t, f.link.End(false))

	var tagid int64
	require.NoError(t, f.repo.QueryRow(`SELECT tagid FROM tag WHERE tagname = 'release'`).Scan(&tagid))
	assert.Equal(t, 1, f.countRows(t, `SELECT COUNT(*) FROM tagxref WHERE tagid = ? AND rid = ?`, tagid, childRid))
}

func TestCancelStopsPropagation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.link.Begin())
	parentRid, parentHash, parentRaw := f.commit(t, map[string]string{"a.txt": "one\n"}, nil,
		[]manifest.TagCard{{Op: manifest.AddPropagating, Name: "release", Value: "v1"}}, time.Unix(1000, 0))
	require.NoError(t, f.link.Apply(parentRid, parentRaw))
	childRid, childHash, childRaw := f.commit(t, map[string]string{"a.txt": "two\n"}, []string{parentHash},
		[]manifest.TagCard{{Op: manifest.Cancel, Name: "release"}}, time.Unix(2000, 0))
	require.NoError(t, f.link.Apply(childRid, childRaw))
	grandchildRid, _, grandchildRaw := f.commit(t, map[string]string{"a.txt": "three\n"}, []string{childHash}, nil, time.Unix(3000, 0))
	require.NoError(t, f.link.Apply(grandchildRid, grandchildRaw))
	require.NoError(t, f.link.End(false))

	var tagid int64
	require.NoError(t, f.repo.QueryRow(`SELECT tagid FROM tag WHERE tagname = 'release'`).Scan(&tagid))
	assert.Equal(t, 0, f.countRows(t, `SELECT COUNT(*) FROM tagxref WHERE tagid = ? AND rid = ?`, tagid, grandchildRid))
}

func TestAbortRollsBackApply(t *testing.T) {
	f := newFixture(t)
	rid, _, raw := f.commit(t, map[string]string{"a.txt": "one\n"}, nil, nil, time.Unix(1000, 0))

	require.NoError(t, f.link.Begin())
	require.NoError(t, f.link.Apply(rid, raw))
	require.NoError(t, f.link.Abort())

	assert.Equal(t, 0, f.countRows(t, `SELECT COUNT(*) FROM mlink WHERE mid = ?`, rid))
}

func TestApplyWithoutBeginFails(t *testing.T) {
	f := newFixture(t)
	rid, _, raw := f.commit(t, map[string]string{"a.txt": "one\n"}, nil, nil, time.Unix(1000, 0))
	err := f.link.Apply(rid, raw)
	assert.Error(t, err)
}
