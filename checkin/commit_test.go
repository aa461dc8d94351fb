package checkin

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

func newCommitFixture(t *testing.T) (*catalog.RepoDB, *catalog.CheckoutDB, *blobstore.Store, *logrus.Logger) {
	t.Helper()
	logger := logrus.New()
	repo, err := catalog.OpenRepository(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	checkout, err := catalog.OpenCheckout(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { checkout.Close() })
	store, err := blobstore.NewStore(repo, hashpolicy.SHA1, logger, 1)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, repo.AddUser("alice", ""))
	return repo, checkout, store, logger
}

func TestCommitStoresManifestAndAdvancesCheckout(t *testing.T) {
	repo, checkout, store, logger := newCommitFixture(t)

	contentHash := store.Hash([]byte("hello\n"))
	_, err := store.Put([]byte("hello\n"), false, 0, "")
	require.NoError(t, err)

	files := []manifest.FileEntry{{Path: "a.txt", Hash: contentHash}}
	req := Request{
		Files:     files,
		DiskFiles: files,
		Comment:   "first commit",
		User:      "alice",
		Date:      time.Unix(1000, 0),
		Guards: GuardInput{
			Repo:           repo,
			ParentIsLeaf:   true,
			CommitDate:     time.Unix(1000, 0),
			HasFileChanges: true,
			User:           "alice",
		},
	}

	res, err := Commit(repo, checkout, store, logger, req)
	require.NoError(t, err)
	assert.NotZero(t, res.Rid)

	scalar, err := checkout.CheckoutScalar()
	require.NoError(t, err)
	assert.Equal(t, res.Rid, scalar)
}

func TestCommitRejectsChecksumMismatch(t *testing.T) {
	repo, checkout, store, logger := newCommitFixture(t)

	contentHash := store.Hash([]byte("hello\n"))
	_, err := store.Put([]byte("hello\n"), false, 0, "")
	require.NoError(t, err)

	req := Request{
		Files:     []manifest.FileEntry{{Path: "a.txt", Hash: contentHash}},
		DiskFiles: []manifest.FileEntry{{Path: "a.txt", Hash: "different"}},
		Comment:   "mismatched",
		User:      "alice",
		Date:      time.Unix(1000, 0),
		Guards: GuardInput{
			Repo:           repo,
			ParentIsLeaf:   true,
			CommitDate:     time.Unix(1000, 0),
			HasFileChanges: true,
			User:           "alice",
		},
	}

	_, err = Commit(repo, checkout, store, logger, req)
	assert.Error(t, err)
}

func TestCommitFormDeltaDiffsAgainstParent(t *testing.T) {
	repo, checkout, store, logger := newCommitFixture(t)

	aHash := store.Hash([]byte("unchanged\n"))
	_, err := store.Put([]byte("unchanged\n"), false, 0, "")
	require.NoError(t, err)
	bHash := store.Hash([]byte("new file\n"))
	_, err = store.Put([]byte("new file\n"), false, 0, "")
	require.NoError(t, err)
	_, err = store.Put([]byte("parent manifest\n"), false, 0, "parenthash")
	require.NoError(t, err)

	parentFiles := []manifest.FileEntry{
		{Path: "a.txt", Hash: aHash},
		{Path: "old.txt", Hash: "oldhash"},
	}
	files := []manifest.FileEntry{
		{Path: "a.txt", Hash: aHash},
		{Path: "b.txt", Hash: bHash},
	}

	req := Request{
		Files:       files,
		DiskFiles:   files,
		ParentFiles: parentFiles,
		Parents:     []string{"parenthash"},
		Comment:     "delta commit",
		User:        "alice",
		Date:        time.Unix(1000, 0),
		ForceForm:   FormDelta,
		AllowDelta:  true,
		Guards: GuardInput{
			Repo:           repo,
			ParentIsLeaf:   true,
			CommitDate:     time.Unix(1000, 0),
			HasFileChanges: true,
			User:           "alice",
		},
	}

	res, err := Commit(repo, checkout, store, logger, req)
	require.NoError(t, err)
	assert.Equal(t, FormDelta, res.Form)

	raw, err := store.Get(res.Rid)
	require.NoError(t, err)
	decoded, err := manifest.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "parenthash", decoded.Baseline)
	require.Len(t, decoded.Files, 2)
	byPath := make(map[string]manifest.FileEntry, len(decoded.Files))
	for _, f := range decoded.Files {
		byPath[f.Path] = f
	}
	_, unchangedPresent := byPath["a.txt"]
	assert.False(t, unchangedPresent, "unchanged a.txt should not appear in a delta manifest")
	assert.Equal(t, bHash, byPath["b.txt"].Hash)
	assert.Equal(t, "", byPath["old.txt"].Hash, "removed path should carry an empty hash")
}

func TestCommitFailsGuardBeforeTouchingStorage(t *testing.T) {
	repo, checkout, store, logger := newCommitFixture(t)

	req := Request{
		Comment: "empty",
		User:    "alice",
		Date:    time.Unix(1000, 0),
		Guards: GuardInput{
			Repo:           repo,
			ParentIsLeaf:   true,
			CommitDate:     time.Unix(1000, 0),
			HasFileChanges: false,
			User:           "alice",
		},
	}

	_, err := Commit(repo, checkout, store, logger, req)
	assert.Error(t, err)
}
