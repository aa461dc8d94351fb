package checkin

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/corevcs/catalog"
)

func newGuardRepo(t *testing.T) *catalog.RepoDB {
	t.Helper()
	repo, err := catalog.OpenRepository(":memory:", logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.AddUser("alice", ""))
	return repo
}

func baseInput(repo *catalog.RepoDB) GuardInput {
	return GuardInput{
		Repo:           repo,
		ParentIsLeaf:   true,
		CommitDate:     time.Unix(2000, 0),
		HasFileChanges: true,
		User:           "alice",
	}
}

func TestGuardsPassOnCleanCommit(t *testing.T) {
	assert.NoError(t, RunGuards(baseInput(newGuardRepo(t))))
}

func TestForkGuardBlocksNonLeafParent(t *testing.T) {
	in := baseInput(newGuardRepo(t))
	in.ParentIsLeaf = false
	err := RunGuards(in)
	assert.Error(t, err)
}

func TestForkGuardBypassedByAllowFork(t *testing.T) {
	in := baseInput(newGuardRepo(t))
	in.ParentIsLeaf = false
	in.AllowFork = true
	assert.NoError(t, RunGuards(in))
}

func TestClosedLeafGuardNotBypassable(t *testing.T) {
	in := baseInput(newGuardRepo(t))
	in.ParentClosed = true
	in.AllowFork = true
	err := RunGuards(in)
	assert.Error(t, err)
}

func TestClosedLeafGuardAllowsBranchRename(t *testing.T) {
	in := baseInput(newGuardRepo(t))
	in.ParentClosed = true
	in.BranchRenamed = true
	assert.NoError(t, RunGuards(in))
}

func TestYoungerThanAncestorGuard(t *testing.T) {
	in := baseInput(newGuardRepo(t))
	in.ParentDates = []time.Time{time.Unix(5000, 0)}
	err := RunGuards(in)
	assert.Error(t, err)

	in.AllowYounger = true
	assert.NoError(t, RunGuards(in))
}

func TestEmptyCommitGuard(t *testing.T) {
	in := baseInput(newGuardRepo(t))
	in.HasFileChanges = false
	err := RunGuards(in)
	assert.Error(t, err)

	in.AllowEmpty = true
	assert.NoError(t, RunGuards(in))
}

func TestUserExistsGuard(t *testing.T) {
	in := baseInput(newGuardRepo(t))
	in.User = "nobody"
	err := RunGuards(in)
	assert.Error(t, err)
}
