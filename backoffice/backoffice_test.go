package backoffice

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/corevcs/catalog"
)

type fakeClock struct {
	now   time.Time
	self  int64
	alive map[int64]bool
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}
func (c *fakeClock) SelfID() int64       { return c.self }
func (c *fakeClock) Alive(id int64) bool { return c.alive[id] }

func newTestRepo(t *testing.T) *catalog.RepoDB {
	t.Helper()
	repo, err := catalog.OpenRepository(":memory:", logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTakesOverWhenLeaseExpired(t *testing.T) {
	repo := newTestRepo(t)
	clock := &fakeClock{now: time.Unix(10000, 0), self: 42, alive: map[int64]bool{}}
	ran := false
	c := &Candidate{Repo: repo, Logger: logrus.New(), Clock: clock, Tasks: []Task{
		func() (int, error) { ran = true; return 1, nil },
	}}

	require.NoError(t, c.Run())
	assert.True(t, ran)

	lease, err := repo.ReadLease()
	require.NoError(t, err)
	assert.Equal(t, int64(42), lease.IDCurrent)
}

func TestYieldsWhenAnotherLiveCandidateQueued(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.WriteLease(catalog.Lease{
		IDCurrent: 1, TMCurrent: 20000,
		IDNext: 99, TMNext: 20000,
	}))
	clock := &fakeClock{now: time.Unix(10000, 0), self: 42, alive: map[int64]bool{1: true, 99: true}}
	ran := false
	c := &Candidate{Repo: repo, Logger: logrus.New(), Clock: clock, Tasks: []Task{
		func() (int, error) { ran = true; return 0, nil },
	}}

	require.NoError(t, c.Run())
	assert.False(t, ran)
}

func TestTakesOverWhenCurrentDead(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.WriteLease(catalog.Lease{IDCurrent: 1, TMCurrent: 50000}))
	clock := &fakeClock{now: time.Unix(10000, 0), self: 42, alive: map[int64]bool{}} // 1 is not alive
	ran := false
	c := &Candidate{Repo: repo, Logger: logrus.New(), Clock: clock, Tasks: []Task{
		func() (int, error) { ran = true; return 0, nil },
	}}

	require.NoError(t, c.Run())
	assert.True(t, ran)
}

func TestNoDelayExitsImmediatelyWithoutTakingOver(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.WriteLease(catalog.Lease{IDCurrent: 1, TMCurrent: 10060}))
	clock := &fakeClock{now: time.Unix(10000, 0), self: 42, alive: map[int64]bool{1: true}}
	ran := false
	c := &Candidate{Repo: repo, Logger: logrus.New(), Clock: clock, NoDelay: true, Tasks: []Task{
		func() (int, error) { ran = true; return 0, nil },
	}}

	require.NoError(t, c.Run())
	assert.False(t, ran)

	lease, err := repo.ReadLease()
	require.NoError(t, err)
	assert.Equal(t, int64(42), lease.IDNext)
}
