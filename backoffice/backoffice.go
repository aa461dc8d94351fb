// Package backoffice is the §4.5 scheduler: at most one active worker per
// repository, at most one on-deck successor, lease-based handoff tolerant
// of crashed workers and racing invokers.
//
// Grounded nearly line-for-line on original_source/src/backoffice.c's
// backoffice_thread state machine (Pending -> Working or OnDeck, the
// take-over/queue/yield decisions of step 2-4, the stuck-worker warning
// backoff). The teacher contributes the process/worker-pool logging texture
// (one summary line per run) and the detached-child invocation shape
// generalized into platform.SpawnDetached.
package backoffice

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/rcowham/corevcs/catalog"
	"github.com/rcowham/corevcs/platform"
)

// Lease is the §4.5.1 lease length: a worker that takes over holds the
// current slot for this long before another candidate may take over.
const Lease = 60 * time.Second

const (
	warningStart = 30 * time.Second
	warningCap   = 240 * time.Second
	giveUpAfter  = 1800 * time.Second
)

// Task is one unit of §4.5.3 background work. A worker runs every
// registered task in order; each must be idempotent against a crash
// partway through a previous run.
type Task func() (count int, err error)

// Clock abstracts wall-clock time and process liveness so the state machine
// is testable without real sleeps or real PIDs.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	SelfID() int64
	Alive(id int64) bool
}

// RealClock is the production Clock: wall time, real sleeps, OS PIDs.
type RealClock struct{}

func (RealClock) Now() time.Time         { return time.Now() }
func (RealClock) Sleep(d time.Duration)  { time.Sleep(d) }
func (RealClock) SelfID() int64          { return int64(platform.SelfPID()) }
func (RealClock) Alive(id int64) bool    { return platform.ProcessAlive(int(id)) }

// Candidate runs the §4.5.2 state machine for one repository.
type Candidate struct {
	Repo   *catalog.RepoDB
	Logger *logrus.Logger
	Clock  Clock
	Tasks  []Task
	NoDelay bool
}

// NewCandidate builds a Candidate with the real clock and no tasks; callers
// append to Tasks before calling Run.
func NewCandidate(repo *catalog.RepoDB, logger *logrus.Logger) *Candidate {
	return &Candidate{Repo: repo, Logger: logger, Clock: RealClock{}}
}

// Run drives the Pending loop of §4.5.2 to completion: either this
// candidate becomes Working and runs the tasks, some other live candidate
// is already on deck and this one yields, or the stuck-backoffice timeout
// is hit and it gives up.
func (c *Candidate) Run() error {
	giveUpAt := c.Clock.Now().Add(giveUpAfter)
	warn := newWarningBackoff()
	self := c.Clock.SelfID()

	for {
		lease, err := c.Repo.ReadLease()
		if err != nil {
			return err
		}
		now := c.Clock.Now().Unix()

		if lease.TMNext >= now && lease.IDNext != 0 && lease.IDNext != self && c.Clock.Alive(lease.IDNext) {
			return nil // yield: someone else is already queued
		}

		if lease.TMCurrent < now || lease.IDCurrent == 0 || !c.Clock.Alive(lease.IDCurrent) {
			return c.takeOver(self, now)
		}

		if err := c.queue(self, now); err != nil {
			return err
		}

		if c.NoDelay {
			return nil
		}

		sleepUntil := time.Unix(lease.TMCurrent+1, 0)
		d := sleepUntil.Sub(c.Clock.Now())
		if d > 0 {
			c.Clock.Sleep(d)
		}

		if c.Clock.Now().After(giveUpAt) {
			c.Logger.Warnf("backoffice: giving up after %s waiting for an active worker", giveUpAfter)
			return nil
		}

		refreshed, err := c.Repo.ReadLease()
		if err != nil {
			return err
		}
		if refreshed.TMCurrent == lease.TMCurrent {
			delay := warn.NextBackOff()
			if delay == backoff.Stop {
				c.Logger.Warnf("backoffice: giving up after repeated stuck-worker warnings")
				return nil
			}
			c.Logger.Warnf("backoffice: active worker appears stuck, waiting %s", delay)
			c.Clock.Sleep(delay)
		}
	}
}

// takeOver claims the current-worker slot. §4.5.1 requires the lease row to
// be read and written inside the same repository transaction, so the
// decision is made against a freshly re-read row rather than the one Run
// inspected before calling in, closing the race where two candidates both
// observe a dead/expired owner and both try to become current. If the
// re-read row shows a live, unexpired owner other than self, takeOver
// writes nothing and returns without running the tasks.
func (c *Candidate) takeOver(self int64, now int64) error {
	var lease catalog.Lease
	tookOver := false
	err := c.Repo.WithTransaction(func() error {
		current, err := c.Repo.ReadLease()
		if err != nil {
			return err
		}
		if current.TMCurrent >= now && current.IDCurrent != 0 && current.IDCurrent != self && c.Clock.Alive(current.IDCurrent) {
			return nil
		}
		tookOver = true
		lease = catalog.Lease{
			IDCurrent: self,
			TMCurrent: now + int64(Lease.Seconds()),
			IDNext:    0,
			TMNext:    0,
		}
		if current.IDNext == self {
			// We were already on deck; taking over clears that slot too.
			lease.IDNext, lease.TMNext = 0, 0
		}
		return c.Repo.WriteLease(lease)
	})
	if err != nil {
		return err
	}
	if !tookOver {
		return nil
	}
	return c.work(lease)
}

// queue puts self on deck behind whoever currently holds the lease,
// re-reading the row inside the same transaction it writes in for the same
// reason as takeOver.
func (c *Candidate) queue(self int64, now int64) error {
	return c.Repo.WithTransaction(func() error {
		lease, err := c.Repo.ReadLease()
		if err != nil {
			return err
		}
		base := now
		if lease.TMCurrent > base {
			base = lease.TMCurrent
		}
		lease.IDNext = self
		lease.TMNext = base + int64(Lease.Seconds())
		return c.Repo.WriteLease(lease)
	})
}

// work runs every registered task, logging counts and elapsed time, and
// renews the lease between tasks so a slow task set never outlives Lease
// while still holding exclusive current status.
func (c *Candidate) work(lease catalog.Lease) error {
	start := c.Clock.Now()
	total := 0
	for _, task := range c.Tasks {
		n, err := task()
		if err != nil {
			c.Logger.Errorf("backoffice: task failed: %v", err)
			continue
		}
		total += n
		lease.TMCurrent = c.Clock.Now().Unix() + int64(Lease.Seconds())
		if err := c.Repo.WriteLease(lease); err != nil {
			return err
		}
	}
	elapsedMicros := c.Clock.Now().Sub(start).Microseconds()
	c.Logger.Infof("backoffice: processed %d items in %dus", total, elapsedMicros)
	return nil
}

// newWarningBackoff is the stuck-worker warning policy of §4.5.2: start at
// 30s, double (Multiplier = 2), cap near 240s.
// The overall give-up bound is enforced separately against giveUpAt in Run,
// since that bound is measured from Run's start rather than from the first
// stuck-worker warning.
func newWarningBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = warningStart
	b.Multiplier = 2
	b.MaxInterval = warningCap
	b.MaxElapsedTime = 0 // Run enforces giveUpAfter itself
	b.Reset()
	return b
}
