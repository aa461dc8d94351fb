package checkin

import (
	"time"

	corevcs "github.com/rcowham/corevcs"
	"github.com/rcowham/corevcs/catalog"
)

// GuardInput carries everything the §4.4.5 pre-commit guards need to judge
// one proposed commit.
type GuardInput struct {
	Repo *catalog.RepoDB

	ParentRid       int64
	ParentIsLeaf    bool
	ParentClosed    bool // parent carries the propagating "closed" tag
	BranchRenamed   bool // an explicit --branch moves the commit to a new branch
	ParentDates     []time.Time
	CommitDate      time.Time
	HasFileChanges  bool
	HasMerges       bool
	HasTagChanges   bool
	User            string

	AllowFork     bool
	AllowYounger  bool
	AllowEmpty    bool
}

// RunGuards runs every §4.4.5 guard in spec order, returning the first
// failure. A nil return means the commit may proceed.
func RunGuards(in GuardInput) error {
	if !in.ParentIsLeaf && !in.BranchRenamed && !in.AllowFork {
		return corevcs.Newf(corevcs.Conflict, "checkin.guards",
			"parent is not a leaf of its branch; pass allow-fork or rename onto a new branch")
	}
	if in.ParentClosed && !in.BranchRenamed {
		return corevcs.Newf(corevcs.Conflict, "checkin.guards",
			"parent carries the closed tag; commit must change branch")
	}
	if !in.AllowYounger {
		for _, pd := range in.ParentDates {
			if in.CommitDate.Before(pd) {
				return corevcs.Newf(corevcs.Conflict, "checkin.guards",
					"commit date %s precedes parent date %s", in.CommitDate, pd)
			}
		}
	}
	if !in.HasFileChanges && !in.HasMerges && !in.HasTagChanges && !in.AllowEmpty {
		return corevcs.Newf(corevcs.Conflict, "checkin.guards", "commit has no changes; pass allow-empty")
	}
	exists, err := in.Repo.UserExists(in.User)
	if err != nil {
		return corevcs.Wrap(corevcs.IO, "checkin.guards", err)
	}
	if !exists {
		return corevcs.Newf(corevcs.Usage, "checkin.guards", "user %q does not exist", in.User)
	}
	return nil
}
