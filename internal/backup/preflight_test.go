// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup_test

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/confbackup/internal/backup"
)

type preflightSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&preflightSuite{})

func (s *preflightSuite) TestPrivilegedUser(c *gc.C) {
	s.PatchValue(backup.Euid, func() int { return 0 })
	c.Check(backup.CheckPrivileges(), jc.ErrorIsNil)
}

func (s *preflightSuite) TestUnprivilegedUser(c *gc.C) {
	s.PatchValue(backup.Euid, func() int { return 1000 })
	err := backup.CheckPrivileges()
	c.Check(err, jc.ErrorIs, errors.Unauthorized)
	c.Check(err, gc.ErrorMatches, "must run as root, not uid 1000")
}

func (s *preflightSuite) TestFreeSpaceEnough(c *gc.C) {
	s.PatchValue(backup.Statfs, func(string) (uint64, error) {
		return backup.MinFreeSpace, nil
	})
	c.Check(backup.CheckFreeSpace("/srv/backups"), jc.ErrorIsNil)
}

func (s *preflightSuite) TestFreeSpaceShort(c *gc.C) {
	s.PatchValue(backup.Statfs, func(string) (uint64, error) {
		return 1 << 30, nil
	})
	err := backup.CheckFreeSpace("/srv/backups")
	c.Check(err, jc.ErrorIs, backup.ErrInsufficientSpace)
	c.Check(err, gc.ErrorMatches,
		`1.0 GiB free on "/srv/backups", need at least 2.0 GiB: insufficient free space`)
}

func (s *preflightSuite) TestFreeSpaceStatFailure(c *gc.C) {
	s.PatchValue(backup.Statfs, func(string) (uint64, error) {
		return 0, errors.New("volume vanished")
	})
	err := backup.CheckFreeSpace("/srv/backups")
	c.Check(err, gc.ErrorMatches, `checking free space on "/srv/backups": volume vanished`)
}

func (s *preflightSuite) TestIsRemoteDestination(c *gc.C) {
	for _, test := range []struct {
		dest   string
		remote bool
	}{
		{"//nas/backups/web01", true},
		{`\\nas\backups\web01`, true},
		{"/srv/backups", false},
		{"relative/dir", false},
		{"", false},
	} {
		c.Logf("checking %q", test.dest)
		c.Check(backup.IsRemoteDestination(test.dest), gc.Equals, test.remote)
	}
}

func (s *preflightSuite) TestShareRoot(c *gc.C) {
	for _, test := range []struct {
		dest string
		root string
	}{
		{"//nas/backups/web01/2026", "//nas/backups"},
		{`\\nas\backups\web01`, "//nas/backups"},
		{"//nas/backups", "//nas/backups"},
		{"//nas", "//nas"},
	} {
		c.Logf("checking %q", test.dest)
		c.Check(backup.ShareRoot(test.dest), gc.Equals, test.root)
	}
}

func (s *preflightSuite) TestLocalDestinationNotProbed(c *gc.C) {
	probed := 0
	s.PatchValue(backup.StatDir, func(string) error {
		probed++
		return nil
	})
	err := backup.CheckDestination("/srv/offsite", clock.WallClock)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(probed, gc.Equals, 0)
}

func (s *preflightSuite) TestRemoteDestinationProbesShareRoot(c *gc.C) {
	var probed []string
	s.PatchValue(backup.StatDir, func(path string) error {
		probed = append(probed, path)
		return nil
	})
	err := backup.CheckDestination("//nas/backups/web01", clock.WallClock)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(probed, jc.DeepEquals, []string{"//nas/backups"})
}

func (s *preflightSuite) TestRemoteDestinationUnreachable(c *gc.C) {
	s.PatchValue(backup.ProbeDelay, time.Millisecond)
	probed := 0
	s.PatchValue(backup.StatDir, func(string) error {
		probed++
		return errors.New("no route to host")
	})
	err := backup.CheckDestination("//nas/backups/web01", clock.WallClock)
	c.Check(err, jc.ErrorIs, backup.ErrDestinationUnreachable)
	c.Check(err, gc.ErrorMatches, `"//nas/backups": no route to host: destination unreachable`)
	c.Check(probed, gc.Equals, 3)
}

func (s *preflightSuite) TestRemoteDestinationRecovers(c *gc.C) {
	s.PatchValue(backup.ProbeDelay, time.Millisecond)
	probed := 0
	s.PatchValue(backup.StatDir, func(string) error {
		probed++
		if probed < 3 {
			return errors.New("no route to host")
		}
		return nil
	})
	err := backup.CheckDestination("//nas/backups/web01", clock.WallClock)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(probed, gc.Equals, 3)
}
