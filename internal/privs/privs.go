//go:build !windows

// Package privs implements the two privilege-reduction steps the daemon
// performs after opening its privileged sockets: chrooting into a
// directory and dropping to an unprivileged user/group. There's no
// ecosystem library in the retrieval pack wrapping these raw Unix
// syscalls, so this stays a thin standard-library adapter (see DESIGN.md).
package privs

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"
)

// Chroot changes the process root to path and the working directory into
// it. Callers must have already opened every socket and file they'll need
// afterward.
func Chroot(path string) error {
	if err := syscall.Chroot(path); err != nil {
		return fmt.Errorf("chroot %s: %w", path, err)
	}
	if err := syscall.Chdir("/"); err != nil {
		return fmt.Errorf("chdir / after chroot: %w", err)
	}
	return nil
}

// LookupUser resolves username to a (uid, gid) pair, accepting either a
// numeric uid or a name known to the system's user database.
func LookupUser(username string) (uid, gid int, err error) {
	u, perr := user.Lookup(username)
	if perr != nil {
		if _, nerr := strconv.Atoi(username); nerr == nil {
			u, perr = user.LookupId(username)
		}
	}
	if perr != nil {
		return 0, 0, fmt.Errorf("lookup user %s: %w", username, perr)
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse uid for %s: %w", username, err)
	}
	gid, err = strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse gid for %s: %w", username, err)
	}
	return uid, gid, nil
}

// DropPrivileges sets the process's group and user ID, group first so the
// privileged uid is still in effect when the gid change is made.
func DropPrivileges(uid, gid int) error {
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}
	return nil
}
