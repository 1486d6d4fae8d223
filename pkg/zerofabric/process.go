package zerofabric

import "golang.org/x/sys/unix"

// processIsAlive performs a non-destructive liveness check on pid
// using signal 0, the POSIX idiom for "does this process exist and
// am I allowed to signal it" without actually delivering a signal
// (§5 "Crash safety").
func processIsAlive(pid uint32) bool {
	if pid == 0 {
		return false
	}
	err := unix.Kill(int(pid), 0)
	if err == nil {
		return true
	}
	// EPERM still means the process exists, just owned by someone else.
	return err == unix.EPERM
}
