//go:build windows

/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Single-instance lock file -- Windows version
 */

package daemon

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// ErrAlreadyRunning is returned by Lock when another instance already
// holds the lock file
var ErrAlreadyRunning = errors.New("adbr-server already running")

// Lock opens and exclusively locks PathLockFile, creating PathLockDir
// if necessary.
func Lock() (*os.File, error) {
	if err := os.MkdirAll(PathLockDir, 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(PathLockFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	ol := new(windows.Overlapped)
	err = windows.LockFileEx(windows.Handle(file.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol)
	if err != nil {
		file.Close()
		return nil, ErrAlreadyRunning
	}

	return file, nil
}

// Unlock releases a lock obtained by Lock
func Unlock(file *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(file.Fd()), 0, 1, 0, ol)
	file.Close()
	return err
}
