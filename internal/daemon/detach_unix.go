//go:build !windows

/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Detaching standard file descriptors once a backgrounded daemon has
 * finished its startup; this is the signal Background's caller waits
 * for, since it means stdout/stderr's write ends (inherited from the
 * parent's pipe) are now closed
 */

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// CloseStdInOutErr redirects stdin/stdout/stderr to /dev/null
func CloseStdInOutErr() error {
	nul, err := syscall.Open(os.DevNull, syscall.O_RDONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %q: %s", os.DevNull, err)
	}
	defer syscall.Close(nul)

	syscall.Dup2(nul, 0)
	syscall.Dup2(nul, 1)
	syscall.Dup2(nul, 2)

	return nil
}
