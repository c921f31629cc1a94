//go:build windows

/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Detaching standard file descriptors once a backgrounded daemon has
 * finished its startup
 */

package daemon

import (
	"fmt"
	"os"
)

// CloseStdInOutErr redirects stdin/stdout/stderr to NUL
func CloseStdInOutErr() error {
	nul, err := os.OpenFile(os.DevNull, os.O_RDONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %q: %s", os.DevNull, err)
	}
	defer nul.Close()

	os.Stdin = nul
	os.Stdout = nul
	os.Stderr = nul

	return nil
}
