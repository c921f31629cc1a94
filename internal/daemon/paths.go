/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Common paths for process lifecycle management
 */

package daemon

import "os"

const (
	// PathProgState is the directory holding runtime state: the lock
	// file and the control socket
	PathProgState = "/var/adbr-server"

	// PathLockDir is the directory containing the lock file
	PathLockDir = PathProgState + "/lock"

	// PathLockFile prevents more than one daemon instance from running
	PathLockFile = PathLockDir + "/adbr-server.lock"

	// PathControlSocket is the Unix domain socket used by kill-server/
	// restart-server to reach the running daemon
	PathControlSocket = PathProgState + "/adbr-server.ctrl"
)

// ExecutablePath resolves the path of the running binary, used by
// Background to re-exec itself detached from the controlling terminal
func ExecutablePath() (string, error) {
	return os.Executable()
}
