/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Terminal detection for colorized console logging
 */

package logging

import (
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// IsTerminal reports whether file refers to a terminal. The teacher
// binding does this with a cgo call to isatty(3); golang.org/x/term
// gives the same answer without cgo.
func IsTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}

func pathDirOf(path string) string {
	return filepath.Dir(path)
}
