/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Standard process-wide loggers
 */

package logging

// Standard loggers, mirroring the teacher's Log/Console/ColorConsole trio
var (
	// Log is the default, main-log logger
	Log = NewLogger().ToConsole()

	// Console always writes to the console
	Console = NewLogger().ToConsole()

	// ColorConsole writes to the console using ANSI colors, if available
	ColorConsole = NewLogger().ToColorConsole()
)
