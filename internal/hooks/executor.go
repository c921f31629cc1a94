/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Runs the global and per-device actions configured for a connect or
 * disconnect event
 */

package hooks

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/xDvir/adbr-server/internal/logging"
)

const (
	ConnectEvent    = "connect"
	DisconnectEvent = "disconnect"
)

// Executor runs actions.yml's commands for each connect/disconnect
// transition, reloading the config on every dispatch so edits take
// effect without a daemon restart
type Executor struct {
	log *logging.Logger
}

// NewExecutor creates an Executor that logs through log
func NewExecutor(log *logging.Logger) *Executor {
	return &Executor{log: log}
}

// Dispatch runs every matching global action, then every matching
// per-serial action, for event on serial. The first command that
// fails stops the rest, matching execute_action's short-circuiting.
func (e *Executor) Dispatch(serial, event string) {
	cfg, err := Load()
	if err != nil {
		e.log.Error('!', "hooks: failed to load actions configuration: %s", err)
		return
	}

	global := actionsFor(cfg.Global.Connect, cfg.Global.Disconnect, event)
	for _, action := range global {
		if err := e.run(action, serial); err != nil {
			e.log.Error('!', "hooks: global %s action %q failed: %s", event, action.ID, err)
			return
		}
	}

	if dev, ok := cfg.Devices[serial]; ok {
		for _, action := range actionsFor(dev.Connect, dev.Disconnect, event) {
			if err := e.run(action, serial); err != nil {
				e.log.Error('!', "hooks: device %s %s action %q failed: %s", serial, event, action.ID, err)
				return
			}
		}
	}
}

func actionsFor(connect, disconnect []Action, event string) []Action {
	if event == ConnectEvent {
		return connect
	}
	return disconnect
}

func (e *Executor) run(action Action, serial string) error {
	command := strings.ReplaceAll(action.Cmd, "{serial}", serial)
	e.log.Debug(' ', "hooks: executing: %s", command)

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", command)
	} else {
		cmd = exec.Command("sh", "-c", command)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
