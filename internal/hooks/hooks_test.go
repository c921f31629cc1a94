/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * actions.yml parsing and Dispatch's run order / short-circuit
 */

package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xDvir/adbr-server/internal/logging"
)

func writeConfig(t *testing.T, yamlText string) {
	t.Helper()

	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)

	path := filepath.Join(configDir, configDirName, configFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(yamlText), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingConfigIsEmpty(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if len(cfg.Global.Connect) != 0 || len(cfg.Devices) != 0 {
		t.Errorf("Load on missing file = %+v, want empty config", cfg)
	}
}

func TestLoadParsesGlobalAndDeviceActions(t *testing.T) {
	writeConfig(t, `
global:
  connect:
    - id: notify
      cmd: echo connected {serial}
  disconnect: []
devices:
  ABC123:
    connect:
      - id: mount
        cmd: mount-device {serial}
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %s", err)
	}

	if len(cfg.Global.Connect) != 1 || cfg.Global.Connect[0].ID != "notify" {
		t.Errorf("Global.Connect = %+v", cfg.Global.Connect)
	}

	dev, ok := cfg.Devices["ABC123"]
	if !ok || len(dev.Connect) != 1 || dev.Connect[0].Cmd != "mount-device {serial}" {
		t.Errorf("Devices[ABC123] = %+v, ok=%v", dev, ok)
	}
}

func TestDispatchRunsGlobalThenDeviceActionsInOrder(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "order.txt")

	writeConfig(t, `
global:
  connect:
    - id: g
      cmd: echo global >> `+marker+`
devices:
  SERIAL1:
    connect:
      - id: d
        cmd: echo device >> `+marker+`
`)

	exec := NewExecutor(logging.NewLogger())
	exec.Dispatch("SERIAL1", ConnectEvent)

	got, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %s", err)
	}
	want := "global\ndevice\n"
	if string(got) != want {
		t.Errorf("execution order = %q, want %q", got, want)
	}
}

func TestDispatchStopsAtFirstFailure(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "order.txt")

	writeConfig(t, `
global:
  connect:
    - id: fail
      cmd: exit 1
devices:
  SERIAL1:
    connect:
      - id: never
        cmd: echo should-not-run >> `+marker+`
`)

	exec := NewExecutor(logging.NewLogger())
	exec.Dispatch("SERIAL1", ConnectEvent)

	if _, err := os.Stat(marker); err == nil {
		t.Error("device action ran after global action failed")
	}
}

func TestDispatchUnknownSerialRunsOnlyGlobal(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "order.txt")

	writeConfig(t, `
global:
  disconnect:
    - id: g
      cmd: echo global >> `+marker+`
`)

	exec := NewExecutor(logging.NewLogger())
	exec.Dispatch("UNKNOWN", DisconnectEvent)

	got, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %s", err)
	}
	if string(got) != "global\n" {
		t.Errorf("execution = %q, want %q", got, "global\n")
	}
}
