/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Connect/disconnect hook configuration (section 6: actions.yml)
 */

package hooks

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "adbr-server"
	configFileName = "actions.yml"
)

// Action is one named shell command, run with {serial} substituted
// for the triggering device's serial number
type Action struct {
	ID  string `yaml:"id"`
	Cmd string `yaml:"cmd"`
}

// DeviceActions are the connect/disconnect actions scoped to one
// specific serial, layered on top of the global ones
type DeviceActions struct {
	Connect    []Action `yaml:"connect"`
	Disconnect []Action `yaml:"disconnect"`
}

// GlobalActions run for every device's connect/disconnect transition
type GlobalActions struct {
	Connect    []Action `yaml:"connect"`
	Disconnect []Action `yaml:"disconnect"`
}

// Config is the full actions.yml document: global actions plus a
// per-serial override map
type Config struct {
	Global  GlobalActions            `yaml:"global"`
	Devices map[string]DeviceActions `yaml:"devices"`
}

// ConfigPath returns the platform config directory's actions.yml path
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}

// Load reads and parses actions.yml, returning an empty Config (no
// actions configured) if the file doesn't exist yet
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{Devices: make(map[string]DeviceActions)}, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Devices == nil {
		cfg.Devices = make(map[string]DeviceActions)
	}
	return &cfg, nil
}
