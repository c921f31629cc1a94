/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Program configuration
 */

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/xDvir/adbr-server/internal/logging"
)

// Configuration represents the program configuration, loaded from
// adbr-server.conf
type Configuration struct {
	// [network]
	ListenAddress string // [network] listen-address; the client listener's address comes from the command line, not from this field
	ListenPort    int    // Client-facing TCP port, default 5037

	// [usb]
	VendorAllowList  []uint16      // If non-empty, only these USB vendor IDs are scanned
	ScanInterval     uint          // [usb] scan-interval, milliseconds; DiscoveryLoop polls at its own fixed 1 s interval and does not read it
	InterfaceClass   uint          // ADB interface class, default 0xff
	InterfaceSubtype uint          // ADB interface subclass, default 0x42
	InterfaceProto   uint          // ADB interface protocol, default 0x01

	// [logging]
	DeviceLog       string // Log mode for per-device logs: "file", "console", "disable"
	MainLog         string // Log mode for the main daemon log
	ConsoleLog      string // Log mode for console output
	LogLevel        logging.LogLevel
	ConsoleColor    bool
	MaxFileSize     int64
	MaxBackupFiles  uint

	// [auth]
	KeyDir string // Directory holding the ADB RSA key pair (adbkey/adbkey.pub)

	// [hooks]
	ActionsFile string // [hooks] actions-file; hooks.Load reads actions.yml from os.UserConfigDir and does not consult it
}

// Conf is the default configuration, updated by Load
var Conf = Configuration{
	ListenPort:       5037,
	ScanInterval:     1000,
	InterfaceClass:   0xff,
	InterfaceSubtype: 0x42,
	InterfaceProto:   0x01,
	DeviceLog:        "file",
	MainLog:          "file",
	ConsoleLog:       "disable",
	LogLevel:         logging.LogAll,
	ConsoleColor:     true,
	MaxFileSize:      logging.LogMaxFileSize,
	MaxBackupFiles:   logging.LogMaxBackupFiles,
}

// Load loads the configuration from the first adbr-server.conf found
// among the standard search paths, then applies it on top of the
// compiled-in defaults
func Load() error {
	for _, dir := range confDirs() {
		path := filepath.Join(dir, "adbr-server.conf")
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return nil
}

// LoadFile loads the configuration from a specific file path
func LoadFile(path string) error {
	ini, err := OpenIniFile(path)
	if err != nil {
		return err
	}
	defer ini.Close()

	conf := Conf

	for {
		rec, err := ini.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		err = confLoadRecord(&conf, rec)
		if err != nil {
			return err
		}
	}

	Conf = conf
	return nil
}

func confLoadRecord(conf *Configuration, rec *IniRecord) error {
	switch {
	case rec.Section == "network" && rec.Key == "listen-address":
		conf.ListenAddress = rec.Value
	case rec.Section == "network" && rec.Key == "listen-port":
		return rec.LoadIPPort(&conf.ListenPort)

	case rec.Section == "usb" && rec.Key == "vendor-allow":
		return confLoadVendorList(conf, rec)
	case rec.Section == "usb" && rec.Key == "scan-interval":
		return rec.LoadUint(&conf.ScanInterval)

	case rec.Section == "logging" && rec.Key == "device-log":
		conf.DeviceLog = rec.Value
	case rec.Section == "logging" && rec.Key == "main-log":
		conf.MainLog = rec.Value
	case rec.Section == "logging" && rec.Key == "console-log":
		conf.ConsoleLog = rec.Value
	case rec.Section == "logging" && rec.Key == "log-level":
		return rec.LoadLogLevel(&conf.LogLevel)
	case rec.Section == "logging" && rec.Key == "console-color":
		return rec.LoadNamedBool(&conf.ConsoleColor, "false", "true")
	case rec.Section == "logging" && rec.Key == "max-file-size":
		return rec.LoadSize(&conf.MaxFileSize)
	case rec.Section == "logging" && rec.Key == "max-backup-files":
		return rec.LoadUintRange(&conf.MaxBackupFiles, 0, 100)

	case rec.Section == "auth" && rec.Key == "key-dir":
		conf.KeyDir = rec.Value

	case rec.Section == "hooks" && rec.Key == "actions-file":
		conf.ActionsFile = rec.Value
	}

	return nil
}

func confLoadVendorList(conf *Configuration, rec *IniRecord) error {
	var id uint
	saved := rec.Value
	err := rec.LoadUintRange(&id, 0, 0xffff)
	rec.Value = saved
	if err != nil {
		return err
	}
	conf.VendorAllowList = append(conf.VendorAllowList, uint16(id))
	return nil
}

// confDirs returns the ordered list of directories searched for
// adbr-server.conf
func confDirs() []string {
	dirs := []string{PathConfDir}

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	return dirs
}

// KeyDirOrDefault returns the directory used to store the ADB auth key
// pair, honoring Conf.KeyDir if set
func KeyDirOrDefault() string {
	if Conf.KeyDir != "" {
		return Conf.KeyDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "Android")
		}
	}

	return filepath.Join(home, ".android")
}

// String renders the configuration for diagnostic output
func (conf Configuration) String() string {
	return fmt.Sprintf("listen=%s:%d usb-scan=%dms key-dir=%s",
		conf.ListenAddress, conf.ListenPort, conf.ScanInterval, KeyDirOrDefault())
}
