/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Device registry (C11): one entry per known serial, tracking its
 * connection, status, and active forwards/reverses
 */

package registry

import (
	"sync"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
	"github.com/xDvir/adbr-server/internal/handlers"
)

// Status is a device's current reachability, mirroring the three
// states "adb devices" reports
type Status int

const (
	StatusAvailable Status = iota
	StatusUnauthorized
	StatusOffline
)

// String renders the status the way "adb devices" prints it
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "device"
	case StatusUnauthorized:
		return "unauthorized"
	default:
		return "offline"
	}
}

// Monitoring intervals: how long after its last check a device is
// checked again. A healthy device is re-verified most often (2 s); an
// unauthorized one is dropped for a reconnect attempt after 5 s and an
// offline one after 20 s — mirrored from original_source's
// DEVICE_*_RECONNECT_TIME_SECONDS constants.
const (
	AvailableVerifyInterval       = 2 * time.Second
	UnauthorizedReconnectInterval = 5 * time.Second
	OfflineReconnectInterval      = 20 * time.Second
)

// Device is one known serial: its connection, current status, and the
// forwards/reverses registered against it
type Device struct {
	Serial string
	Conn   *adbconn.Conn
	IsUSB  bool

	mu             sync.Mutex
	status         Status
	offlineReason  string
	lastMonitored  time.Time
	monitorEvery   time.Duration
	forwards       map[string]*handlers.Forward
	reverses       map[string]*handlers.PortReverse
}

// NewDevice wraps a freshly-authenticated connection with the given
// initial status
func NewDevice(serial string, conn *adbconn.Conn, isUSB bool, status Status) *Device {
	d := &Device{
		Serial:        serial,
		Conn:          conn,
		IsUSB:         isUSB,
		status:        status,
		lastMonitored: time.Now(),
		forwards:      make(map[string]*handlers.Forward),
		reverses:      make(map[string]*handlers.PortReverse),
	}
	d.monitorEvery = d.intervalFor(status)
	return d
}

func (d *Device) intervalFor(status Status) time.Duration {
	switch status {
	case StatusAvailable:
		return AvailableVerifyInterval
	case StatusUnauthorized:
		return UnauthorizedReconnectInterval
	default:
		return OfflineReconnectInterval
	}
}

// Status reports the device's current status and, if offline, the reason
func (d *Device) Status() (Status, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, d.offlineReason
}

// SetStatus transitions the device's status, resetting its monitoring interval
func (d *Device) SetStatus(status Status, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
	d.offlineReason = reason
	d.monitorEvery = d.intervalFor(status)
}

// MonitoringIntervalPassed reports whether this device is due another
// liveness check, per its status-scaled interval
func (d *Device) MonitoringIntervalPassed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.lastMonitored) >= d.monitorEvery
}

// UpdateLastMonitored resets the monitoring clock to now
func (d *Device) UpdateLastMonitored() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastMonitored = time.Now()
}

// CloseGracefully stops every forward and reverse registered against
// this device, without touching the device connection itself
func (d *Device) CloseGracefully() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.forwards {
		f.Stop()
	}
	for _, r := range d.reverses {
		r.Stop()
	}
}

// HasPortForward reports whether a forward is already registered for
// the given local spec key
func (d *Device) HasPortForward(localKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.forwards[localKey]
	return ok
}

// GetPortForward returns the forward registered under localKey, if any
func (d *Device) GetPortForward(localKey string) (*handlers.Forward, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.forwards[localKey]
	return f, ok
}

// InsertPortForward registers (or replaces) the forward under localKey
func (d *Device) InsertPortForward(localKey string, f *handlers.Forward) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forwards[localKey] = f
}

// RemovePortForward drops the forward registered under localKey
func (d *Device) RemovePortForward(localKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.forwards, localKey)
}

// AllPortForwards returns a snapshot of (localKey, Forward) pairs
func (d *Device) AllPortForwards() map[string]*handlers.Forward {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]*handlers.Forward, len(d.forwards))
	for k, v := range d.forwards {
		out[k] = v
	}
	return out
}

// HasPortReverse reports whether a reverse is already registered for
// the given device-spec key
func (d *Device) HasPortReverse(deviceKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.reverses[deviceKey]
	return ok
}

// InsertPortReverse registers (or replaces) the reverse under deviceKey
func (d *Device) InsertPortReverse(deviceKey string, r *handlers.PortReverse) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reverses[deviceKey] = r
}

// RemovePortReverse drops the reverse registered under deviceKey
func (d *Device) RemovePortReverse(deviceKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.reverses, deviceKey)
}

// AllPortReverses returns a snapshot of (deviceKey, PortReverse) pairs
func (d *Device) AllPortReverses() map[string]*handlers.PortReverse {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]*handlers.PortReverse, len(d.reverses))
	for k, v := range d.reverses {
		out[k] = v
	}
	return out
}
