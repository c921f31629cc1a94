/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * MonitorLoop status transitions
 */

package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
	"github.com/xDvir/adbr-server/internal/logging"
)

// pastMonitored backdates dev's monitoring clock so MonitorLoop treats
// it as due for a check on its very first pass.
func pastMonitored(dev *Device) {
	dev.mu.Lock()
	dev.lastMonitored = time.Now().Add(-time.Hour)
	dev.mu.Unlock()
}

func newUnreachableDevice(serial string, status Status) *Device {
	conn := adbconn.NewConn(nil, logging.NewLogger())
	return NewDevice(serial, conn, true, status)
}

func TestMonitorLoopDropsAvailableDeviceOnFailedVerify(t *testing.T) {
	reg := New()
	dev := newUnreachableDevice("S1", StatusAvailable)
	pastMonitored(dev)
	reg.Insert(dev)

	var mu sync.Mutex
	var events []string
	hook := HookFunc(func(serial, event string) {
		mu.Lock()
		events = append(events, serial+":"+event)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go MonitorLoop(ctx, reg, logging.NewLogger(), hook)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Get("S1"); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if _, ok := reg.Get("S1"); ok {
		t.Fatal("device with failed verify should have been removed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0] != "S1:"+DisconnectEvent {
		t.Errorf("hook events = %v, want [S1:disconnect]", events)
	}
}

func TestMonitorLoopDropsOfflineDeviceForRetry(t *testing.T) {
	reg := New()
	dev := newUnreachableDevice("S2", StatusOffline)
	dev.SetStatus(StatusOffline, "read error")
	pastMonitored(dev)
	reg.Insert(dev)

	ctx, cancel := context.WithCancel(context.Background())
	go MonitorLoop(ctx, reg, logging.NewLogger(), nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Get("S2"); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if !reg.IsNewDevice("S2") {
		t.Error("offline device should be dropped so discovery retries it")
	}
}
