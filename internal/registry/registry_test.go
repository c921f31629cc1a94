/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Registry lookup/listing and device status-text rendering
 */

package registry

import (
	"context"
	"testing"

	"github.com/xDvir/adbr-server/internal/adbconn"
	"github.com/xDvir/adbr-server/internal/logging"
)

// blockingTransport never yields data, standing in for an idle USB
// connection in tests that only exercise registry bookkeeping
type blockingTransport struct{}

func (blockingTransport) BulkWrite(ctx context.Context, data []byte) error { return nil }
func (blockingTransport) BulkRead(ctx context.Context, buf []byte) error {
	<-ctx.Done()
	return ctx.Err()
}
func (blockingTransport) Close() error { return nil }

func newTestDevice(serial string, status Status) *Device {
	conn := adbconn.NewConn(blockingTransport{}, logging.NewLogger())
	return NewDevice(serial, conn, true, status)
}

func TestRegistryReserveThenInsert(t *testing.T) {
	reg := New()

	if !reg.IsNewDevice("S1") {
		t.Fatal("fresh registry should report S1 as new")
	}

	reg.Reserve("S1")
	if reg.IsNewDevice("S1") {
		t.Error("reserved serial should no longer be new")
	}
	if _, ok := reg.Get("S1"); ok {
		t.Error("Get should not return a reserved (nil) entry")
	}

	dev := newTestDevice("S1", StatusAvailable)
	reg.Insert(dev)

	got, ok := reg.Get("S1")
	if !ok || got != dev {
		t.Errorf("Get(S1) = %v, %v; want %v, true", got, ok, dev)
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := New()
	reg.Insert(newTestDevice("S1", StatusAvailable))
	reg.Remove("S1")

	if !reg.IsNewDevice("S1") {
		t.Error("removed serial should be new again")
	}
}

func TestListTextEmptyRegistry(t *testing.T) {
	reg := New()
	if got := reg.ListText(); got != "No devices found" {
		t.Errorf("ListText on empty registry = %q", got)
	}
}

func TestListTextSortedWithOfflineReason(t *testing.T) {
	reg := New()
	reg.Insert(newTestDevice("B", StatusAvailable))

	offline := newTestDevice("A", StatusOffline)
	offline.SetStatus(StatusOffline, "connection reset")
	reg.Insert(offline)

	want := "A offline connection reset\nB device\n"
	if got := reg.ListText(); got != want {
		t.Errorf("ListText = %q, want %q", got, want)
	}
}

func TestAllSkipsReservedEntries(t *testing.T) {
	reg := New()
	reg.Reserve("pending")
	reg.Insert(newTestDevice("ready", StatusAvailable))

	all := reg.All()
	if len(all) != 1 || all[0].Serial != "ready" {
		t.Errorf("All() = %+v, want only [ready]", all)
	}
}
