/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * host:forward: norebind rejection / rebind replacement
 */

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/xDvir/adbr-server/internal/handlers"
)

func TestSetForwardNoRebindRejectsExistingLocal(t *testing.T) {
	dev := newTestDevice("S1", StatusAvailable)

	info, err := handlers.ParseForwardInfo("tcp:0;tcp:1")
	if err != nil {
		t.Fatalf("ParseForwardInfo: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := SetForward(ctx, dev, info, false); err != nil {
		t.Fatalf("initial SetForward: %s", err)
	}
	defer RemoveAllForwards(dev)

	if err := SetForward(ctx, dev, info, true); err == nil {
		t.Error("SetForward with noRebind against an existing local spec should fail")
	}

	if _, ok := dev.GetPortForward(info.Local.String()); !ok {
		t.Error("rejected no-rebind attempt should leave the original forward in place")
	}
}

func TestSetForwardRebindReplacesExisting(t *testing.T) {
	dev := newTestDevice("S1", StatusAvailable)

	info, err := handlers.ParseForwardInfo("tcp:0;tcp:1")
	if err != nil {
		t.Fatalf("ParseForwardInfo: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := SetForward(ctx, dev, info, false); err != nil {
		t.Fatalf("initial SetForward: %s", err)
	}
	first, _ := dev.GetPortForward(info.Local.String())

	if err := SetForward(ctx, dev, info, false); err != nil {
		t.Fatalf("rebind SetForward: %s", err)
	}
	defer RemoveAllForwards(dev)

	second, ok := dev.GetPortForward(info.Local.String())
	if !ok {
		t.Fatal("rebind should leave a forward registered")
	}
	if second == first {
		t.Error("rebind should have replaced the forward, not kept the original")
	}

	time.Sleep(10 * time.Millisecond)
}
