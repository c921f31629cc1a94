/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Tests for store.go
 */

package adbproto

import "testing"

func TestStoreWildcardMatch(t *testing.T) {
	s := NewStore()
	s.Put(7, 3, CmdOKAY, []byte("x"))

	if _, a0, a1, _, ok := s.Get(0, 3, []Command{CmdOKAY}); !ok || a0 != 7 || a1 != 3 {
		t.Fatalf("Get(0,3): got ok=%v a0=%d a1=%d, want ok=true a0=7 a1=3", ok, a0, a1)
	}

	s.Put(7, 3, CmdOKAY, []byte("y"))
	if _, a0, a1, _, ok := s.Get(7, 0, []Command{CmdOKAY}); !ok || a0 != 7 || a1 != 3 {
		t.Fatalf("Get(7,0): got ok=%v a0=%d a1=%d, want ok=true a0=7 a1=3", ok, a0, a1)
	}

	s.Put(7, 3, CmdOKAY, []byte("z"))
	if _, _, _, _, ok := s.Get(7, 3, []Command{CmdWRTE}); ok {
		t.Fatal("Get(7,3,[WRTE]) should not match a queued OKAY")
	}
}

func TestStoreFIFOOrder(t *testing.T) {
	s := NewStore()
	s.Put(1, 1, CmdWRTE, []byte("first"))
	s.Put(1, 1, CmdWRTE, []byte("second"))

	_, _, _, data, ok := s.Get(1, 1, nil)
	if !ok || string(data) != "first" {
		t.Fatalf("first Get: got %q ok=%v, want \"first\"", data, ok)
	}

	_, _, _, data, ok = s.Get(1, 1, nil)
	if !ok || string(data) != "second" {
		t.Fatalf("second Get: got %q ok=%v, want \"second\"", data, ok)
	}

	if _, _, _, _, ok = s.Get(1, 1, nil); ok {
		t.Fatal("expected the queue to be drained")
	}
}

func TestStoreClearOnClose(t *testing.T) {
	s := NewStore()
	s.Put(5, 9, CmdWRTE, []byte("data"))
	s.Clear(5, 9)

	if _, _, _, _, ok := s.Get(5, 9, nil); ok {
		t.Fatal("Get after Clear should find nothing")
	}
}

func TestStoreNoMatch(t *testing.T) {
	s := NewStore()
	if _, _, _, _, ok := s.Get(1, 1, nil); ok {
		t.Fatal("Get on an empty store should not match")
	}
}
