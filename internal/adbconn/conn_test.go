/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Tests for conn.go and protocol.go, against an in-memory fake transport
 */

package adbconn

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xDvir/adbr-server/internal/adbproto"
	"github.com/xDvir/adbr-server/internal/usbtransport"
)

// fakeTransport scripts a sequence of inbound packets and records
// outbound writes, standing in for a real USB connection
type fakeTransport struct {
	writes [][]byte
	reads  [][]byte // pre-packed header/payload chunks, consumed in order
}

func (f *fakeTransport) BulkWrite(ctx context.Context, data []byte) error {
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeTransport) BulkRead(ctx context.Context, buf []byte) error {
	if len(f.reads) == 0 {
		<-ctx.Done()
		return usbtransport.ErrTimeout
	}

	chunk := f.reads[0]
	f.reads = f.reads[1:]
	copy(buf, chunk)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func scriptMessage(m *adbproto.Message) [][]byte {
	packed := m.Pack()
	if len(m.Data) == 0 {
		return [][]byte{packed}
	}
	return [][]byte{packed[:adbproto.HeaderSize], packed[adbproto.HeaderSize:]}
}

func TestConnReadExpectedMatchesTransaction(t *testing.T) {
	ft := &fakeTransport{}
	ft.reads = scriptMessage(adbproto.NewMessage(adbproto.CmdOKAY, 5, 7, nil))

	conn := NewConn(ft, nil)
	txn := Transaction{LocalID: 7, RemoteID: 5}

	msg, err := conn.ReadExpected(context.Background(), []adbproto.Command{adbproto.CmdOKAY}, nil, txn, time.Second)
	if err != nil {
		t.Fatalf("ReadExpected: %s", err)
	}
	if msg.Command != adbproto.CmdOKAY {
		t.Errorf("got command %s, want OKAY", msg.Command)
	}
}

func TestConnReadExpectedParksMismatch(t *testing.T) {
	ft := &fakeTransport{}
	ft.reads = append(ft.reads, scriptMessage(adbproto.NewMessage(adbproto.CmdWRTE, 99, 42, []byte("other stream")))...)
	ft.reads = append(ft.reads, scriptMessage(adbproto.NewMessage(adbproto.CmdOKAY, 5, 7, nil))...)

	conn := NewConn(ft, nil)
	txn := Transaction{LocalID: 7, RemoteID: 5}

	msg, err := conn.ReadExpected(context.Background(), []adbproto.Command{adbproto.CmdOKAY}, nil, txn, time.Second)
	if err != nil {
		t.Fatalf("ReadExpected: %s", err)
	}
	if msg.Command != adbproto.CmdOKAY {
		t.Errorf("got command %s, want OKAY", msg.Command)
	}

	// the parked WRTE for the other stream should still be retrievable
	if _, _, _, data, ok := conn.store.Get(99, 42, nil); !ok || string(data) != "other stream" {
		t.Errorf("parked packet not retrievable: ok=%v data=%q", ok, data)
	}
}

func TestConnWriteSplitsHeaderAndPayload(t *testing.T) {
	ft := &fakeTransport{}
	conn := NewConn(ft, nil)

	msg := adbproto.NewMessage(adbproto.CmdWRTE, 1, 2, []byte("payload"))
	if err := conn.Write(context.Background(), msg); err != nil {
		t.Fatalf("Write: %s", err)
	}

	if len(ft.writes) != 2 {
		t.Fatalf("got %d writes, want 2 (header, payload)", len(ft.writes))
	}
	if len(ft.writes[0]) != adbproto.HeaderSize {
		t.Errorf("header write: got %d bytes, want %d", len(ft.writes[0]), adbproto.HeaderSize)
	}
	if !bytes.Equal(ft.writes[1], msg.Data) {
		t.Errorf("payload write: got %v, want %v", ft.writes[1], msg.Data)
	}
}

func TestConnReadClosetreatsTimeoutAsSuccess(t *testing.T) {
	ft := &fakeTransport{}
	conn := NewConn(ft, nil)
	txn := Transaction{LocalID: 1, RemoteID: 2}

	err := conn.ReadClose(context.Background(), txn, 60*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadClose on timeout should succeed, got %s", err)
	}
}

func TestLocalIDAllocatorMonotonicAndWraps(t *testing.T) {
	var a localIDAllocator
	if id := a.next_(); id != 1 {
		t.Fatalf("first id: got %d, want 1", id)
	}

	a.next = 0xfffffffe
	if id := a.next_(); id != 0xffffffff {
		t.Fatalf("id before wrap: got %d, want 0xffffffff", id)
	}
	if id := a.next_(); id != 1 {
		t.Fatalf("id after wrap: got %d, want 1", id)
	}
}

func TestTransactionMatches(t *testing.T) {
	txn := Transaction{LocalID: 7, RemoteID: 0}
	if !txn.Matches(99, 7) {
		t.Error("unknown RemoteID should match any arg0")
	}

	txn.RemoteID = 99
	if !txn.Matches(99, 7) {
		t.Error("known RemoteID should match equal arg0")
	}
	if txn.Matches(100, 7) {
		t.Error("known RemoteID should reject a different arg0")
	}
	if txn.Matches(99, 8) {
		t.Error("wrong arg1 (LocalID) should never match")
	}
}
