/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Tests for message.go
 */

package adbproto

import (
	"bytes"
	"testing"
)

func TestChecksum(t *testing.T) {
	type testData struct {
		data []byte
		want uint32
	}

	tests := []testData{
		{nil, 0},
		{[]byte{}, 0},
		{[]byte{1, 2, 3}, 6},
		{[]byte{0xff, 0xff}, 0x1fe},
	}

	for _, test := range tests {
		m := NewMessage(CmdWRTE, 1, 2, test.data)
		if m.Checksum() != test.want {
			t.Errorf("Checksum(%v): got %d, want %d", test.data, m.Checksum(), test.want)
		}
	}
}

func TestMagic(t *testing.T) {
	m := NewMessage(CmdCNXN, 0, 0, nil)
	want := uint32(CmdCNXN) ^ bitwiseInvertMask
	if m.Magic() != want {
		t.Errorf("Magic(): got %#x, want %#x", m.Magic(), want)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	type testData struct {
		cmd  Command
		arg0 uint32
		arg1 uint32
		data []byte
	}

	tests := []testData{
		{CmdCNXN, 0x01000000, 0x00100000, []byte("host::localhost\x00")},
		{CmdOPEN, 7, 0, []byte("shell:\x00")},
		{CmdWRTE, 7, 3, nil},
		{CmdCLSE, 7, 3, bytes.Repeat([]byte{0xAB}, 4096)},
	}

	for _, test := range tests {
		m := NewMessage(test.cmd, test.arg0, test.arg1, test.data)
		packed := m.Pack()

		hdr, err := UnpackHeader(packed[:HeaderSize])
		if err != nil {
			t.Fatalf("UnpackHeader: %s", err)
		}

		if hdr.Command != test.cmd {
			t.Errorf("command: got %s, want %s", hdr.Command, test.cmd)
		}
		if hdr.Arg0 != test.arg0 || hdr.Arg1 != test.arg1 {
			t.Errorf("arg0/arg1: got (%d,%d), want (%d,%d)", hdr.Arg0, hdr.Arg1, test.arg0, test.arg1)
		}
		if int(hdr.DataLen) != len(test.data) {
			t.Errorf("data_len: got %d, want %d", hdr.DataLen, len(test.data))
		}
		if hdr.Checksum != m.Checksum() {
			t.Errorf("checksum: got %d, want %d", hdr.Checksum, m.Checksum())
		}

		payload := packed[HeaderSize:]
		if !VerifyChecksum(payload, hdr.Checksum) {
			t.Error("VerifyChecksum rejected a freshly packed payload")
		}
		if !bytes.Equal(payload, test.data) {
			t.Errorf("payload: got %v, want %v", payload, test.data)
		}

		wantMagic := uint32(test.cmd) ^ bitwiseInvertMask
		gotMagic := binaryMagic(packed)
		if gotMagic != wantMagic {
			t.Errorf("magic: got %#x, want %#x", gotMagic, wantMagic)
		}
	}
}

func TestUnpackHeaderTooShort(t *testing.T) {
	_, err := UnpackHeader(make([]byte, HeaderSize-1))
	if err == nil {
		t.Error("expected an error unpacking a truncated header")
	}
}

func TestConnectBanner(t *testing.T) {
	m := NewConnect("myhost")
	want := "host::myhost\x00"
	if string(m.Data) != want {
		t.Errorf("banner: got %q, want %q", m.Data, want)
	}
	if m.Arg0 != ConnectVersion || m.Arg1 != ConnectMaxData {
		t.Errorf("connect args: got (%#x,%#x), want (%#x,%#x)",
			m.Arg0, m.Arg1, ConnectVersion, ConnectMaxData)
	}
}

func binaryMagic(packed []byte) uint32 {
	return uint32(packed[20]) | uint32(packed[21])<<8 |
		uint32(packed[22])<<16 | uint32(packed[23])<<24
}
