/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Sync frame parsing and DENT/DONE buffering arithmetic
 */

package handlers

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestReadSyncFrameQuit(t *testing.T) {
	r := bytes.NewReader(syncTagQUIT[:])
	tag, payload, err := readSyncFrame(r)
	if err != nil {
		t.Fatalf("readSyncFrame: %s", err)
	}
	if tag != syncTagQUIT || payload != nil {
		t.Errorf("readSyncFrame(QUIT) = %v, %v", tag, payload)
	}
}

func TestReadSyncFrameStatCarriesPath(t *testing.T) {
	r := bytes.NewReader(packSyncCommand(syncTagSTAT, "/sdcard/file"))
	tag, payload, err := readSyncFrame(r)
	if err != nil {
		t.Fatalf("readSyncFrame: %s", err)
	}
	if tag != syncTagSTAT || string(payload) != "/sdcard/file" {
		t.Errorf("readSyncFrame(STAT) = %v, %q", tag, payload)
	}
}

func TestReadSyncFrameDataCarriesU32(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(syncTagDATA[:])
	binary.Write(&buf, binary.LittleEndian, uint32(42))

	tag, payload, err := readSyncFrame(&buf)
	if err != nil {
		t.Fatalf("readSyncFrame: %s", err)
	}
	if tag != syncTagDATA || binary.LittleEndian.Uint32(payload) != 42 {
		t.Errorf("readSyncFrame(DATA) = %v, %v", tag, payload)
	}
}

func buildDent(name string) []byte {
	buf := make([]byte, dentHeaderSize)
	nameLen := make([]byte, dentNameLengthSize)
	binary.LittleEndian.PutUint32(nameLen, uint32(len(name)))
	buf = append(buf, nameLen...)
	buf = append(buf, name...)
	full := append(syncTagDENT[:], buf...)
	return full
}

func TestDentEntrySizeIncompleteReturnsZero(t *testing.T) {
	entry := buildDent("a")
	partial := entry[:len(entry)-1]

	size, err := dentEntrySize(partial, 0)
	if err != nil {
		t.Fatalf("dentEntrySize: %s", err)
	}
	if size != 0 {
		t.Errorf("dentEntrySize(partial) = %d, want 0", size)
	}
}

func TestDentEntrySizeComplete(t *testing.T) {
	entry := buildDent("bb")

	size, err := dentEntrySize(entry, 0)
	if err != nil {
		t.Fatalf("dentEntrySize: %s", err)
	}
	if size != len(entry) {
		t.Errorf("dentEntrySize(complete) = %d, want %d", size, len(entry))
	}
}

// TestSyncListTermination reproduces, on a local copy of the loop, the
// DENT/DENT/DONE buffer walk that handleList performs on a single
// accumulated chunk: two
// DENT entries in full are recognized and ready to forward, leaving
// DONE pending at the head of what remains in the buffer.
func TestSyncListTermination(t *testing.T) {
	var stream []byte
	stream = append(stream, buildDent("a")...)
	stream = append(stream, buildDent("bb")...)
	stream = append(stream, syncTagDONE[:]...)

	var forwarded [][]byte
	buffer := stream
	index := 0
	for index < len(buffer) {
		if len(buffer)-index < 4 {
			break
		}
		var tag [4]byte
		copy(tag[:], buffer[index:index+4])

		if tag == syncTagDONE {
			break
		}

		size, err := dentEntrySize(buffer, index)
		if err != nil {
			t.Fatalf("dentEntrySize: %s", err)
		}
		if size == 0 {
			break
		}
		forwarded = append(forwarded, buffer[index:index+size])
		index += size
	}

	if len(forwarded) != 2 {
		t.Fatalf("forwarded %d records, want 2", len(forwarded))
	}
	if !bytes.Equal(forwarded[0], buildDent("a")) || !bytes.Equal(forwarded[1], buildDent("bb")) {
		t.Errorf("forwarded records = %v", forwarded)
	}

	remaining := buffer[index:]
	if !bytes.Equal(remaining, syncTagDONE[:]) {
		t.Errorf("remaining buffer = %v, want DONE", remaining)
	}
}

func TestParseSendSpecValid(t *testing.T) {
	path, mode, err := parseSendSpec("/sdcard/file,33261")
	if err != nil {
		t.Fatalf("parseSendSpec: %s", err)
	}
	if path != "/sdcard/file" || mode != 33261 {
		t.Errorf("parseSendSpec = %q, %d", path, mode)
	}
}

func TestParseSendSpecMissingComma(t *testing.T) {
	if _, _, err := parseSendSpec("/sdcard/file"); err == nil {
		t.Error("parseSendSpec without ',' should fail")
	}
}

func TestExpectSyncReplyFail(t *testing.T) {
	data := append(syncTagFAIL[:], []byte("no such file")...)
	err := expectSyncReply(data, syncTagSTAT)
	if err == nil {
		t.Error("expectSyncReply(FAIL) should return an error")
	}
}

func TestExpectSyncReplyMatch(t *testing.T) {
	data := append(syncTagSTAT[:], []byte("...")...)
	if err := expectSyncReply(data, syncTagSTAT); err != nil {
		t.Errorf("expectSyncReply(STAT) = %s, want nil", err)
	}
}
