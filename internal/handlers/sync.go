/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Sync handler (C8): the ADB sync sub-protocol (STAT/RECV/SEND/LIST/
 * QUIT), relayed over a device stream opened with "sync:"
 */

package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
)

const (
	syncCommand       = "sync:"
	syncMaxChunk      = 64 * 1024
	syncRecvChunkWait = 1 * time.Second
	dentHeaderSize     = 16
	dentNameLengthSize = 4
	dentMinSize        = dentHeaderSize + dentNameLengthSize
)

var (
	syncTagSTAT = [4]byte{'S', 'T', 'A', 'T'}
	syncTagRECV = [4]byte{'R', 'E', 'C', 'V'}
	syncTagSEND = [4]byte{'S', 'E', 'N', 'D'}
	syncTagLIST = [4]byte{'L', 'I', 'S', 'T'}
	syncTagDATA = [4]byte{'D', 'A', 'T', 'A'}
	syncTagDONE = [4]byte{'D', 'O', 'N', 'E'}
	syncTagDENT = [4]byte{'D', 'E', 'N', 'T'}
	syncTagQUIT = [4]byte{'Q', 'U', 'I', 'T'}
	syncTagFAIL = [4]byte{'F', 'A', 'I', 'L'}
)

// HandleSync drives the sync sub-protocol (entered via host command
// "sync:") over client until the client sends QUIT or the connection
// fails
func HandleSync(ctx context.Context, conn *adbconn.Conn, client net.Conn, timeout time.Duration) error {
	txn, err := conn.SendOpen(ctx, syncCommand)
	if err != nil {
		return err
	}
	okay, err := conn.ReadOkay(ctx, txn, timeout)
	if err != nil {
		return err
	}
	txn.RemoteID = okay.Arg0

	for {
		tag, payload, err := readSyncFrame(client)
		if err != nil {
			return err
		}

		switch tag {
		case syncTagSTAT:
			if err := handleStat(ctx, conn, client, txn, string(payload), timeout); err != nil {
				return err
			}
		case syncTagRECV:
			if err := handleRecv(ctx, conn, client, txn, string(payload), timeout); err != nil {
				return err
			}
		case syncTagSEND:
			if err := handleSend(ctx, conn, client, txn, string(payload), timeout); err != nil {
				return err
			}
		case syncTagLIST:
			path := string(payload)
			if path == "" {
				return &SyncError{Reason: "cannot list an empty device path"}
			}
			if err := handleList(ctx, conn, client, txn, path, timeout); err != nil {
				return err
			}
		case syncTagDATA:
			return &SyncError{Reason: "missing prerequisite sync command before DATA transmission"}
		case syncTagDONE:
			return &SyncError{Reason: "missing prerequisite sync command before DONE transmission"}
		case syncTagDENT:
			return &SyncError{Reason: "missing prerequisite sync command before DENT transmission"}
		case syncTagQUIT:
			return handleQuit(ctx, conn, txn, timeout)
		default:
			return &SyncError{Reason: fmt.Sprintf("unknown sync command: %q", tag)}
		}
	}
}

// readSyncFrame reads one 4-byte tag; STAT/RECV/LIST carry a
// <len><path> payload, SEND a <len><path,mode> payload, DATA/DONE a
// bare u32, QUIT nothing
func readSyncFrame(r io.Reader) ([4]byte, []byte, error) {
	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return tag, nil, err
	}

	switch tag {
	case syncTagQUIT:
		return tag, nil, nil
	case syncTagDATA, syncTagDONE:
		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return tag, nil, err
		}
		return tag, n[:], nil
	default:
		length, err := readU32LE(r)
		if err != nil {
			return tag, nil, err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return tag, nil, err
		}
		return tag, buf, nil
	}
}

func readU32LE(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeSyncTag(w io.Writer, tag [4]byte, rest []byte) error {
	if _, err := w.Write(tag[:]); err != nil {
		return err
	}
	if len(rest) > 0 {
		_, err := w.Write(rest)
		return err
	}
	return nil
}

func packSyncCommand(tag [4]byte, path string) []byte {
	buf := make([]byte, 0, 8+len(path))
	buf = append(buf, tag[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(path)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, path...)
	return buf
}

func handleStat(ctx context.Context, conn *adbconn.Conn, client net.Conn, txn adbconn.Transaction, path string, timeout time.Duration) error {
	if err := conn.SendWrite(ctx, txn, packSyncCommand(syncTagSTAT, path)); err != nil {
		return err
	}
	if _, err := conn.ReadOkay(ctx, txn, timeout); err != nil {
		return err
	}
	resp, err := conn.ReadWrite(ctx, txn, timeout)
	if err != nil {
		return err
	}
	if err := expectSyncReply(resp.Data, syncTagSTAT); err != nil {
		return err
	}
	if err := conn.SendOkay(ctx, txn); err != nil {
		return err
	}
	_, err = client.Write(resp.Data)
	return err
}

func handleRecv(ctx context.Context, conn *adbconn.Conn, client net.Conn, txn adbconn.Transaction, path string, timeout time.Duration) error {
	if err := conn.SendWrite(ctx, txn, packSyncCommand(syncTagRECV, path)); err != nil {
		return err
	}
	if _, err := conn.ReadOkay(ctx, txn, timeout); err != nil {
		return err
	}

	for {
		resp, err := conn.ReadWrite(ctx, txn, syncRecvChunkWait)
		if err == adbconn.ErrTimeout {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := client.Write(resp.Data); err != nil {
			return err
		}
		if err := conn.SendOkay(ctx, txn); err != nil {
			return err
		}
	}
}

func handleSend(ctx context.Context, conn *adbconn.Conn, client net.Conn, txn adbconn.Transaction, spec string, timeout time.Duration) error {
	path, mode, err := parseSendSpec(spec)
	if err != nil {
		return err
	}

	initCmd := make([]byte, 0, 8+len(path)+1+10)
	initCmd = append(initCmd, syncTagSEND[:]...)
	fileInfo := fmt.Sprintf("%s,%d", path, mode)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(fileInfo)))
	initCmd = append(initCmd, lenBuf[:]...)
	initCmd = append(initCmd, fileInfo...)

	if err := conn.SendWrite(ctx, txn, initCmd); err != nil {
		return err
	}
	if _, err := conn.ReadOkay(ctx, txn, timeout); err != nil {
		return err
	}

	var buffer bytes.Buffer
	for {
		tag, payload, err := readSyncFrame(client)
		if err != nil {
			return err
		}
		switch tag {
		case syncTagDATA:
			size := binary.LittleEndian.Uint32(payload)
			buffer.Write(syncTagDATA[:])
			buffer.Write(payload)
			data := make([]byte, size)
			if _, err := io.ReadFull(client, data); err != nil {
				return &SyncError{Reason: err.Error()}
			}
			buffer.Write(data)
		case syncTagDONE:
			buffer.Write(syncTagDONE[:])
			buffer.Write(payload)
			goto sendChunks
		default:
			return &SyncError{Reason: "expected DATA or DONE command"}
		}
	}

sendChunks:
	data := buffer.Bytes()
	for len(data) > 0 {
		n := syncMaxChunk
		if n > len(data) {
			n = len(data)
		}
		if err := conn.SendWrite(ctx, txn, data[:n]); err != nil {
			return err
		}
		if _, err := conn.ReadOkay(ctx, txn, timeout); err != nil {
			return err
		}
		data = data[n:]
	}

	_, err = client.Write([]byte("OKAY"))
	return err
}

func parseSendSpec(spec string) (path string, mode uint32, err error) {
	idx := bytes.LastIndexByte([]byte(spec), ',')
	if idx < 0 {
		return "", 0, &SyncError{Reason: "invalid SEND command format"}
	}
	path = spec[:idx]
	var m uint64
	if _, scanErr := fmt.Sscanf(spec[idx+1:], "%d", &m); scanErr != nil {
		return "", 0, &SyncError{Reason: "invalid mode format"}
	}
	return path, uint32(m), nil
}

func handleList(ctx context.Context, conn *adbconn.Conn, client net.Conn, txn adbconn.Transaction, path string, timeout time.Duration) error {
	if err := conn.SendWrite(ctx, txn, packSyncCommand(syncTagLIST, path)); err != nil {
		return err
	}
	if _, err := conn.ReadOkay(ctx, txn, timeout); err != nil {
		return err
	}

	var buffer []byte
	for {
		resp, err := conn.ReadWrite(ctx, txn, timeout)
		if err == adbconn.ErrTimeout {
			return nil
		}
		if err != nil {
			return err
		}
		buffer = append(buffer, resp.Data...)

		index := 0
		for index < len(buffer) {
			if len(buffer)-index < 4 {
				break
			}
			var tag [4]byte
			copy(tag[:], buffer[index:index+4])

			switch tag {
			case syncTagDENT:
				dentSize, err := dentEntrySize(buffer, index)
				if err != nil {
					return err
				}
				if dentSize == 0 {
					goto drainRemainder
				}
				if _, err := client.Write(buffer[index : index+dentSize]); err != nil {
					return err
				}
				index += dentSize
			case syncTagDONE:
				// DONE ends the listing: forward it, ack it and return
				if err := writeSyncTag(client, syncTagDONE, nil); err != nil {
					return err
				}
				if err := conn.SendOkay(ctx, txn); err != nil {
					return err
				}
				return nil
			case syncTagFAIL:
				msg := string(buffer[index+4:])
				if _, err := client.Write(buffer[index+4:]); err != nil {
					return err
				}
				return &SyncError{Reason: "listing failed: " + msg}
			default:
				return &SyncError{Reason: fmt.Sprintf("unexpected response in list command: %v", tag)}
			}
		}

	drainRemainder:
		buffer = buffer[index:]
		if err := conn.SendOkay(ctx, txn); err != nil {
			return err
		}
	}
}

// dentEntrySize returns the full byte length of the DENT record
// starting at index, or 0 if buffer doesn't yet hold it in full
func dentEntrySize(buffer []byte, index int) (int, error) {
	if len(buffer)-index < dentMinSize {
		return 0, nil
	}
	nameLen := binary.LittleEndian.Uint32(buffer[index+dentHeaderSize : index+dentMinSize])
	dentSize := int(nameLen) + dentMinSize
	if len(buffer)-index < dentSize {
		return 0, nil
	}
	return dentSize, nil
}

func handleQuit(ctx context.Context, conn *adbconn.Conn, txn adbconn.Transaction, timeout time.Duration) error {
	if err := conn.SendWrite(ctx, txn, packSyncCommand(syncTagQUIT, "")); err != nil {
		return err
	}
	if _, err := conn.ReadOkay(ctx, txn, timeout); err != nil {
		return err
	}
	return conn.ReadClose(ctx, txn, timeout)
}

func expectSyncReply(data []byte, want [4]byte) error {
	if bytes.HasPrefix(data, want[:]) {
		return nil
	}
	if bytes.HasPrefix(data, syncTagFAIL[:]) {
		return &SyncError{Reason: "command failed: " + string(data[4:])}
	}
	return &SyncError{Reason: fmt.Sprintf("unexpected sync response: %v", data)}
}
