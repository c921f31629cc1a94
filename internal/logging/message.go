/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Atomic multi-line log messages
 */

package logging

import (
	"bytes"
	"fmt"
	"os"
	"sync"
)

// LogMessage represents a single (possibly multi-line) log message,
// which appears in the output log atomically and is never interrupted
// in the middle by other log activity
type LogMessage struct {
	logger *Logger       // Underlying logger
	parent *LogMessage   // Parent message
	lines  []*logLineBuf // One buffer per line
}

var logMessagePool = sync.Pool{New: func() interface{} { return &LogMessage{} }}

// Begin returns a child (nested) LogMessage. Writes to the child are
// appended to the parent message.
func (msg *LogMessage) Begin() *LogMessage {
	msg2 := logMessagePool.Get().(*LogMessage)
	msg2.logger = msg.logger
	msg2.parent = msg
	return msg2
}

// Add formats a line of the log message at the given level and prefix byte
func (msg *LogMessage) Add(level LogLevel, prefix byte, format string, args ...interface{}) *LogMessage {
	buf := logLineBufAlloc(level, prefix)
	fmt.Fprintf(buf, format, args...)
	msg.lines = append(msg.lines, buf)

	if msg.parent == nil {
		msg.Flush()
	}

	return msg
}

// Nl adds an empty line to the log message
func (msg *LogMessage) Nl(level LogLevel) *LogMessage {
	return msg.Add(level, ' ', "")
}

func (msg *LogMessage) addBytes(level LogLevel, prefix byte, line []byte) *LogMessage {
	buf := logLineBufAlloc(level, prefix)
	buf.Write(line)
	msg.lines = append(msg.lines, buf)

	if msg.parent == nil {
		msg.Flush()
	}

	return msg
}

// Debug appends a LogDebug line to the message
func (msg *LogMessage) Debug(prefix byte, format string, args ...interface{}) *LogMessage {
	return msg.Add(LogDebug, prefix, format, args...)
}

// Info appends a LogInfo line to the message
func (msg *LogMessage) Info(prefix byte, format string, args ...interface{}) *LogMessage {
	return msg.Add(LogInfo, prefix, format, args...)
}

// Error appends a LogError line to the message
func (msg *LogMessage) Error(prefix byte, format string, args ...interface{}) *LogMessage {
	return msg.Add(LogError, prefix, format, args...)
}

// Trace appends a trace-level line to the message
func (msg *LogMessage) Trace(level LogLevel, prefix byte, format string, args ...interface{}) *LogMessage {
	return msg.Add(level, prefix, format, args...)
}

// Exit appends a LogError line, flushes the message and its parents, and
// calls os.Exit(1)
func (msg *LogMessage) Exit(prefix byte, format string, args ...interface{}) {
	if msg.logger.mode == loggerNoMode {
		msg.logger.ToConsole()
	}

	msg.Error(prefix, format, args...)
	for msg.parent != nil {
		msg.Flush()
		msg = msg.parent
	}
	os.Exit(1)
}

// Check calls msg.Exit() if err is not nil
func (msg *LogMessage) Check(err error) {
	if err != nil {
		msg.Exit(0, "%s", err)
	}
}

// Panic logs a recovered panic value and exits
func (msg *LogMessage) Panic(v interface{}) {
	msg.Exit('!', "PANIC: %v", v)
}

// HexDump appends a hex dump to the log message
func (msg *LogMessage) HexDump(level LogLevel, prefix byte, data []byte) *LogMessage {
	hex := &bytes.Buffer{}
	chr := &bytes.Buffer{}
	off := 0

	for len(data) > 0 {
		hex.Reset()
		chr.Reset()

		sz := len(data)
		if sz > 16 {
			sz = 16
		}

		i := 0
		for ; i < sz; i++ {
			c := data[i]
			fmt.Fprintf(hex, "%2.2x", c)
			if i%4 == 3 {
				hex.WriteByte(':')
			} else {
				hex.WriteByte(' ')
			}

			if 0x20 <= c && c < 0x80 {
				chr.WriteByte(c)
			} else {
				chr.WriteByte('.')
			}
		}

		for ; i < 16; i++ {
			hex.WriteString("   ")
		}

		msg.Add(level, prefix, "%4.4x: %s %s", off, hex, chr)

		off += sz
		data = data[sz:]
	}

	return msg
}

// LineWriter returns a LineWriter that writes lines into this message
func (msg *LogMessage) LineWriter(level LogLevel, prefix byte) *LineWriter {
	return &LineWriter{
		Callback: func(line []byte) { msg.addBytes(level, prefix, line) },
	}
}

// Commit flushes the message and returns it to the pool
func (msg *LogMessage) Commit() {
	msg.Flush()
	msg.free()
}

// Flush writes the message content to the log
func (msg *LogMessage) Flush() {
	if len(msg.lines) == 0 {
		return
	}

	msg.logger.lock.Lock()
	defer msg.logger.lock.Unlock()

	if msg.parent != nil {
		msg.parent.lines = append(msg.parent.lines, msg.lines...)
		msg.lines = msg.lines[:0]

		if msg.parent.parent == nil {
			msg = msg.parent
		} else {
			return
		}
	}

	if msg.logger.out == nil && msg.logger.mode == loggerFile {
		os.MkdirAll(pathDirOf(msg.logger.path), 0755)
		msg.logger.out, _ = os.OpenFile(msg.logger.path,
			os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	}

	if msg.logger.out == nil {
		msg.lines = msg.lines[:0]
		return
	}

	// Filter by enabled level mask, unless the logger has no mask set
	linesToWrite := msg.lines[:0:0]
	for _, l := range msg.lines {
		if msg.logger.levels == 0 || (msg.logger.levels&l.level) != 0 || l.level == 0 {
			linesToWrite = append(linesToWrite, l)
		}
	}

	if msg.logger.mode == loggerFile {
		msg.logger.rotate()
	}

	var cclist []struct {
		mask LogLevel
		msg  *LogMessage
	}

	for _, cc := range msg.logger.cc {
		cclist = append(cclist, struct {
			mask LogLevel
			msg  *LogMessage
		}{cc.mask, cc.to.Begin()})
	}

	buf := msg.logger.fmtTime()
	timeLen := buf.Len()

	for _, l := range msg.lines {
		buf.Truncate(timeLen)
		l.trim()

		write := msg.logger.levels == 0 || (msg.logger.levels&l.level) != 0 || l.level == 0
		if write {
			if !l.empty() {
				if timeLen != 0 {
					buf.WriteByte(' ')
				}
				buf.Write(l.Bytes())
			}
			buf.WriteByte('\n')
			msg.logger.outhook(msg.logger.out, l.level, buf.Bytes())
		}

		for _, cc := range cclist {
			if (cc.mask&l.level) != 0 || l.level == 0 {
				cc.msg.addBytes(l.level, 0, l.Bytes())
			}
		}

		l.free()
	}

	for _, cc := range cclist {
		cc.msg.Commit()
	}

	msg.lines = msg.lines[:0]
}

// Reject discards the message without writing it
func (msg *LogMessage) Reject() {
	msg.free()
}

func (msg *LogMessage) free() {
	for _, l := range msg.lines {
		l.free()
	}

	if len(msg.lines) < 16 {
		msg.lines = msg.lines[:0]
	} else {
		msg.lines = nil
	}

	msg.logger = nil
	logMessagePool.Put(msg)
}

// logLineBuf represents a single log line buffer
type logLineBuf struct {
	bytes.Buffer
	level LogLevel
}

var logLineBufPool = sync.Pool{New: func() interface{} {
	return &logLineBuf{}
}}

func logLineBufAlloc(level LogLevel, prefix byte) *logLineBuf {
	buf := logLineBufPool.Get().(*logLineBuf)
	buf.level = level
	if prefix != 0 {
		buf.Write([]byte{prefix, ' '})
	}
	return buf
}

func (buf *logLineBuf) free() {
	if buf.Cap() <= 256 {
		buf.Reset()
		logLineBufPool.Put(buf)
	}
}

func (buf *logLineBuf) trim() {
	b := buf.Bytes()
	var i int

loop:
	for i = len(b); i > 0; i-- {
		switch b[i-1] {
		case '\t', '\n', '\v', '\f', '\r', ' ', 0x85, 0xA0:
		default:
			break loop
		}
	}
	buf.Truncate(i)
}

func (buf *logLineBuf) empty() bool {
	return buf.Len() == 0
}
