// Package protocol implements the framed message transport shared by the
// client and the server over the ssh pipe. A frame is a single type byte,
// a four character lowercase-hex payload length, then the payload; frames
// are contiguous on the wire with nothing in between. The hex length is
// deliberate: stray shell output (banners, MOTDs) read as a frame fails to
// parse instead of silently corrupting the stream.
package protocol

import (
	"fmt"
	"io"

	"github.com/go-errors/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// MsgType is the lane a frame belongs to
type MsgType byte

const (
	// MsgTerminal carries terminal bytes in either direction
	MsgTerminal MsgType = 'T'
	// MsgFile carries one line of the file-transfer protocol
	MsgFile MsgType = 'F'
	// MsgExit signals that a peer has closed the connection
	MsgExit MsgType = 'E'
	// MsgWindow carries a "W_H" window size update, client to server
	MsgWindow MsgType = 'W'
	// MsgSyncDir asks the peer to align working directories
	MsgSyncDir MsgType = 'S'
)

// MaxPayload is the largest payload a single frame can carry. WriteMsg
// splits anything bigger across frames.
const MaxPayload = 0xffff

const headerLen = 5

// ErrBadFrame means the stream can no longer be trusted: the connection
// must be torn down.
var ErrBadFrame = errors.Errorf("malformed frame on transport")

// A Flusher is an output stream that buffers writes
type Flusher interface {
	Flush() error
}

// MsgHelper reads and writes frames on a byte stream. Reads are only ever
// driven by one goroutine; writes may come from several (terminal relay,
// file transfer, window updates) and are serialized by a mutex so the
// header and payload of one frame never interleave with another's.
type MsgHelper struct {
	reader io.Reader
	writer io.Writer

	writeMutex deadlock.Mutex
	log        *logrus.Entry
}

// NewMsgHelper creates a new MsgHelper
func NewMsgHelper(reader io.Reader, writer io.Writer, log *logrus.Entry) *MsgHelper {
	return &MsgHelper{
		reader: reader,
		writer: writer,
		log:    log,
	}
}

func validType(msgType MsgType) bool {
	switch msgType {
	case MsgTerminal, MsgFile, MsgExit, MsgWindow, MsgSyncDir:
		return true
	}
	return false
}

// WriteMsg writes data as one or more frames of the given type. Payloads
// over MaxPayload are split; an empty payload still produces one frame.
func (m *MsgHelper) WriteMsg(msgType MsgType, data []byte) error {
	if !validType(msgType) {
		return errors.Errorf("unsupported msg type %q", byte(msgType))
	}
	for {
		chunk := data
		if len(chunk) > MaxPayload {
			chunk = data[:MaxPayload]
		}
		if err := m.writeFrame(msgType, chunk); err != nil {
			return err
		}
		data = data[len(chunk):]
		if len(data) == 0 {
			return nil
		}
	}
}

func (m *MsgHelper) writeFrame(msgType MsgType, payload []byte) error {
	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()

	m.log.Debugf("write frame %c size=%d", byte(msgType), len(payload))

	frame := make([]byte, 0, headerLen+len(payload))
	frame = append(frame, byte(msgType))
	frame = append(frame, fmt.Sprintf("%04x", len(payload))...)
	frame = append(frame, payload...)
	if _, err := m.writer.Write(frame); err != nil {
		return errors.Wrap(err, 0)
	}
	if flusher, ok := m.writer.(Flusher); ok {
		if err := flusher.Flush(); err != nil {
			return errors.Wrap(err, 0)
		}
	}
	return nil
}

// ReadMsg blocks until a whole frame has been read. A length field that
// isn't hex or a type outside the alphabet is fatal for the transport.
func (m *MsgHelper) ReadMsg() (MsgType, []byte, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(m.reader, header); err != nil {
		return 0, nil, errors.Wrap(err, 0)
	}

	msgType := MsgType(header[0])
	if !validType(msgType) {
		return 0, nil, errors.WrapPrefix(ErrBadFrame, fmt.Sprintf("unknown frame type %q", header[0]), 0)
	}
	size, err := parseHexSize(header[1:])
	if err != nil {
		return 0, nil, err
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(m.reader, payload); err != nil {
		return 0, nil, errors.Wrap(err, 0)
	}

	m.log.Debugf("read frame %c size=%d", byte(msgType), size)
	return msgType, payload, nil
}

func parseHexSize(field []byte) (int, error) {
	size := 0
	for _, c := range field {
		var digit int
		switch {
		case c >= '0' && c <= '9':
			digit = int(c - '0')
		case c >= 'a' && c <= 'f':
			digit = int(c-'a') + 10
		default:
			return 0, errors.WrapPrefix(ErrBadFrame, fmt.Sprintf("bad length field %q", field), 0)
		}
		size = size<<4 | digit
	}
	return size, nil
}

// WriteTerminalMsg sends terminal bytes on the T lane
func (m *MsgHelper) WriteTerminalMsg(data []byte) error {
	return m.WriteMsg(MsgTerminal, data)
}

// WriteFileMsg sends one file-transfer protocol line, without its newline
func (m *MsgHelper) WriteFileMsg(line string) error {
	return m.WriteMsg(MsgFile, []byte(line))
}

// WriteExitMsg tells the peer the session is over
func (m *MsgHelper) WriteExitMsg() error {
	return m.WriteMsg(MsgExit, nil)
}

// WriteWindowMsg sends the terminal geometry as "W_H"
func (m *MsgHelper) WriteWindowMsg(width, height int) error {
	return m.WriteMsg(MsgWindow, []byte(fmt.Sprintf("%d_%d", width, height)))
}

// WriteSyncDirMsg asks the peer to re-align its working directory
func (m *MsgHelper) WriteSyncDirMsg(payload []byte) error {
	return m.WriteMsg(MsgSyncDir, payload)
}
