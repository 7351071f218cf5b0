package protocol

import (
	"bytes"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return log.WithField("test", "test")
}

func TestMsgRoundTrip(t *testing.T) {
	type scenario struct {
		msgType MsgType
		payload []byte
	}

	scenarios := []scenario{
		{MsgTerminal, []byte("ls -l\n")},
		{MsgFile, []byte("cmd: path_type")},
		{MsgWindow, []byte("80_24")},
		{MsgSyncDir, []byte("/home/someone")},
		{MsgSyncDir, []byte{}},
		{MsgExit, nil},
		{MsgTerminal, bytes.Repeat([]byte{0x00, 0xff}, 100)},
	}

	for _, s := range scenarios {
		var buf bytes.Buffer
		writer := NewMsgHelper(nil, &buf, newTestLog())
		require.NoError(t, writer.WriteMsg(s.msgType, s.payload))

		reader := NewMsgHelper(&buf, nil, newTestLog())
		msgType, payload, err := reader.ReadMsg()
		require.NoError(t, err)
		assert.EqualValues(t, s.msgType, msgType)
		assert.EqualValues(t, len(s.payload), len(payload))
		assert.True(t, bytes.Equal(s.payload, payload))
	}
}

func TestMsgWireFormat(t *testing.T) {
	var buf bytes.Buffer
	helper := NewMsgHelper(nil, &buf, newTestLog())
	require.NoError(t, helper.WriteTerminalMsg([]byte("hi")))
	assert.EqualValues(t, "T0002hi", buf.String())

	buf.Reset()
	require.NoError(t, helper.WriteExitMsg())
	assert.EqualValues(t, "E0000", buf.String())

	buf.Reset()
	require.NoError(t, helper.WriteWindowMsg(120, 40))
	assert.EqualValues(t, "W0006120_40", buf.String())
}

func TestMsgMaxPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, MaxPayload)
	var buf bytes.Buffer
	helper := NewMsgHelper(nil, &buf, newTestLog())
	require.NoError(t, helper.WriteMsg(MsgTerminal, payload))

	// length field for a full frame reads ffff
	assert.EqualValues(t, "ffff", buf.String()[1:5])

	reader := NewMsgHelper(&buf, nil, newTestLog())
	msgType, got, err := reader.ReadMsg()
	require.NoError(t, err)
	assert.EqualValues(t, MsgTerminal, msgType)
	assert.True(t, bytes.Equal(payload, got))
}

func TestMsgSplitsOversizedPayloads(t *testing.T) {
	payload := make([]byte, MaxPayload+1000)
	_, err := rand.New(rand.NewSource(1)).Read(payload)
	require.NoError(t, err)

	var buf bytes.Buffer
	helper := NewMsgHelper(nil, &buf, newTestLog())
	require.NoError(t, helper.WriteMsg(MsgTerminal, payload))

	reader := NewMsgHelper(&buf, nil, newTestLog())
	first := make([]byte, 0, len(payload))
	for len(first) < len(payload) {
		msgType, chunk, err := reader.ReadMsg()
		require.NoError(t, err)
		assert.EqualValues(t, MsgTerminal, msgType)
		assert.LessOrEqual(t, len(chunk), MaxPayload)
		first = append(first, chunk...)
	}
	assert.True(t, bytes.Equal(payload, first))
}

func TestMsgRejectsGarbage(t *testing.T) {
	type scenario struct {
		wire string
	}

	scenarios := []scenario{
		{"X0002hi"},          // unknown type
		{"T00zzhi"},          // length not hex
		{"TFFFFhi"},          // uppercase hex is not valid either
		{"Welcome to host!"}, // a motd mistaken for a frame
	}

	for _, s := range scenarios {
		reader := NewMsgHelper(strings.NewReader(s.wire), nil, newTestLog())
		_, _, err := reader.ReadMsg()
		assert.Error(t, err)
	}
}

func TestMsgShortReadAtEOF(t *testing.T) {
	// header promises four bytes of payload that never arrive
	reader := NewMsgHelper(strings.NewReader("T0004hi"), nil, newTestLog())
	_, _, err := reader.ReadMsg()
	assert.Error(t, err)
}

type flushCounter struct {
	bytes.Buffer
	flushes int
}

func (f *flushCounter) Flush() error {
	f.flushes++
	return nil
}

func TestMsgFlushesBufferedWriters(t *testing.T) {
	writer := &flushCounter{}
	helper := NewMsgHelper(nil, writer, newTestLog())
	require.NoError(t, helper.WriteFileMsg("cmd: exit"))
	assert.EqualValues(t, 1, writer.flushes)
}
