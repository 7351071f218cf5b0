package client

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jesseduffield/lazyssh/pkg/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInput(keystrokes string) (*InputController, *bytes.Buffer) {
	out := &bytes.Buffer{}
	terminal := NewTerminalController(strings.NewReader(""), out, commands.NewDummyLog())
	input := NewInputController(strings.NewReader(keystrokes), terminal, commands.NewDummyLog())
	input.Start()
	return input, out
}

func TestReadCmdlineSubmit(t *testing.T) {
	input, out := newTestInput("ls -l\n")

	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "ls -l\n", cmdline)
	// keystrokes were echoed as typed, with the submit rendered as \r\n
	assert.EqualValues(t, "ls -l\r\n", out.String())
}

func TestReadCmdlineCarriageReturn(t *testing.T) {
	input, _ := newTestInput("pwd\r")

	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "pwd\r", cmdline)
}

func TestReadCmdlineDelete(t *testing.T) {
	input, out := newTestInput("lss\x7f\n")

	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "ls\n", cmdline)
	assert.Contains(t, out.String(), "\033[1D\033[0K")
}

func TestReadCmdlineDeleteOnEmptyLine(t *testing.T) {
	input, out := newTestInput("\x7fok\n")

	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "ok\n", cmdline)
	assert.NotContains(t, out.String(), "\033[")
}

func TestReadCmdlineTabTerminator(t *testing.T) {
	input, _ := newTestInput("send fi\t")

	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "send fi\t", cmdline)
}

func TestReadCmdlineInterrupt(t *testing.T) {
	input, _ := newTestInput("runaway\x03")

	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "runaway\x03", cmdline)
}

func TestReadCmdlineBareEscape(t *testing.T) {
	input, _ := newTestInput("\x1b")

	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "\x1b", cmdline)
}

func TestReadCmdlineHistoryRecall(t *testing.T) {
	input, out := newTestInput("ls -l\nx\x7f\x1b[A\n")

	first, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "ls -l\n", first)

	// type x, delete it, then arrow-up to recall the previous command
	second, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "ls -l\n", second)
	assert.Contains(t, out.String(), "ls -l")
}

func TestReadCmdlineHistoryDownAfterUp(t *testing.T) {
	input, _ := newTestInput("one\ntwo\n\x1b[A\x1b[A\x1b[B\n")

	for _, expected := range []string{"one\n", "two\n"} {
		cmdline, err := input.ReadCmdline(nil)
		require.NoError(t, err)
		assert.EqualValues(t, expected, cmdline)
	}

	// up twice lands on "one"; a single down re-offers the entry under the
	// cursor before moving on
	cmdline, err := input.ReadCmdline(nil)
	require.NoError(t, err)
	assert.EqualValues(t, "one\n", cmdline)
}

func TestReadCmdlineInitData(t *testing.T) {
	input, _ := newTestInput("bc\n")

	cmdline, err := input.ReadCmdline([]byte("a"))
	require.NoError(t, err)
	assert.EqualValues(t, "abc\n", cmdline)
}

func TestReadCmdlineEOF(t *testing.T) {
	input, _ := newTestInput("no newline")

	_, err := input.ReadCmdline(nil)
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestReadDataEOF(t *testing.T) {
	input, _ := newTestInput("a")

	data, err := input.ReadData()
	require.NoError(t, err)
	assert.EqualValues(t, []byte{'a'}, data)

	_, err = input.ReadData()
	assert.ErrorIs(t, err, ErrInputClosed)
}
