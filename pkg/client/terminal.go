package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-errors/errors"
	"github.com/moby/term"
	"github.com/sirupsen/logrus"
)

// TerminalController owns the user's terminal: raw mode, echoing, cursor
// erasing and the \n -> \r\n translation raw mode calls for.
type TerminalController struct {
	Log *logrus.Entry

	in    io.Reader
	out   io.Writer
	inFd  uintptr
	outFd uintptr

	isTerminal bool
	state      *term.State
}

// NewTerminalController creates a new TerminalController on the given
// stdio streams
func NewTerminalController(in io.Reader, out io.Writer, log *logrus.Entry) *TerminalController {
	inFd, isTerminal := term.GetFdInfo(in)
	outFd, _ := term.GetFdInfo(out)
	return &TerminalController{
		Log:        log,
		in:         in,
		out:        out,
		inFd:       inFd,
		outFd:      outFd,
		isTerminal: isTerminal,
	}
}

// SetRawTerminal puts stdin into raw mode so every keystroke reaches us
// immediately. Output post-processing stays on: the shell's \n must still
// render as \r\n.
func (t *TerminalController) SetRawTerminal() error {
	if !t.isTerminal {
		return nil
	}
	state, err := term.SetRawTerminal(t.inFd)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	t.state = state
	if err := keepPostProcessing(t.outFd); err != nil {
		t.Log.Error(err)
	}
	return nil
}

// RestoreTerminal undoes SetRawTerminal
func (t *TerminalController) RestoreTerminal() error {
	if t.state == nil {
		return nil
	}
	return term.RestoreTerminal(t.inFd, t.state)
}

// ReceiveOutput prints remote output, translating bare newlines for the
// raw terminal
func (t *TerminalController) ReceiveOutput(data string) {
	data = strings.Replace(data, "\r\n", "\n", -1)
	data = strings.Replace(data, "\n", "\r\n", -1)
	if _, err := io.WriteString(t.out, data); err != nil {
		t.Log.Error(err)
	}
}

// Echo prints the user's own keystrokes as typed
func (t *TerminalController) Echo(data string) {
	if _, err := io.WriteString(t.out, data); err != nil {
		t.Log.Error(err)
	}
}

// EraseLastCharacters wipes the last count characters before the cursor
func (t *TerminalController) EraseLastCharacters(count int) {
	if count <= 0 {
		return
	}
	t.Echo(fmt.Sprintf("\033[%dD\033[0K", count))
}

// GetTtySize reports the terminal geometry as (width, height)
func (t *TerminalController) GetTtySize() (int, int) {
	ws, err := term.GetWinsize(t.outFd)
	if err != nil {
		t.Log.Error(err)
		return 0, 0
	}
	return int(ws.Width), int(ws.Height)
}
