package client

import (
	"io"
	"time"

	"github.com/go-errors/errors"
	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"
)

// Line terminators. A completed command line comes back with its
// terminator still attached so the caller can tell a submit from a
// tab-completion from an interrupt.
const (
	TermInterrupt = 0x03
	TermTab       = 0x09
	TermCtrlR     = 0x12
	TermNewline   = 0x0a
	TermReturn    = 0x0d
	TermEscape    = 0x1b
)

const (
	byteDel = 0x7f
	byteEsc = 0x1b
)

// escSequenceTimeout is how long we give the rest of a cursor-key sequence
// to arrive before deciding the ESC was pressed on its own
const escSequenceTimeout = 50 * time.Millisecond

// ErrInputClosed means stdin reached EOF; the session should wind down
// cleanly
var ErrInputClosed = errors.Errorf("no more input")

// InputController reads raw keystrokes on its own goroutine and assembles
// them into command lines with local echo, erase and history recall. The
// remote shell never sees a command until the user submits it.
type InputController struct {
	Terminal *TerminalController
	History  *CmdHistory
	Log      *logrus.Entry

	in      io.Reader
	inputCh chan byte
	cmdline string
}

// NewInputController creates a new InputController; Start begins the
// actual reading so construction can happen before raw mode is set
func NewInputController(in io.Reader, terminal *TerminalController, log *logrus.Entry) *InputController {
	return &InputController{
		Terminal: terminal,
		History:  NewCmdHistory(log),
		Log:      log,
		in:       in,
		inputCh:  make(chan byte, 1024),
	}
}

// Start launches the keystroke pump
func (c *InputController) Start() {
	go c.pump(c.in)
}

// pump moves stdin bytes onto the input channel one at a time; closing the
// channel is how EOF travels
func (c *InputController) pump(in io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			c.inputCh <- buf[0]
		}
		if err != nil {
			close(c.inputCh)
			return
		}
	}
}

// ReadData blocks for the next keystroke
func (c *InputController) ReadData() ([]byte, error) {
	b, ok := <-c.inputCh
	if !ok {
		return nil, ErrInputClosed
	}
	return []byte{b}, nil
}

// ReadCmdline builds one command line, starting from any bytes left over
// from the previous command's tail. The returned line includes its
// terminator byte.
func (c *InputController) ReadCmdline(initData []byte) (string, error) {
	c.cmdline = ""
	data := initData
	for {
		for _, b := range data {
			if c.processByte(b) {
				c.Log.Debugf("ReadCmdline(%q)", c.cmdline)
				if c.terminator() == TermNewline || c.terminator() == TermReturn {
					c.History.AddCmd(c.cmdline)
				}
				return c.cmdline, nil
			}
		}
		var err error
		data, err = c.ReadData()
		if err != nil {
			return "", err
		}
	}
}

func (c *InputController) terminator() byte {
	if c.cmdline == "" {
		return 0
	}
	return c.cmdline[len(c.cmdline)-1]
}

// processByte feeds one keystroke to the editor, reporting whether the
// line is complete
func (c *InputController) processByte(b byte) bool {
	switch b {
	case byteDel:
		if c.cmdline != "" {
			runes := []rune(c.cmdline)
			last := runes[len(runes)-1]
			c.cmdline = string(runes[:len(runes)-1])
			c.Terminal.EraseLastCharacters(runewidth.RuneWidth(last))
		}
		return false
	case byteEsc:
		return c.handleEscape()
	case TermInterrupt, TermTab, TermCtrlR:
		c.cmdline += string(rune(b))
		return true
	case TermNewline, TermReturn:
		c.Terminal.Echo("\r\n")
		c.cmdline += string(rune(b))
		return true
	default:
		// append the raw byte: multi-byte characters arrive one byte at a
		// time and must not be re-encoded
		c.cmdline += string([]byte{b})
		c.Terminal.Echo(string([]byte{b}))
		return false
	}
}

// handleEscape disambiguates a bare ESC (ends the line) from a CSI
// sequence (history recall). A real terminal delivers a cursor key's whole
// sequence in one burst, so a short wait for the bracket is enough.
func (c *InputController) handleEscape() bool {
	select {
	case next, ok := <-c.inputCh:
		if !ok || next != '[' {
			c.Log.Debugf("unexpected esc data %q", next)
			c.cmdline += string(rune(TermEscape))
			return true
		}
	case <-time.After(escSequenceTimeout):
		c.cmdline += string(rune(TermEscape))
		return true
	}

	final, ok := <-c.inputCh
	if !ok {
		c.cmdline += string(rune(TermEscape))
		return true
	}
	switch final {
	case 'A':
		// Esc[A moves the cursor up a line: recall the previous command
		c.resetCmdline(c.History.GetPrevCmd())
	case 'B':
		// Esc[B moves the cursor down a line: recall the next command
		c.resetCmdline(c.History.GetNextCmd())
	default:
		c.Log.Debugf("unexpected esc data %q", final)
	}
	return false
}

// resetCmdline replaces the visible line with a recalled one
func (c *InputController) resetCmdline(cmdline string) {
	if c.cmdline != "" {
		c.Terminal.EraseLastCharacters(runewidth.StringWidth(c.cmdline))
	}
	c.cmdline = cmdline
	c.Log.Debugf("resetCmdline %s", c.cmdline)
	c.Terminal.Echo(c.cmdline)
}
