package client

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// CmdHistory remembers submitted command lines. The cursor sits between 0
// and len(history); len means "fresh line". Blank lines are not recorded.
type CmdHistory struct {
	Log     *logrus.Entry
	history []string
	pos     int
}

// NewCmdHistory creates a new CmdHistory
func NewCmdHistory(log *logrus.Entry) *CmdHistory {
	return &CmdHistory{Log: log}
}

// GetPrevCmd moves the cursor up and returns that entry, or "" at the top
func (h *CmdHistory) GetPrevCmd() string {
	if h.pos > 0 {
		h.pos--
		h.Log.Debugf("history pos = %d", h.pos)
		return h.history[h.pos]
	}
	return ""
}

// GetNextCmd returns the entry under the cursor and then moves the cursor
// down, or returns "" when the cursor is already at the fresh end
func (h *CmdHistory) GetNextCmd() string {
	if h.pos < len(h.history) {
		h.pos++
		h.Log.Debugf("history pos = %d", h.pos)
		return h.history[h.pos-1]
	}
	return ""
}

// AddCmd records a submitted line and resets the cursor to the fresh end
func (h *CmdHistory) AddCmd(cmdline string) {
	cmdline = strings.Trim(cmdline, "\r\n")
	if cmdline == "" {
		return
	}
	h.Log.Debugf("history[%d] = %s", len(h.history), cmdline)
	h.history = append(h.history, cmdline)
	h.pos = len(h.history)
}
