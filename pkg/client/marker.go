package client

import (
	"regexp"
	"strings"

	"github.com/jesseduffield/lazyssh/pkg/config"
	"github.com/jesseduffield/lazyssh/pkg/utils"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// CmdEndMark is the sentinel echoed after every command so we can tell
// when the remote shell is done with it
const CmdEndMark = "cmd has finished with code "

// maxTailLen bounds how much recent output we keep for matching a marker
// that straddles a chunk boundary
const maxTailLen = 300

var (
	markPattern = regexp.MustCompile(CmdEndMark + `(\d+)(.+)\.` + "\r\n")

	// promptPattern is the fallback detector: a shell prompt's trailing
	// dollar or hash
	promptPattern = regexp.MustCompile(`[$#]\s*\r?$`)
)

// CmdEndMarker decides whether the remote shell has finished the current
// command and what to let through to the user's terminal. Two strategies
// exist: appending an echo marker to every command (reliable, and carries
// the shell's $PWD back), or watching the output for a prompt (survives
// commands that eat their own input, like vi). The demuxer feeds it output
// while the main goroutine polls it, hence the lock.
type CmdEndMarker struct {
	Terminal *TerminalController
	Log      *logrus.Entry
	strategy string

	mutex deadlock.Mutex
	// everything below is protected by mutex
	needOmitCmdlineEcho bool
	wantCmdEndMark      bool
	hasCmdEndMark       bool
	lastLine            string
	waitInitPromptFlag  bool
	currentDir          string

	initPromptCh chan struct{}
}

// NewCmdEndMarker creates a new CmdEndMarker
func NewCmdEndMarker(terminal *TerminalController, strategy string, log *logrus.Entry) *CmdEndMarker {
	if strategy != config.PromptDetectionRegex {
		strategy = config.PromptDetectionMarker
	}
	return &CmdEndMarker{
		Terminal:           terminal,
		Log:                log,
		strategy:           strategy,
		waitInitPromptFlag: true,
		initPromptCh:       make(chan struct{}),
	}
}

// WaitInitPrompt blocks until the remote shell has drawn its first prompt
func (m *CmdEndMarker) WaitInitPrompt() {
	<-m.initPromptCh
}

// MarkNewCmdline arms the detector for a fresh command and returns the
// line to actually send to the shell
func (m *CmdEndMarker) MarkNewCmdline(cmdline string) string {
	m.mutex.Lock()
	m.needOmitCmdlineEcho = true
	m.wantCmdEndMark = true
	m.hasCmdEndMark = false
	m.lastLine = ""
	m.mutex.Unlock()

	cmdline = strings.TrimRight(cmdline, " \t\r\n")
	if m.strategy == config.PromptDetectionRegex {
		return cmdline + "\n"
	}
	if cmdline != "" {
		cmdline += " ; "
	}
	return cmdline + "echo " + CmdEndMark + "$?$PWD.\n"
}

// ReceiveOutput filters one chunk of remote output: swallows everything
// before the first prompt, drops the echoed command line, spots the end
// marker (erasing it from view) and forwards the rest to the terminal.
func (m *CmdEndMarker) ReceiveOutput(data string) {
	m.mutex.Lock()

	if m.waitInitPromptFlag {
		totalData := m.lastLine + data
		if strings.HasSuffix(data, "$ ") || strings.HasSuffix(data, "# ") {
			m.waitInitPromptFlag = false
			close(m.initPromptCh)
		} else {
			m.lastLine = utils.TruncateTail(lineTail(totalData), maxTailLen)
		}
		m.mutex.Unlock()
		return
	}

	if m.needOmitCmdlineEcho {
		pos := strings.IndexByte(data, '\n')
		if pos == -1 {
			m.mutex.Unlock()
			return
		}
		data = data[pos+1:]
		m.needOmitCmdlineEcho = false
	}

	m.Log.Debugf("wantCmdEndMark = %t, hasCmdEndMark = %t", m.wantCmdEndMark, m.hasCmdEndMark)
	if m.wantCmdEndMark && !m.hasCmdEndMark {
		if m.strategy == config.PromptDetectionRegex {
			totalData := m.lastLine + data
			if promptPattern.MatchString(totalData) {
				m.hasCmdEndMark = true
			}
			m.lastLine = utils.TruncateTail(lineTail(totalData), maxTailLen)
		} else {
			data = m.matchMarker(data)
		}
	}
	m.mutex.Unlock()
	m.Terminal.ReceiveOutput(data)
}

// matchMarker looks for the end marker in the bounded tail plus the new
// chunk. When found, the marker's bytes are removed from what the user
// sees, including any already-printed partial tail, and the shell's $PWD
// is captured. A nonzero exit code is put back so the user still sees it.
func (m *CmdEndMarker) matchMarker(data string) string {
	totalData := m.lastLine + data
	match := markPattern.FindStringSubmatchIndex(totalData)
	if match == nil {
		m.lastLine = utils.TruncateTail(lineTail(totalData), maxTailLen)
		return data
	}
	m.hasCmdEndMark = true

	start, end := match[0], match[1]
	if start < len(m.lastLine) {
		m.Terminal.EraseLastCharacters(len(m.lastLine) - start)
	}
	out := ""
	if start > len(m.lastLine) {
		out = totalData[len(m.lastLine):start]
	}
	code := totalData[match[2]:match[3]]
	if code != "0" {
		out += CmdEndMark + code + ".\r\n"
	}
	out += totalData[end:]
	m.currentDir = totalData[match[4]:match[5]]
	return out
}

// IsCmdFinished reports (once) whether the armed command has completed
func (m *CmdEndMarker) IsCmdFinished() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.wantCmdEndMark && m.hasCmdEndMark {
		m.wantCmdEndMark = false
		m.hasCmdEndMark = false
		return true
	}
	return false
}

// CurrentDir is the shell's cwd as captured from the last marker; empty
// under the regex strategy
func (m *CmdEndMarker) CurrentDir() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.currentDir
}

// lineTail returns everything after the last newline
func lineTail(s string) string {
	return s[strings.LastIndexByte(s, '\n')+1:]
}
