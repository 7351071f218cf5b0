// Package client is the local end of a session: it spawns the ssh child,
// bootstraps the remote server over its pipe, and then mediates between
// the user's terminal and the framed transport, intercepting the file
// transfer verbs that never reach the remote shell.
package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-errors/errors"
	"github.com/jesseduffield/lazyssh/pkg/commands"
	"github.com/jesseduffield/lazyssh/pkg/config"
	"github.com/jesseduffield/lazyssh/pkg/filetransfer"
	"github.com/jesseduffield/lazyssh/pkg/i18n"
	"github.com/jesseduffield/lazyssh/pkg/protocol"
	"github.com/jesseduffield/lazyssh/pkg/server"
	"github.com/sirupsen/logrus"
)

// Mediator orchestrates the whole client side: input editing, command
// classification, output filtering and the framed pipe to the server.
type Mediator struct {
	Config    *config.AppConfig
	Log       *logrus.Entry
	Tr        *i18n.TranslationSet
	OSCommand *commands.OSCommand
	Terminal  *TerminalController
	Input     *InputController
	Marker    *CmdEndMarker

	msg          *protocol.MsgHelper
	fileTransfer *filetransfer.FileClientCmdInterface
	sshCmd       *exec.Cmd
	syncAckCh    chan string
}

// NewMediator creates a new Mediator on the process's stdio
func NewMediator(cfg *config.AppConfig, osCommand *commands.OSCommand, tr *i18n.TranslationSet, log *logrus.Entry) *Mediator {
	terminal := NewTerminalController(os.Stdin, os.Stdout, log)
	return &Mediator{
		Config:    cfg,
		Log:       log,
		Tr:        tr,
		OSCommand: osCommand,
		Terminal:  terminal,
		Input:     NewInputController(os.Stdin, terminal, log),
		Marker:    NewCmdEndMarker(terminal, cfg.UserConfig.PromptDetection, log),
		syncAckCh: make(chan string, 1),
	}
}

// Connect spawns `ssh -T host`, injects the bootstrap command and waits
// for the server's banner, after which the pipe carries frames only
func (m *Mediator) Connect() error {
	cmd := m.OSCommand.NewCmd(m.Config.UserConfig.SSHBinary, "-T", m.Config.HostName)
	m.OSCommand.PrepareForChildren(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return errors.WrapPrefix(err, "start ssh", 0)
	}
	m.sshCmd = cmd

	if _, err := io.WriteString(stdin, m.bootstrapCmdline()); err != nil {
		return errors.Wrap(err, 0)
	}

	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) == server.Banner {
			break
		}
		if err != nil {
			return errors.WrapPrefix(err, m.Tr.ConnectionFailed, 0)
		}
	}

	m.msg = protocol.NewMsgHelper(reader, stdin, m.Log)
	m.fileTransfer = filetransfer.NewFileClientCmdInterface(
		func(line string) error { return m.msg.WriteFileMsg(line) },
		m.OSCommand, m.Tr, m.Log,
	)
	return nil
}

// bootstrapCmdline is what we type into the dumb ssh session to get the
// server going on the other side
func (m *Mediator) bootstrapCmdline() string {
	userConfig := m.Config.UserConfig
	serverCmd := fmt.Sprintf("%s/lazyssh --server", userConfig.ServerInstallDir)
	if m.Config.Log {
		serverCmd += " --log"
	}
	if m.Config.UpdateServer {
		return fmt.Sprintf("rm -rf %s && mkdir %s && git clone %s %s && %s\n",
			userConfig.ServerInstallDir, userConfig.ServerInstallDir,
			userConfig.ServerRepo, userConfig.ServerInstallDir, serverCmd)
	}
	return serverCmd + "\n"
}

// Close kills the ssh child and whatever it spawned
func (m *Mediator) Close() error {
	if m.sshCmd == nil {
		return nil
	}
	return m.OSCommand.Kill(m.sshCmd)
}

// Run drives the session until stdin closes or the server hangs up
func (m *Mediator) Run() error {
	if err := m.Terminal.SetRawTerminal(); err != nil {
		return err
	}
	defer func() {
		_ = m.Terminal.RestoreTerminal()
	}()

	m.Input.Start()
	go m.demux()
	m.handleWindowSizeChange()
	m.Marker.WaitInitPrompt()

	initData, err := m.setTerminalEnv()
	for err == nil {
		var cmdline string
		cmdline, err = m.Input.ReadCmdline(initData)
		if err != nil {
			break
		}
		initData, err = m.runCmdline(cmdline)
	}
	if err != nil && !errors.Is(err, ErrInputClosed) {
		return err
	}

	// a local EOF: tell the server, then leave quietly
	if err := m.msg.WriteExitMsg(); err != nil {
		m.Log.Error(err)
	}
	return nil
}

// demux owns the read side of the framed pipe, routing each lane. An exit
// frame or a dead transport ends the process the way the original session
// would: immediately, with the terminal restored.
func (m *Mediator) demux() {
loop:
	for {
		msgType, payload, err := m.msg.ReadMsg()
		if err != nil {
			m.Log.Error(err)
			break
		}
		switch msgType {
		case protocol.MsgExit:
			m.Log.Info("server closed the session")
			break loop
		case protocol.MsgTerminal:
			m.Marker.ReceiveOutput(string(payload))
		case protocol.MsgFile:
			m.fileTransfer.AddInput(string(payload))
		case protocol.MsgSyncDir:
			select {
			case m.syncAckCh <- string(payload):
			default:
			}
		case protocol.MsgWindow:
			m.Log.Warnf("unexpected frame %c from server", byte(msgType))
		}
	}
	if err := m.msg.WriteExitMsg(); err != nil {
		m.Log.Error(err)
	}
	_ = m.Terminal.RestoreTerminal()
	_ = m.Close()
	os.Exit(0)
}

// handleWindowSizeChange pushes the terminal geometry to the server now
// and on every SIGWINCH
func (m *Mediator) handleWindowSizeChange() {
	update := func() {
		width, height := m.Terminal.GetTtySize()
		if width == 0 && height == 0 {
			return
		}
		if err := m.msg.WriteWindowMsg(width, height); err != nil {
			m.Log.Error(err)
		}
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	go func() {
		for range sigCh {
			update()
		}
	}()
	update()
}

// setTerminalEnv forwards TERM so curses programs render properly
func (m *Mediator) setTerminalEnv() ([]byte, error) {
	if termEnv := m.OSCommand.Getenv("TERM"); termEnv != "" {
		return m.runTerminalCmdline("export TERM=" + termEnv)
	}
	return nil, nil
}

// runCmdline routes one completed line by its terminator and content
func (m *Mediator) runCmdline(cmdline string) ([]byte, error) {
	switch m.terminatorOf(cmdline) {
	case TermTab:
		return m.handleTabCompletion(cmdline)
	case TermInterrupt:
		// pass the interrupt through so the shell's foreground job gets it
		return nil, m.msg.WriteTerminalMsg([]byte{TermInterrupt})
	case TermEscape, TermCtrlR:
		m.Log.Debugf("dropping line with terminator %#x", m.terminatorOf(cmdline))
		return nil, nil
	}
	if m.fileTransfer.IsCmdSupported(cmdline) {
		m.syncRemoteDir()
		if err := m.fileTransfer.RunCmd(cmdline); err != nil {
			return nil, err
		}
		return m.runTerminalCmdline("")
	}
	return m.runTerminalCmdline(cmdline)
}

func (m *Mediator) terminatorOf(cmdline string) byte {
	if cmdline == "" {
		return 0
	}
	return cmdline[len(cmdline)-1]
}

// runTerminalCmdline sends a command to the shell and keeps forwarding
// keystrokes until the end detector fires; the keystroke that follows
// completion belongs to the next command line and is handed back
func (m *Mediator) runTerminalCmdline(cmdline string) ([]byte, error) {
	wire := m.Marker.MarkNewCmdline(cmdline)
	if err := m.msg.WriteTerminalMsg([]byte(wire)); err != nil {
		return nil, err
	}
	for {
		data, err := m.Input.ReadData()
		if err != nil {
			return nil, err
		}
		if m.Marker.IsCmdFinished() {
			if err := m.fileTransfer.SetCurrentDir(m.Marker.CurrentDir()); err != nil {
				return nil, err
			}
			return data, nil
		}
		if err := m.msg.WriteTerminalMsg(data); err != nil {
			return nil, err
		}
	}
}

// syncRemoteDir aligns the server's cwd with the shell's before file
// operations, waiting for the acknowledging S frame
func (m *Mediator) syncRemoteDir() {
	if err := m.msg.WriteSyncDirMsg([]byte(m.Marker.CurrentDir())); err != nil {
		m.Log.Error(err)
		return
	}
	ack := <-m.syncAckCh
	m.Log.Debugf("server cwd now %q", ack)
}

// handleTabCompletion shows the server's candidates for the last token,
// then replays the typed line so the user can keep editing it
func (m *Mediator) handleTabCompletion(cmdline string) ([]byte, error) {
	line := strings.TrimSuffix(cmdline, string(rune(TermTab)))
	partial := ""
	if fields := strings.Fields(line); len(fields) > 0 && !strings.HasSuffix(line, " ") {
		partial = fields[len(fields)-1]
	}
	m.syncRemoteDir()
	paths, err := m.fileTransfer.GetPossiblePaths(partial)
	if err != nil {
		return nil, err
	}
	m.Terminal.ReceiveOutput("\n" + strings.Join(paths, "  ") + "\n")
	return []byte(line), nil
}
