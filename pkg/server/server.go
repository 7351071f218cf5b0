// Package server is the remote end of a session: it runs a shell under a
// pseudo-terminal, relays its bytes over the framed transport, and answers
// file-transfer requests on the side, all through the single ssh pipe that
// launched it.
package server

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/creack/pty"
	"github.com/go-errors/errors"
	"github.com/jesseduffield/lazyssh/pkg/config"
	"github.com/jesseduffield/lazyssh/pkg/filetransfer"
	"github.com/jesseduffield/lazyssh/pkg/protocol"
	"github.com/sirupsen/logrus"
)

// Banner is printed on stdout before the pipe switches to framed mode; the
// client scans for it line by line
const Banner = "ssh server started"

// Server hosts the shell and serves the framed protocol
type Server struct {
	Log    *logrus.Entry
	Config *config.AppConfig

	msg         *protocol.MsgHelper
	ptmx        *os.File
	shellCmd    *exec.Cmd
	cwdResolver ShellCwdResolver
	fileInputCh chan string
}

// NewServer creates a new Server speaking frames on reader/writer
func NewServer(reader io.Reader, writer io.Writer, config *config.AppConfig, log *logrus.Entry) *Server {
	return &Server{
		Log:         log,
		Config:      config,
		msg:         protocol.NewMsgHelper(reader, writer, log),
		fileInputCh: make(chan string, 1024),
	}
}

// Run prints the banner, starts the shell and serves frames until the
// client hangs up or the transport dies
func (s *Server) Run() error {
	fmt.Print("\n" + Banner + "\n")

	shell := s.Config.UserConfig.Shell
	s.shellCmd = exec.Command(shell)
	ptmx, err := pty.Start(s.shellCmd)
	if err != nil {
		return errors.WrapPrefix(err, "start shell", 0)
	}
	s.ptmx = ptmx
	defer ptmx.Close()

	s.cwdResolver = newShellCwdResolver(s.shellCmd.Process.Pid)

	go s.relayShellOutput()
	go s.runFileServer()

	return s.demux()
}

// relayShellOutput copies everything the shell prints into T frames. EOF on
// the pty master means the shell is gone, which ends the session.
func (s *Server) relayShellOutput() {
	buf := make([]byte, 1024)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			if writeErr := s.msg.WriteTerminalMsg(buf[:n]); writeErr != nil {
				s.Log.Error(writeErr)
				return
			}
		}
		if err != nil {
			s.Log.Infof("pty read finished: %s", err)
			if writeErr := s.msg.WriteExitMsg(); writeErr != nil {
				s.Log.Error(writeErr)
			}
			return
		}
	}
}

// runFileServer services file-transfer lines from the demuxer's queue,
// writing replies through the shared frame writer
func (s *Server) runFileServer() {
	fileServer := filetransfer.NewFileServer(
		func(line string) error {
			return s.msg.WriteFileMsg(line)
		},
		func() (string, error) {
			line, ok := <-s.fileInputCh
			if !ok {
				return "", errors.Errorf("file input closed")
			}
			return line, nil
		},
		s.Log,
	)
	if err := fileServer.Run(); err != nil {
		s.Log.Error(err)
	}
}

// demux reads frames and dispatches them until an exit frame arrives
func (s *Server) demux() error {
	for {
		msgType, payload, err := s.msg.ReadMsg()
		if err != nil {
			s.terminateShell()
			return err
		}
		switch msgType {
		case protocol.MsgExit:
			s.terminateShell()
			return nil
		case protocol.MsgTerminal:
			if _, err := s.ptmx.Write(payload); err != nil {
				s.Log.Error(err)
			}
		case protocol.MsgWindow:
			s.applyWindowSize(string(payload))
		case protocol.MsgFile:
			s.fileInputCh <- string(payload)
		case protocol.MsgSyncDir:
			s.syncDir()
		}
	}
}

func (s *Server) terminateShell() {
	if s.shellCmd != nil && s.shellCmd.Process != nil {
		_ = s.shellCmd.Process.Signal(syscall.SIGTERM)
	}
}

// applyWindowSize parses a "W_H" payload and passes it on to the pty so
// curses programs in the shell see the client's real geometry
func (s *Server) applyWindowSize(payload string) {
	width, height, err := ParseWindowSize(payload)
	if err != nil {
		s.Log.Error(err)
		return
	}
	s.Log.Infof("set window size (%d, %d)", width, height)
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(height), Cols: uint16(width)}); err != nil {
		s.Log.Error(err)
	}
}

// syncDir moves the server process into the shell's current directory so
// relative paths in file-transfer commands mean what the user thinks, then
// acknowledges with an S frame
func (s *Server) syncDir() {
	cwd, err := s.cwdResolver.ShellCwd()
	if err != nil {
		s.Log.Error(err)
		cwd, _ = os.Getwd()
	} else if err := os.Chdir(cwd); err != nil {
		s.Log.Error(err)
	}
	if err := s.msg.WriteSyncDirMsg([]byte(cwd)); err != nil {
		s.Log.Error(err)
	}
}

// ParseWindowSize parses the W lane's "W_H" payload
func ParseWindowSize(payload string) (width, height int, err error) {
	parts := strings.Split(payload, "_")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("bad window size payload %q", payload)
	}
	width, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Errorf("bad window size payload %q", payload)
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Errorf("bad window size payload %q", payload)
	}
	return width, height, nil
}
