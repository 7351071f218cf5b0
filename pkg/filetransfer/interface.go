package filetransfer

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-errors/errors"
	"github.com/jesseduffield/lazyssh/pkg/commands"
	"github.com/jesseduffield/lazyssh/pkg/i18n"
	"github.com/jesseduffield/lazyssh/pkg/utils"
	"github.com/mgutz/str"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// inputBacklog bounds how many reply lines can pile up before the consumer
// drains them; a single list_dir reply is three lines, file data arrives one
// chunk at a time, so this is generous.
const inputBacklog = 1024

// operationalError is a user's problem, not the session's: it gets printed
// and the session keeps going.
type operationalError struct {
	message string
}

func (e *operationalError) Error() string {
	return e.message
}

func opErrorf(format string, args ...interface{}) error {
	return &operationalError{message: fmt.Sprintf(format, args...)}
}

// FileClientCmdInterface is the user-facing side of the file transfer
// client: it recognises the local verbs typed at the wrapped prompt and
// drives the FileClient for the ones that talk to the server. Reply lines
// arrive asynchronously via AddInput because the frame demultiplexer owns
// the read side of the pipe.
type FileClientCmdInterface struct {
	Log       *logrus.Entry
	Tr        *i18n.TranslationSet
	OSCommand *commands.OSCommand

	client     *FileClient
	inputCh    chan string
	currentDir string
}

// NewFileClientCmdInterface creates a new FileClientCmdInterface
func NewFileClientCmdInterface(writeLine WriteLineFunc, osCommand *commands.OSCommand, tr *i18n.TranslationSet, log *logrus.Entry) *FileClientCmdInterface {
	ci := &FileClientCmdInterface{
		Log:       log,
		Tr:        tr,
		OSCommand: osCommand,
		inputCh:   make(chan string, inputBacklog),
	}
	readLine := func() (string, error) {
		line, ok := <-ci.inputCh
		if !ok {
			return "", errors.Errorf("file transfer input closed")
		}
		return line, nil
	}
	ci.client = NewFileClient(writeLine, readLine, tr, log)
	return ci
}

var supportedCmds = []string{"lls", "lcp", "lcd", "lrm", "lmkdir", "local", "rcp", "send", "recv", "test", "help"}

// IsCmdSupported tells us whether a command line is one of ours rather
// than something for the remote shell
func (ci *FileClientCmdInterface) IsCmdSupported(cmdline string) bool {
	args := strings.Fields(cmdline)
	return len(args) > 0 && lo.Contains(supportedCmds, args[0])
}

// AddInput feeds one received F-lane payload to the blocked FileClient
func (ci *FileClientCmdInterface) AddInput(line string) {
	ci.inputCh <- line
}

// CloseInput unblocks the FileClient for good; any exchange still in
// flight fails with a protocol error
func (ci *FileClientCmdInterface) CloseInput() {
	close(ci.inputCh)
}

// SetCurrentDir re-aligns the server's cwd with the shell's when it moved
func (ci *FileClientCmdInterface) SetCurrentDir(newCurrentDir string) error {
	if ci.currentDir == newCurrentDir {
		return nil
	}
	ci.currentDir = newCurrentDir
	return ci.client.SetRemoteCwd(newCurrentDir)
}

// GetPossiblePaths asks the server for tab-completion candidates
func (ci *FileClientCmdInterface) GetPossiblePaths(path string) ([]string, error) {
	return ci.client.GetPossiblePaths(path)
}

// Exit winds down the server-side file responder
func (ci *FileClientCmdInterface) Exit() error {
	return ci.client.Exit()
}

// RunCmd executes one supported command line. Operational problems are
// printed to stderr and swallowed; a returned error means the transport is
// no longer usable.
func (ci *FileClientCmdInterface) RunCmd(cmdline string) error {
	err := ci.runCmd(cmdline)
	var opErr *operationalError
	if errors.As(err, &opErr) {
		fmt.Fprintln(os.Stderr, utils.ColoredString(opErr.message, color.FgRed))
		return nil
	}
	return err
}

func (ci *FileClientCmdInterface) runCmd(cmdline string) error {
	args := str.ToArgv(strings.TrimSpace(cmdline))
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "lls", "lrm", "lmkdir":
		return ci.runLocalCmd(append([]string{args[0][1:]}, args[1:]...))
	case "local":
		return ci.runLocalCmd(args[1:])
	case "lcd":
		return ci.chdir(args)
	case "lcp", "send":
		return ci.sendFiles(args)
	case "rcp", "recv":
		return ci.recvFiles(args)
	case "test":
		return ci.runTest()
	case "help":
		return ci.printHelp()
	default:
		return opErrorf(ci.Tr.UnexpectedCommand, args[0])
	}
}

func (ci *FileClientCmdInterface) runLocalCmd(args []string) error {
	if len(args) == 0 {
		return opErrorf(ci.Tr.UnexpectedCommand, "local")
	}
	commandStr := strings.Join(args, " ")
	if err := ci.OSCommand.RunAttachedCommand(commandStr); err != nil {
		return opErrorf(ci.Tr.RunLocalFailedError, commandStr)
	}
	return nil
}

func (ci *FileClientCmdInterface) chdir(args []string) error {
	if len(args) != 2 {
		return opErrorf(ci.Tr.WrongChdirArgsError)
	}
	path := utils.ExpandPath(args[1])
	if utils.StatPathKind(path) != utils.PathDir {
		return opErrorf(ci.Tr.NotADirectoryError, path)
	}
	return commands.WrapError(os.Chdir(path))
}

func (ci *FileClientCmdInterface) sendFiles(args []string) error {
	if len(args) != 3 {
		return opErrorf(ci.Tr.WrongSendArgsError, args[0])
	}
	return ci.client.Send(args[1], args[2])
}

func (ci *FileClientCmdInterface) recvFiles(args []string) error {
	if len(args) != 3 {
		return opErrorf(ci.Tr.WrongRecvArgsError, args[0])
	}
	return ci.client.Recv(args[1], args[2])
}

func (ci *FileClientCmdInterface) runTest() error {
	if err := RunTests(ci.client); err != nil {
		return err
	}
	fmt.Println(ci.Tr.TestsPassed)
	return nil
}

func (ci *FileClientCmdInterface) printHelp() error {
	fmt.Print(ci.Tr.FileTransferHelp)
	return nil
}
