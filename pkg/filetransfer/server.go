package filetransfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/jesseduffield/lazyssh/pkg/utils"
	"github.com/sirupsen/logrus"
)

// FileServer answers the protocol on the remote side. It blocks on its
// read function for the demultiplexer's next line and acts on the local
// (to it) filesystem. Every incoming path is expanded before use.
type FileServer struct {
	fileBase
}

// NewFileServer creates a new FileServer
func NewFileServer(writeLine WriteLineFunc, readLine ReadLineFunc, log *logrus.Entry) *FileServer {
	return &FileServer{
		fileBase: fileBase{
			writeLine: writeLine,
			readLine:  readLine,
			log:       log,
			errOut: func(format string, args ...interface{}) {
				fmt.Fprintf(os.Stderr, format+"\n", args...)
			},
		},
	}
}

// Run serves requests until an exit verb or a fatal protocol error. The
// returned error is nil only on a clean exit.
func (s *FileServer) Run() error {
	for {
		cmd, err := s.readItem(keyCmd)
		if err != nil {
			return err
		}
		switch cmd {
		case cmdCd:
			err = s.handleCd()
		case cmdGetPossiblePaths:
			err = s.handleGetPossiblePaths()
		case cmdPathType:
			err = s.handlePathType()
		case cmdExit:
			return nil
		case cmdSendFile:
			err = s.handleSendFile()
		case cmdRecvFile:
			err = s.handleRecvFile()
		case cmdMkdir:
			err = s.handleMkdir()
		case cmdRmdir:
			err = s.handleRmdir()
		case cmdSendLink:
			err = s.handleSendLink()
		case cmdRecvLink:
			err = s.handleRecvLink()
		case cmdListDir:
			err = s.handleListDir()
		default:
			s.error("unknown cmd: %s", cmd)
		}
		if err != nil {
			return err
		}
	}
}

func (s *FileServer) handleCd() error {
	path, err := s.readItem(keyPath)
	if err != nil {
		return err
	}
	path = utils.ExpandPath(path)
	if utils.StatPathKind(path) != utils.PathDir {
		s.error("Can't switch to %s", path)
		return nil
	}
	if err := os.Chdir(path); err != nil {
		s.error("Can't switch to %s", path)
	}
	return nil
}

func (s *FileServer) handleGetPossiblePaths() error {
	path, err := s.readItem(keyPath)
	if err != nil {
		return err
	}
	return s.writeItem(keyPossiblePaths, joinList(utils.PossiblePaths(path)))
}

func (s *FileServer) handlePathType() error {
	path, err := s.readItem(keyPath)
	if err != nil {
		return err
	}
	kind := utils.StatPathKind(utils.ExpandPath(path))
	return s.writeItem(keyType, string(kind))
}

// handleSendFile receives a file the client is pushing. The whole exchange
// is drained even when the target can't be written so the stream stays in
// sync.
func (s *FileServer) handleSendFile() error {
	local, err := s.readItem(keyLocal)
	if err != nil {
		return err
	}
	remote, err := s.readItem(keyRemote)
	if err != nil {
		return err
	}
	remote = utils.ExpandPath(remote)
	if dir := filepath.Dir(remote); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.error("%s", err)
		}
	}
	fileTypeValue, err := s.readItem(keyFileType)
	if err != nil {
		return err
	}

	file, createErr := os.Create(remote)
	if createErr != nil {
		s.error("%s", createErr)
	}

	var size int64
	for {
		key, value, err := s.readItems(keyData, keyDataEnd)
		if err != nil {
			return err
		}
		if key == keyData {
			data, err := decodeData(value)
			if err != nil {
				return err
			}
			size += int64(len(data))
			if file != nil {
				if _, err := file.Write(data); err != nil {
					s.error("%s", err)
					file.Close()
					file = nil
				}
			}
			continue
		}
		sentSize, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.Errorf("bad data_end value %q", value)
		}
		if size != sentSize {
			s.error("send_file %s to %s, sent_size %d, recv_size %d", local, remote, sentSize, size)
		}
		break
	}
	if file != nil {
		if err := file.Close(); err != nil {
			s.error("%s", err)
		}
	}
	if createErr == nil && hasExecutableTag(fileTypeValue) {
		if err := markExecutable(remote); err != nil {
			s.error("%s", err)
		}
	}
	return nil
}

// handleRecvFile streams a file back to the client. A missing source still
// produces a complete, zero-length exchange.
func (s *FileServer) handleRecvFile() error {
	remote, err := s.readItem(keyRemote)
	if err != nil {
		return err
	}
	if _, err := s.readItem(keyLocal); err != nil {
		return err
	}
	remote = utils.ExpandPath(remote)

	file, openErr := os.Open(remote)
	if openErr != nil {
		s.error("%s", openErr)
	}
	if err := s.writeItem(keyFileType, joinList(utils.FileAttributes(remote))); err != nil {
		return err
	}

	var size int64
	if file != nil {
		defer file.Close()
		buf := make([]byte, ChunkSize)
		for {
			n, err := file.Read(buf)
			if n > 0 {
				size += int64(n)
				if err := s.writeItem(keyData, encodeData(buf[:n])); err != nil {
					return err
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				s.error("%s", err)
				break
			}
		}
	}
	return s.writeItem(keyDataEnd, formatSize(size))
}

func (s *FileServer) handleMkdir() error {
	path, err := s.readItem(keyPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(utils.ExpandPath(path), 0o755); err != nil {
		s.error("%s", err)
	}
	return nil
}

// handleRmdir refuses the home directory and the filesystem root outright;
// everything else is removed recursively
func (s *FileServer) handleRmdir() error {
	path, err := s.readItem(keyPath)
	if err != nil {
		return err
	}
	if path == "~" || path == "/" {
		return nil
	}
	if err := os.RemoveAll(utils.ExpandPath(path)); err != nil {
		s.error("%s", err)
	}
	return nil
}

func (s *FileServer) handleSendLink() error {
	if _, err := s.readItem(keyLocal); err != nil {
		return err
	}
	remote, err := s.readItem(keyRemote)
	if err != nil {
		return err
	}
	link, err := s.readItem(keyLink)
	if err != nil {
		return err
	}
	remote = utils.ExpandPath(remote)
	if dir := filepath.Dir(remote); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.error("%s", err)
		}
	}
	if err := os.Symlink(link, remote); err != nil {
		s.error("%s", err)
	}
	return nil
}

func (s *FileServer) handleRecvLink() error {
	remote, err := s.readItem(keyRemote)
	if err != nil {
		return err
	}
	if _, err := s.readItem(keyLocal); err != nil {
		return err
	}
	remote = utils.ExpandPath(remote)
	if utils.ClassifyPath(remote) != utils.PathLink {
		s.error("Remote %s is not a link", remote)
		return s.writeItem(keyLink, "")
	}
	link, err := os.Readlink(remote)
	if err != nil {
		s.error("%s", err)
		return s.writeItem(keyLink, "")
	}
	return s.writeItem(keyLink, link)
}

func (s *FileServer) handleListDir() error {
	path, err := s.readItem(keyPath)
	if err != nil {
		return err
	}
	dirs, files, links, listErr := utils.ListDirEntries(utils.ExpandPath(path))
	if listErr != nil {
		s.error("%s", listErr)
	}
	if err := s.writeItem(keyDirs, joinList(dirs)); err != nil {
		return err
	}
	if err := s.writeItem(keyFiles, joinList(files)); err != nil {
		return err
	}
	return s.writeItem(keyLinks, joinList(links))
}
