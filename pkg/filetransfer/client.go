package filetransfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/jesseduffield/lazyssh/pkg/i18n"
	"github.com/jesseduffield/lazyssh/pkg/utils"
	"github.com/sirupsen/logrus"
)

// FileClient drives the protocol from the local side. Its reads block until
// the demultiplexer feeds it the server's next reply line, so a method whose
// verb has a reply returns only once that reply has arrived. Verbs without a
// reply (cd, exit, send_file, mkdir, rmdir, send_link) return as soon as
// their lines are written; the server may still be acting on them.
type FileClient struct {
	fileBase
	Tr *i18n.TranslationSet
}

// NewFileClient creates a new FileClient
func NewFileClient(writeLine WriteLineFunc, readLine ReadLineFunc, tr *i18n.TranslationSet, log *logrus.Entry) *FileClient {
	return &FileClient{
		fileBase: fileBase{
			writeLine: writeLine,
			readLine:  readLine,
			log:       log,
			errOut: func(format string, args ...interface{}) {
				fmt.Fprintf(os.Stderr, format+"\n", args...)
			},
		},
		Tr: tr,
	}
}

// SetRemoteCwd points the server's file operations at the shell's cwd
func (c *FileClient) SetRemoteCwd(cwd string) error {
	if err := c.writeItem(keyCmd, cmdCd); err != nil {
		return err
	}
	return c.writeItem(keyPath, cwd)
}

// Exit tells the server's file responder to wind down
func (c *FileClient) Exit() error {
	return c.writeItem(keyCmd, cmdExit)
}

func (c *FileClient) remotePathType(remote string) (utils.PathKind, error) {
	if err := c.writeItem(keyCmd, cmdPathType); err != nil {
		return "", err
	}
	if err := c.writeItem(keyPath, remote); err != nil {
		return "", err
	}
	value, err := c.readItem(keyType)
	if err != nil {
		return "", err
	}
	return utils.PathKind(value), nil
}

// Send ships a local file or directory tree to remote. Whether remote is
// treated as the target itself or as its containing directory depends on
// what already exists on the other side.
func (c *FileClient) Send(local, remote string) error {
	local = utils.ExpandPath(local)
	localType := utils.StatPathKind(local)
	if localType == utils.PathNotExist {
		c.error(c.Tr.PathNotFoundError, local)
		return nil
	}
	remoteType, err := c.remotePathType(remote)
	if err != nil {
		return err
	}
	if localType == utils.PathFile {
		if remoteType == utils.PathFile || remoteType == utils.PathNotExist {
			return c.SendFile(local, remote)
		}
		return c.SendFile(local, filepath.Join(remote, filepath.Base(local)))
	}
	switch remoteType {
	case utils.PathFile:
		c.error(c.Tr.CantSendDirToFile, remote)
		return nil
	case utils.PathDir:
		basename := filepath.Base(strings.TrimSuffix(local, "/"))
		return c.SendDir(local, filepath.Join(remote, basename))
	default:
		return c.SendDir(local, remote)
	}
}

// SendDir walks the local tree, recreating it remotely. The remote root is
// removed and remade first so the target is exactly what was sent.
func (c *FileClient) SendDir(local, remote string) error {
	if !strings.HasSuffix(local, "/") {
		local += "/"
	}
	if !strings.HasSuffix(remote, "/") {
		remote += "/"
	}
	c.log.Debugf("SendDir(local %s, remote %s)", local, remote)
	if err := c.Rmdir(remote); err != nil {
		return err
	}
	if err := c.Mkdir(remote); err != nil {
		return err
	}
	return filepath.WalkDir(local, func(path string, entry os.DirEntry, err error) error {
		if err != nil || path == local {
			return err
		}
		remotePath := remote + path[len(local):]
		switch utils.ClassifyPath(path) {
		case utils.PathLink:
			return c.SendLink(path, remotePath)
		case utils.PathDir:
			return c.Mkdir(remotePath)
		default:
			return c.SendFile(path, remotePath)
		}
	})
}

// SendFile streams one regular file, hex-encoded in bounded chunks, with a
// byte-count trailer the receiver checks
func (c *FileClient) SendFile(local, remote string) error {
	file, err := os.Open(local)
	if err != nil {
		c.error(c.Tr.PathNotFoundError, local)
		return nil
	}
	defer file.Close()

	if err := c.writeItem(keyCmd, cmdSendFile); err != nil {
		return err
	}
	if err := c.writeItem(keyLocal, local); err != nil {
		return err
	}
	if err := c.writeItem(keyRemote, remote); err != nil {
		return err
	}
	if err := c.writeItem(keyFileType, joinList(utils.FileAttributes(local))); err != nil {
		return err
	}

	var size int64
	buf := make([]byte, ChunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			size += int64(n)
			if err := c.writeItem(keyData, encodeData(buf[:n])); err != nil {
				return err
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			c.error("%s", err)
			break
		}
	}
	return c.writeItem(keyDataEnd, formatSize(size))
}

// SendLink recreates a local symlink on the remote side, target string
// passed through verbatim
func (c *FileClient) SendLink(local, remote string) error {
	if utils.ClassifyPath(local) != utils.PathLink {
		c.error(c.Tr.NotALinkError, local)
		return nil
	}
	link, err := os.Readlink(local)
	if err != nil {
		c.error(c.Tr.NotALinkError, local)
		return nil
	}
	if err := c.writeItem(keyCmd, cmdSendLink); err != nil {
		return err
	}
	if err := c.writeItem(keyLocal, local); err != nil {
		return err
	}
	if err := c.writeItem(keyRemote, remote); err != nil {
		return err
	}
	return c.writeItem(keyLink, link)
}

// Recv pulls a remote file or directory tree down to local, with the same
// target rules as Send but the sides reversed
func (c *FileClient) Recv(remote, local string) error {
	local = utils.ExpandPath(local)
	localType := utils.StatPathKind(local)
	remoteType, err := c.remotePathType(remote)
	if err != nil {
		return err
	}
	switch remoteType {
	case utils.PathFile:
		if localType == utils.PathFile || localType == utils.PathNotExist {
			return c.RecvFile(remote, local)
		}
		return c.RecvFile(remote, filepath.Join(local, filepath.Base(remote)))
	case utils.PathDir:
		switch localType {
		case utils.PathFile:
			c.error(c.Tr.CantRecvDirToFile, local)
			return nil
		case utils.PathDir:
			basename := filepath.Base(strings.TrimSuffix(remote, "/"))
			return c.RecvDir(remote, filepath.Join(local, basename))
		default:
			return c.RecvDir(remote, local)
		}
	default:
		c.error(c.Tr.PathNotFoundError, remote)
		return nil
	}
}

// RecvDir breadth-first walks the remote tree via list_dir, mirroring it
// locally
func (c *FileClient) RecvDir(remote, local string) error {
	if !strings.HasSuffix(local, "/") {
		local += "/"
	}
	if !strings.HasSuffix(remote, "/") {
		remote += "/"
	}
	c.log.Debugf("RecvDir(remote %s, local %s)", remote, local)
	if err := os.MkdirAll(local, 0o755); err != nil {
		c.error("%s", err)
		return nil
	}
	waitingDirs := []string{strings.TrimSuffix(remote, "/")}
	for len(waitingDirs) > 0 {
		remotePath := waitingDirs[0]
		waitingDirs = waitingDirs[1:]

		if err := c.writeItem(keyCmd, cmdListDir); err != nil {
			return err
		}
		if err := c.writeItem(keyPath, remotePath); err != nil {
			return err
		}
		dirsValue, err := c.readItem(keyDirs)
		if err != nil {
			return err
		}
		filesValue, err := c.readItem(keyFiles)
		if err != nil {
			return err
		}
		linksValue, err := c.readItem(keyLinks)
		if err != nil {
			return err
		}
		dirs, files, links := splitList(dirsValue), splitList(filesValue), splitList(linksValue)
		c.log.Debugf("dirs = %v, files = %v, links = %v", dirs, files, links)

		toLocal := func(remoteChild string) string {
			return local + remoteChild[len(remote):]
		}
		for _, dir := range dirs {
			remoteDir := filepath.Join(remotePath, dir)
			if err := os.MkdirAll(toLocal(remoteDir), 0o755); err != nil {
				c.error("%s", err)
				continue
			}
			waitingDirs = append(waitingDirs, remoteDir)
		}
		for _, file := range files {
			remoteFile := filepath.Join(remotePath, file)
			if err := c.RecvFile(remoteFile, toLocal(remoteFile)); err != nil {
				return err
			}
		}
		for _, link := range links {
			remoteLink := filepath.Join(remotePath, link)
			if err := c.RecvLink(remoteLink, toLocal(remoteLink)); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecvFile pulls one regular file. The protocol exchange is completed even
// when the local file can't be written, so one bad target doesn't lose the
// session.
func (c *FileClient) RecvFile(remote, local string) error {
	if err := c.writeItem(keyCmd, cmdRecvFile); err != nil {
		return err
	}
	if err := c.writeItem(keyRemote, remote); err != nil {
		return err
	}
	if err := c.writeItem(keyLocal, local); err != nil {
		return err
	}
	if dir := filepath.Dir(local); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.error("%s", err)
		}
	}
	fileTypeValue, err := c.readItem(keyFileType)
	if err != nil {
		return err
	}

	file, createErr := os.Create(local)
	if createErr != nil {
		c.error("%s", createErr)
	}

	var size int64
	for {
		key, value, err := c.readItems(keyData, keyDataEnd)
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
					c.error("%s", err)
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
			c.error("recv_file %s to %s, sent_size %d, recv_size %d", remote, local, sentSize, size)
		}
		break
	}
	if file != nil {
		if err := file.Close(); err != nil {
			c.error("%s", err)
		}
	}
	if createErr == nil && hasExecutableTag(fileTypeValue) {
		if err := markExecutable(local); err != nil {
			c.error("%s", err)
		}
	}
	return nil
}

// RecvLink pulls one symlink down, recreating it with the exact target the
// remote link had
func (c *FileClient) RecvLink(remote, local string) error {
	if dir := filepath.Dir(local); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.error("%s", err)
		}
	}
	if err := c.writeItem(keyCmd, cmdRecvLink); err != nil {
		return err
	}
	if err := c.writeItem(keyRemote, remote); err != nil {
		return err
	}
	if err := c.writeItem(keyLocal, local); err != nil {
		return err
	}
	link, err := c.readItem(keyLink)
	if err != nil {
		return err
	}
	if link != "" {
		if err := os.Symlink(link, local); err != nil {
			c.error("%s", err)
		}
	}
	return nil
}

// GetPossiblePaths asks the server for tab-completion candidates
func (c *FileClient) GetPossiblePaths(path string) ([]string, error) {
	if err := c.writeItem(keyCmd, cmdGetPossiblePaths); err != nil {
		return nil, err
	}
	if err := c.writeItem(keyPath, path); err != nil {
		return nil, err
	}
	value, err := c.readItem(keyPossiblePaths)
	if err != nil {
		return nil, err
	}
	return splitList(value), nil
}

// Mkdir creates a remote directory, parents included
func (c *FileClient) Mkdir(path string) error {
	if err := c.writeItem(keyCmd, cmdMkdir); err != nil {
		return err
	}
	return c.writeItem(keyPath, path)
}

// Rmdir removes a remote path recursively. The server refuses `~` and `/`.
func (c *FileClient) Rmdir(path string) error {
	if err := c.writeItem(keyCmd, cmdRmdir); err != nil {
		return err
	}
	return c.writeItem(keyPath, path)
}

func hasExecutableTag(fileTypeValue string) bool {
	for _, tag := range splitList(fileTypeValue) {
		if tag == fileTypeExecutable {
			return true
		}
	}
	return false
}

func markExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0o111)
}
