// Package filetransfer implements the line-oriented file transfer protocol
// spoken between the local client and the remote server over the F lane of
// the framed transport. Every message is a single `key: value` line; binary
// file contents travel hex-encoded in 4096-byte chunks so the protocol
// stays printable end to end.
package filetransfer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
)

// ChunkSize is how many raw bytes a single data line may carry
const ChunkSize = 4096

// The keys a peer may send. Anything else on the wire is fatal.
const (
	keyCmd           = "cmd"
	keyPath          = "path"
	keyType          = "type"
	keyLocal         = "local"
	keyRemote        = "remote"
	keyFileType      = "file_type"
	keyData          = "data"
	keyDataEnd       = "data_end"
	keyDirs          = "dirs"
	keyFiles         = "files"
	keyLinks         = "links"
	keyLink          = "link"
	keyPossiblePaths = "possible_paths"
)

// The verbs a client may issue
const (
	cmdCd               = "cd"
	cmdGetPossiblePaths = "get_possible_paths"
	cmdPathType         = "path_type"
	cmdExit             = "exit"
	cmdSendFile         = "send_file"
	cmdRecvFile         = "recv_file"
	cmdMkdir            = "mkdir"
	cmdRmdir            = "rmdir"
	cmdListDir          = "list_dir"
	cmdSendLink         = "send_link"
	cmdRecvLink         = "recv_link"
)

// fileTypeExecutable is the only file attribute tag we transport
const fileTypeExecutable = "executable"

// WriteLineFunc sends one protocol line to the peer
type WriteLineFunc func(line string) error

// ReadLineFunc blocks until the peer's next protocol line arrives
type ReadLineFunc func() (string, error)

// fileBase is the shared half of FileClient and FileServer: reading and
// writing `key: value` lines and converting file data to and from its hex
// form. A malformed line means the stream is out of sync and the returned
// error must tear the session down.
type fileBase struct {
	writeLine WriteLineFunc
	readLine  ReadLineFunc
	log       *logrus.Entry
	errOut    func(format string, args ...interface{})
}

func (b *fileBase) readItem(expectedKey string) (string, error) {
	_, value, err := b.readItems(expectedKey)
	return value, err
}

func (b *fileBase) readItems(expectedKeys ...string) (string, string, error) {
	line, err := b.readLine()
	if err != nil {
		return "", "", errors.WrapPrefix(err, "unexpected end", 0)
	}
	b.log.Debugf("readItems(%v) = %q", expectedKeys, line)
	for _, expectedKey := range expectedKeys {
		if strings.HasPrefix(line, expectedKey+": ") {
			return expectedKey, line[len(expectedKey)+2:], nil
		}
	}
	return "", "", errors.Errorf("expected keys are %v, but get %q", expectedKeys, line)
}

func (b *fileBase) writeItem(key, value string) error {
	b.log.Debugf("writeItem(%s: %s)", key, value)
	return b.writeLine(key + ": " + value)
}

// error reports a user-visible operational problem. It never tears the
// connection down.
func (b *fileBase) error(format string, args ...interface{}) {
	b.errOut(format, args...)
}

func encodeData(data []byte) string {
	return hex.EncodeToString(data)
}

func decodeData(s string) ([]byte, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.WrapPrefix(err, "bad data line", 0)
	}
	return data, nil
}

// joinList and splitList carry name lists and attribute sets as a single
// comma-space separated value
func joinList(items []string) string {
	return strings.Join(items, ", ")
}

func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ", ")
}

func formatSize(size int64) string {
	return fmt.Sprintf("%d", size)
}
