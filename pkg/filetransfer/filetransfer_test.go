package filetransfer

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jesseduffield/lazyssh/pkg/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoopback wires a FileClient straight to a FileServer through in-memory
// queues, the way the real session wires them through F frames.
func newLoopback(t *testing.T) *FileClient {
	t.Helper()

	toServer := make(chan string, 4096)
	toClient := make(chan string, 4096)

	server := NewFileServer(
		func(line string) error {
			toClient <- line
			return nil
		},
		func() (string, error) {
			line, ok := <-toServer
			if !ok {
				return "", fmt.Errorf("input closed")
			}
			return line, nil
		},
		commands.NewDummyLog(),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, server.Run())
	}()

	client := NewFileClient(
		func(line string) error {
			toServer <- line
			return nil
		},
		func() (string, error) {
			line, ok := <-toClient
			if !ok {
				return "", fmt.Errorf("input closed")
			}
			return line, nil
		},
		commands.NewDummyTranslationSet(),
		commands.NewDummyLog(),
	)

	t.Cleanup(func() {
		require.NoError(t, client.Exit())
		wg.Wait()
	})

	return client
}

// waitForServer makes one request that has a reply. The server handles
// requests in order, so once it returns every request written before it
// (such as a send_file, which has no reply) has been carried out.
func waitForServer(t *testing.T, client *FileClient) {
	t.Helper()
	_, err := client.GetPossiblePaths("")
	require.NoError(t, err)
}

func TestSendRecvFileRoundTrip(t *testing.T) {
	client := newLoopback(t)
	dir := t.TempDir()

	local := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello\n"), 0o644))
	remote := filepath.Join(dir, "remote", "a.txt")

	require.NoError(t, client.Send(local, remote))

	back := filepath.Join(dir, "a2.txt")
	require.NoError(t, client.Recv(remote, back))

	got, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.EqualValues(t, "hello\n", string(got))

	info, err := os.Stat(back)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o111)
}

func TestSendRecvExecutableFile(t *testing.T) {
	client := newLoopback(t)
	dir := t.TempDir()

	local := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(local, []byte("#!/bin/sh\necho hi\n"), 0o755))
	remote := filepath.Join(dir, "remote", "run.sh")

	require.NoError(t, client.Send(local, remote))
	waitForServer(t, client)

	remoteInfo, err := os.Stat(remote)
	require.NoError(t, err)
	assert.NotZero(t, remoteInfo.Mode().Perm()&0o111)

	back := filepath.Join(dir, "run2.sh")
	require.NoError(t, client.Recv(remote, back))

	got, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.EqualValues(t, "#!/bin/sh\necho hi\n", string(got))

	info, err := os.Stat(back)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)
}

func TestSendRecvDirWithSymlink(t *testing.T) {
	client := newLoopback(t)
	dir := t.TempDir()

	tree := filepath.Join(dir, "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "f1"), []byte("abc"), 0o644))
	require.NoError(t, os.Symlink("f1", filepath.Join(tree, "lnk")))

	remote := filepath.Join(dir, "remote-tree")
	require.NoError(t, client.Send(tree, remote))

	back := filepath.Join(dir, "tree2")
	require.NoError(t, client.Recv(remote, back))

	got, err := os.ReadFile(filepath.Join(back, "f1"))
	require.NoError(t, err)
	assert.EqualValues(t, "abc", string(got))

	target, err := os.Readlink(filepath.Join(back, "lnk"))
	require.NoError(t, err)
	assert.EqualValues(t, "f1", target)

	info, err := os.Stat(filepath.Join(back, "sub"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSendIntoExistingDirUsesBasename(t *testing.T) {
	client := newLoopback(t)
	dir := t.TempDir()

	local := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o644))

	remoteDir := filepath.Join(dir, "inbox")
	require.NoError(t, os.Mkdir(remoteDir, 0o755))

	require.NoError(t, client.Send(local, remoteDir))
	waitForServer(t, client)

	_, err := os.Stat(filepath.Join(remoteDir, "notes.txt"))
	assert.NoError(t, err)
}

func TestRecvMissingRemoteReportsButKeepsSession(t *testing.T) {
	client := newLoopback(t)
	dir := t.TempDir()

	var reported []string
	client.errOut = func(format string, args ...interface{}) {
		reported = append(reported, fmt.Sprintf(format, args...))
	}

	require.NoError(t, client.Recv(filepath.Join(dir, "nope"), filepath.Join(dir, "out")))
	assert.NotEmpty(t, reported)

	// the session is still usable afterwards
	local := filepath.Join(dir, "ok")
	require.NoError(t, os.WriteFile(local, []byte("ok"), 0o644))
	require.NoError(t, client.Send(local, filepath.Join(dir, "ok2")))
	waitForServer(t, client)
	_, err := os.Stat(filepath.Join(dir, "ok2"))
	assert.NoError(t, err)
}

func TestZeroByteFile(t *testing.T) {
	client := newLoopback(t)
	dir := t.TempDir()

	local := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(local, nil, 0o644))
	remote := filepath.Join(dir, "empty2")

	require.NoError(t, client.Send(local, remote))
	waitForServer(t, client)

	info, err := os.Stat(remote)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestGetPossiblePaths(t *testing.T) {
	client := newLoopback(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alps"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta"), []byte("b"), 0o644))

	paths, err := client.GetPossiblePaths(filepath.Join(dir, "al"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "alps"}, paths)
}

// scriptedClient records everything a FileClient writes and replies from a
// canned list, so we can look at the exact wire exchange.
func scriptedClient(t *testing.T, replies []string) (*FileClient, *[]string) {
	t.Helper()
	written := &[]string{}
	i := 0
	client := NewFileClient(
		func(line string) error {
			*written = append(*written, line)
			return nil
		},
		func() (string, error) {
			if i >= len(replies) {
				return "", fmt.Errorf("no more replies")
			}
			line := replies[i]
			i++
			return line, nil
		},
		commands.NewDummyTranslationSet(),
		commands.NewDummyLog(),
	)
	return client, written
}

func TestSendFileChunking(t *testing.T) {
	type scenario struct {
		size          int64
		expectedData  int
		expectedSizes []int
	}

	scenarios := []scenario{
		{0, 0, []int{}},
		{4096, 1, []int{4096}},
		{4097, 2, []int{4096, 1}},
		{10000, 3, []int{4096, 4096, 1808}},
	}

	for _, s := range scenarios {
		dir := t.TempDir()
		local := filepath.Join(dir, "payload")
		payload := make([]byte, s.size)
		_, err := rand.New(rand.NewSource(s.size)).Read(payload)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(local, payload, 0o644))

		client, written := scriptedClient(t, nil)
		require.NoError(t, client.SendFile(local, "/tmp/payload"))

		dataLines := []string{}
		for _, line := range *written {
			if strings.HasPrefix(line, "data: ") {
				dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
			}
		}
		require.Len(t, dataLines, s.expectedData)
		var total []byte
		for i, line := range dataLines {
			assert.Len(t, line, s.expectedSizes[i]*2)
			decoded, err := decodeData(line)
			require.NoError(t, err)
			total = append(total, decoded...)
		}
		assert.True(t, bytes.Equal(payload, total))

		last := (*written)[len(*written)-1]
		assert.EqualValues(t, fmt.Sprintf("data_end: %d", s.size), last)
	}
}

func TestSendFileLineOrder(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(local, []byte("hi"), 0o644))

	client, written := scriptedClient(t, nil)
	require.NoError(t, client.SendFile(local, "/tmp/f"))

	require.Len(t, *written, 6)
	assert.EqualValues(t, "cmd: send_file", (*written)[0])
	assert.EqualValues(t, "local: "+local, (*written)[1])
	assert.EqualValues(t, "remote: /tmp/f", (*written)[2])
	assert.EqualValues(t, "file_type: ", (*written)[3])
	assert.EqualValues(t, "data: 6869", (*written)[4])
	assert.EqualValues(t, "data_end: 2", (*written)[5])
}

func TestRecvFileSizeMismatchReported(t *testing.T) {
	dir := t.TempDir()
	client, _ := scriptedClient(t, []string{
		"file_type: ",
		"data: " + encodeData([]byte("abc")),
		"data_end: 10000",
	})
	var reported []string
	client.errOut = func(format string, args ...interface{}) {
		reported = append(reported, fmt.Sprintf(format, args...))
	}

	local := filepath.Join(dir, "out")
	require.NoError(t, client.RecvFile("/tmp/in", local))
	require.Len(t, reported, 1)
	assert.Contains(t, reported[0], "sent_size 10000, recv_size 3")
}

func TestUnexpectedKeyIsFatal(t *testing.T) {
	client, _ := scriptedClient(t, []string{"bogus line without separator"})
	_, err := client.GetPossiblePaths("x")
	assert.Error(t, err)

	client, _ = scriptedClient(t, []string{"surprise: value"})
	_, err = client.GetPossiblePaths("x")
	assert.Error(t, err)
}

func TestHexRoundTrip(t *testing.T) {
	payload := make([]byte, 1<<16)
	_, err := rand.New(rand.NewSource(7)).Read(payload)
	require.NoError(t, err)

	encoded := encodeData(payload)
	assert.Len(t, encoded, len(payload)*2)
	assert.NotRegexp(t, "[^0-9a-f]", encoded)

	decoded, err := decodeData(encoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, decoded))
}
