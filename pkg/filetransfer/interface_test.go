package filetransfer

import (
	"os"
	"testing"

	"github.com/jesseduffield/lazyssh/pkg/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterface(t *testing.T) (*FileClientCmdInterface, *[]string) {
	t.Helper()
	written := &[]string{}
	ci := NewFileClientCmdInterface(
		func(line string) error {
			*written = append(*written, line)
			return nil
		},
		commands.NewDummyOSCommand(),
		commands.NewDummyTranslationSet(),
		commands.NewDummyLog(),
	)
	return ci, written
}

// TestIsCmdSupported is a function.
func TestIsCmdSupported(t *testing.T) {
	ci, _ := newTestInterface(t)

	type scenario struct {
		cmdline  string
		expected bool
	}

	scenarios := []scenario{
		{"send a b", true},
		{"recv a b", true},
		{"lcp a b", true},
		{"rcp a b", true},
		{"lls -l", true},
		{"  lcd /tmp", true},
		{"help", true},
		{"test", true},
		{"ls -l", false},
		{"vi notes.txt", false},
		{"sendmail me", false},
		{"", false},
	}

	for _, s := range scenarios {
		assert.EqualValues(t, s.expected, ci.IsCmdSupported(s.cmdline), s.cmdline)
	}
}

func TestChdirCommand(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })

	ci, _ := newTestInterface(t)
	dir := t.TempDir()

	require.NoError(t, ci.RunCmd("lcd "+dir))

	got, err := os.Getwd()
	require.NoError(t, err)
	assert.EqualValues(t, dir, got)

	// a bogus target is reported but doesn't error out the session
	require.NoError(t, ci.RunCmd("lcd /definitely/not/a/dir"))
	got, err = os.Getwd()
	require.NoError(t, err)
	assert.EqualValues(t, dir, got)
}

func TestWrongArgCountsAreOperational(t *testing.T) {
	ci, written := newTestInterface(t)

	require.NoError(t, ci.RunCmd("send onlyone"))
	require.NoError(t, ci.RunCmd("recv"))
	require.NoError(t, ci.RunCmd("lcd a b c"))

	// nothing made it onto the wire
	assert.Empty(t, *written)
}

func TestSetCurrentDirOnlySendsOnChange(t *testing.T) {
	ci, written := newTestInterface(t)

	require.NoError(t, ci.SetCurrentDir("/home/someone"))
	require.NoError(t, ci.SetCurrentDir("/home/someone"))
	assert.EqualValues(t, []string{"cmd: cd", "path: /home/someone"}, *written)

	require.NoError(t, ci.SetCurrentDir("/tmp"))
	assert.EqualValues(t, []string{
		"cmd: cd", "path: /home/someone",
		"cmd: cd", "path: /tmp",
	}, *written)
}
