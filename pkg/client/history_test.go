package client

import (
	"testing"

	"github.com/jesseduffield/lazyssh/pkg/commands"
	"github.com/stretchr/testify/assert"
)

// TestCmdHistory is a function.
func TestCmdHistory(t *testing.T) {
	history := NewCmdHistory(commands.NewDummyLog())

	// nothing recorded yet
	assert.EqualValues(t, "", history.GetPrevCmd())
	assert.EqualValues(t, "", history.GetNextCmd())

	history.AddCmd("first\n")
	history.AddCmd("second\r")
	history.AddCmd("\r\n") // blank lines are not recorded
	history.AddCmd("third\n")

	assert.EqualValues(t, "third", history.GetPrevCmd())
	assert.EqualValues(t, "second", history.GetPrevCmd())
	assert.EqualValues(t, "first", history.GetPrevCmd())
	// walked off the top: stays put
	assert.EqualValues(t, "", history.GetPrevCmd())

	assert.EqualValues(t, "first", history.GetNextCmd())
	assert.EqualValues(t, "second", history.GetNextCmd())
	assert.EqualValues(t, "third", history.GetNextCmd())
	// walked off the bottom: fresh line
	assert.EqualValues(t, "", history.GetNextCmd())

	// a new submission resets the cursor to the end
	history.AddCmd("fourth\n")
	assert.EqualValues(t, "fourth", history.GetPrevCmd())
}
