package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseWindowSize is a function.
func TestParseWindowSize(t *testing.T) {
	type scenario struct {
		payload string
		width   int
		height  int
		wantErr bool
	}

	scenarios := []scenario{
		{"80_24", 80, 24, false},
		{"204_51", 204, 51, false},
		{"80", 0, 0, true},
		{"80_24_1", 0, 0, true},
		{"eighty_24", 0, 0, true},
		{"80_tall", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, s := range scenarios {
		width, height, err := ParseWindowSize(s.payload)
		if s.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.EqualValues(t, s.width, width)
		assert.EqualValues(t, s.height, height)
	}
}
