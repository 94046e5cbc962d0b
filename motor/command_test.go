package motor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_String(t *testing.T) {
	cases := []struct {
		cmd  Command
		line string
		done string
	}{
		{MoveTo(184095), "MOVE_TO 184095", MovementComplete},
		{MoveLeft(91972), "MOVE_LEFT 91972", MovementComplete},
		{MoveRight(10), "MOVE_RIGHT 10", MovementComplete},
		{HomeToCenter(), "HOME_TO_CENTER", MovementComplete},
		{SeekLeftLimit(), "SEEK_LEFT_LIMIT", MovementComplete},
		{SeekRightLimit(), "SEEK_RIGHT_LIMIT", MovementComplete},
		{SetPosition(150), "SET_POS 150", ""},
		{GetPosition(), "GET_POS", ""},
		{EmergencyStop(), "EMERGENCY_STOP", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.line, c.cmd.String())
		assert.Equal(t, c.done, c.cmd.Completion(), c.line)

		parsed, err := ParseCommand(c.line)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.cmd, parsed)
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	for _, line := range []string{
		"",
		"MOVE_TO",
		"MOVE_TO abc",
		"GET_POS 4",
		"JUMP 3",
	} {
		_, err := ParseCommand(line)
		assert.Error(t, err, "%q", line)
	}
}

func TestParsePosition(t *testing.T) {
	pos, err := ParsePosition("POS 91972")
	require.NoError(t, err)
	assert.EqualValues(t, 91972, pos)

	pos, err = ParsePosition("POS -3\r")
	require.NoError(t, err)
	assert.EqualValues(t, -3, pos)

	for _, line := range []string{"Moving from 0 to 5", "POS", "POS x", "pos 5"} {
		_, err := ParsePosition(line)
		var ur *UnexpectedResponseError
		assert.ErrorAs(t, err, &ur, line)
	}
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "Op(42)", Op(42).String())
	assert.True(t, OpSeekLeftLimit.IsMotion())
	assert.False(t, OpGetPosition.IsMotion())
	assert.True(t, OpSetPosition.IsImmediate())
	assert.False(t, OpEmergencyStop.IsImmediate())
}
