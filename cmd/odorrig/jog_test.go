package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/odorrig/machine"
	"github.com/mastercactapus/odorrig/motor"
	"github.com/mastercactapus/odorrig/rail"
	"github.com/mastercactapus/odorrig/simulator"
)

func simRig(t *testing.T) (*machine.Rig, *simulator.Device) {
	t.Helper()
	layout, err := rail.NewPairLayout(rail.DefaultGeometry(), 3)
	require.NoError(t, err)
	dev := simulator.New(layout.Geometry)
	conn := motor.NewConn(dev, motor.Config{})
	t.Cleanup(func() { conn.Close() })
	return machine.NewRig(conn, layout, machine.Options{}), dev
}

func TestJog(t *testing.T) {
	ctx := context.Background()
	rig, dev := simRig(t)

	jogOK := func(args ...string) string {
		t.Helper()
		out, err := jog(ctx, rig, args)
		require.NoError(t, err, args)
		return out
	}

	jogOK("goto", "1000")
	assert.EqualValues(t, 1000, dev.Position())
	assert.Equal(t, "1000", jogOK("pos"))

	jogOK("MOVE_LEFT", "100")
	assert.EqualValues(t, 900, dev.Position())
	assert.Equal(t, "POS 900", jogOK("GET_POS"))

	jogOK("right", "50")
	assert.EqualValues(t, 950, dev.Position())

	assert.Equal(t, "Position manually set to: 5000", jogOK("setpos", "5000"))
	assert.EqualValues(t, 5000, dev.Position())

	jogOK("station", "1")
	assert.EqualValues(t, 92123, dev.Position())

	jogOK("recalibrate", "right")
	assert.EqualValues(t, 184095, dev.Position())

	jogOK("home")
	assert.EqualValues(t, 92122, dev.Position())

	jogOK("seek-left")
	assert.EqualValues(t, 150, dev.Position())
	assert.Equal(t, "at left limit, not moved", jogOK("advance"))
}

func TestJog_Errors(t *testing.T) {
	ctx := context.Background()
	rig, dev := simRig(t)

	_, err := jog(ctx, rig, []string{"goto", "999999"})
	var rangeErr *machine.RangeError
	assert.True(t, errors.As(err, &rangeErr))

	_, err = jog(ctx, rig, []string{"left"})
	assert.Error(t, err)
	_, err = jog(ctx, rig, []string{"left", "x"})
	assert.Error(t, err)
	_, err = jog(ctx, rig, []string{"recalibrate", "up"})
	assert.Error(t, err)
	_, err = jog(ctx, rig, []string{"bogus"})
	assert.Error(t, err)

	assert.Empty(t, dev.Motions())
}
