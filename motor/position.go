package motor

import "context"

func (c *Conn) invalidate() {
	c.posMx.Lock()
	c.posValid = false
	c.posMx.Unlock()
}

func (c *Conn) record(pos int64) {
	c.posMx.Lock()
	c.pos = pos
	c.posValid = true
	c.posMx.Unlock()
}

// LastPosition returns the position from the most recent GET_POS. ok is
// false if a motion or stop has been issued since.
func (c *Conn) LastPosition() (pos int64, ok bool) {
	c.posMx.Lock()
	defer c.posMx.Unlock()
	return c.pos, c.posValid
}

// GetPosition asks the device for the carriage position in steps.
func (c *Conn) GetPosition(ctx context.Context) (int64, error) {
	line, err := c.Send(ctx, GetPosition())
	if err != nil {
		return 0, err
	}
	pos, err := ParsePosition(line)
	if err != nil {
		return 0, err
	}
	c.record(pos)
	return pos, nil
}

// SetPosition overrides the device's idea of the carriage position and
// returns its acknowledgement line.
func (c *Conn) SetPosition(ctx context.Context, pos int64) (string, error) {
	c.invalidate()
	return c.Send(ctx, SetPosition(pos))
}
