package dumpio

// Cursor is a stateful reading position over a Blob. It mirrors the
// "advance past what you just read" idiom the upstream loader used for its
// minidumpBuf type, but never panics: once any read fails the Cursor
// latches its error and all further reads become no-ops returning zero
// values, so a decoder can perform a long sequence of reads and check Err
// once at the end.
type Cursor struct {
	blob *Blob
	pos  int64
	err  error
}

// NewCursor returns a Cursor over blob starting at the given offset.
func NewCursor(blob *Blob, offset int64) *Cursor {
	return &Cursor{blob: blob, pos: offset}
}

// Pos returns the cursor's current offset.
func (c *Cursor) Pos() int64 {
	return c.pos
}

// Err returns the first error encountered by this cursor, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Seek moves the cursor to offset, clamping into [0, len(blob)].
func (c *Cursor) Seek(offset int64) {
	if offset < 0 {
		offset = 0
	}
	if n := int64(c.blob.Len()); offset > n {
		offset = n
	}
	c.pos = offset
}

// Skip advances the cursor by n bytes without reading anything.
func (c *Cursor) Skip(n int64) {
	c.Seek(c.pos + n)
}

func (c *Cursor) U8() uint8 {
	if c.err != nil {
		return 0
	}
	v, err := c.blob.U8(c.pos)
	if err != nil {
		c.err = err
		return 0
	}
	c.pos++
	return v
}

func (c *Cursor) U16() uint16 {
	if c.err != nil {
		return 0
	}
	v, err := c.blob.U16(c.pos)
	if err != nil {
		c.err = err
		return 0
	}
	c.pos += 2
	return v
}

func (c *Cursor) U32() uint32 {
	if c.err != nil {
		return 0
	}
	v, err := c.blob.U32(c.pos)
	if err != nil {
		c.err = err
		return 0
	}
	c.pos += 4
	return v
}

func (c *Cursor) U64() uint64 {
	if c.err != nil {
		return 0
	}
	v, err := c.blob.U64(c.pos)
	if err != nil {
		c.err = err
		return 0
	}
	c.pos += 8
	return v
}

func (c *Cursor) I32() int32 {
	return int32(c.U32())
}

// Bytes reads and returns n bytes, advancing the cursor past them.
func (c *Cursor) Bytes(n int64) []byte {
	if c.err != nil {
		return nil
	}
	v, err := c.blob.Bytes(c.pos, n)
	if err != nil {
		c.err = err
		return nil
	}
	c.pos += n
	return v
}
