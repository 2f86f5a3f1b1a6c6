package stream

import "math"

// Cursor is a voice's read position in a Buffer. It is owned by the render
// thread and never allocates.
type Cursor struct {
	buf       *Buffer
	pos       float64
	exhausted bool
}

// Reset binds the cursor to buf at frame offset.
func (c *Cursor) Reset(buf *Buffer, offset int64) {
	c.buf = buf
	c.pos = float64(max(offset, 0))
	c.exhausted = buf == nil
}

// Release drops the buffer reference.
func (c *Cursor) Release() { *c = Cursor{} }

func (c *Cursor) Position() float64 { return c.pos }
func (c *Cursor) Exhausted() bool   { return c.exhausted }

// Read fills dst with frames taken every ratio source frames, linearly
// interpolated. It returns the number of frames produced before the sample
// ran out; the rest of dst is zeroed. underrun is true when the loader has
// not yet published the frames this block needs: dst is then silent and the
// position still advances so the voice stays in time.
func (c *Cursor) Read(dst [][2]float32, ratio float64) (n int, underrun bool) {
	if c.exhausted || c.buf == nil {
		clear(dst)
		return 0, false
	}
	b := c.buf
	total := b.Frames()
	avail := b.Available()
	loop := b.Looping()

	if avail < total {
		need := c.pos + ratio*float64(len(dst)) + 2
		if loop {
			need = math.Min(need, float64(b.LoopEnd)+1)
		}
		if need > float64(avail) {
			clear(dst)
			c.advance(ratio * float64(len(dst)))
			return len(dst), true
		}
	}

	for n = 0; n < len(dst); n++ {
		if loop && c.pos >= float64(b.LoopEnd) {
			c.pos -= float64(b.LoopEnd - b.LoopStart)
		}
		i := int64(c.pos)
		if i >= total {
			c.exhausted = true
			break
		}
		frac := float32(c.pos - float64(i))
		a := b.data[i]
		next := a
		switch {
		case loop && i+1 >= b.LoopEnd:
			next = b.data[b.LoopStart]
		case i+1 < total:
			next = b.data[i+1]
		}
		dst[n][0] = a[0] + (next[0]-a[0])*frac
		dst[n][1] = a[1] + (next[1]-a[1])*frac
		c.pos += ratio
	}
	if n < len(dst) {
		clear(dst[n:])
	}
	return n, false
}

func (c *Cursor) advance(frames float64) {
	b := c.buf
	c.pos += frames
	if b.Looping() {
		for c.pos >= float64(b.LoopEnd) {
			c.pos -= float64(b.LoopEnd - b.LoopStart)
		}
		return
	}
	if c.pos >= float64(b.Frames()) {
		c.exhausted = true
	}
}
