package bin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/honux/lol-parser/pkg/diag"
)

// cursor is a sequential little-endian reader that tracks its byte offset.
type cursor struct {
	r   io.Reader
	off int64
	buf [8]byte
}

func newCursor(r io.Reader) *cursor { return &cursor{r: r} }

// fill reads exactly len(p) bytes into p.
func (c *cursor) fill(p []byte) error {
	n, err := io.ReadFull(c.r, p)
	start := c.off
	c.off += int64(n)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return diag.Errorf(diag.KindTruncatedData, "bin", start, "need %d bytes, have %d", len(p), n)
	}
	return fmt.Errorf("failed to read at offset %d: %w", start, err)
}

func (c *cursor) bytes(n int) ([]byte, error) {
	p := make([]byte, n)
	if err := c.fill(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *cursor) u8() (uint8, error) {
	if err := c.fill(c.buf[:1]); err != nil {
		return 0, err
	}
	return c.buf[0], nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.fill(c.buf[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(c.buf[:2]), nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.fill(c.buf[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.buf[:4]), nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.fill(c.buf[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(c.buf[:8]), nil
}

func (c *cursor) f32() (float32, error) {
	v, err := c.u32()
	return math.Float32frombits(v), err
}

// floats reads len(dst) consecutive f32 values.
func (c *cursor) floats(dst []float32) error {
	for i := range dst {
		v, err := c.f32()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}
