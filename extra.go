package reflar

import "fmt"

// ExtraBuffer is the binary side channel of an archive. It only grows during
// a save session and is read by absolute offset during a load session.
type ExtraBuffer struct {
	buf []byte
}

// Write appends p and returns the offset it was stored at.
func (b *ExtraBuffer) Write(p []byte) int {
	off := len(b.buf)
	b.buf = append(b.buf, p...)
	return off
}

// Slice returns the size bytes stored at off. The result aliases the buffer.
func (b *ExtraBuffer) Slice(off, size int) ([]byte, error) {
	if off < 0 || size < 0 || off > len(b.buf) || size > len(b.buf)-off {
		return nil, malformedf("extra range [%d,+%d) outside buffer of %d bytes", off, size, len(b.buf))
	}
	return b.buf[off : off+size : off+size], nil
}

func (b *ExtraBuffer) Bytes() []byte { return b.buf }
func (b *ExtraBuffer) Len() int      { return len(b.buf) }

// Reset replaces the contents with data, which is retained.
func (b *ExtraBuffer) Reset(data []byte) {
	b.buf = data
}

func (b *ExtraBuffer) String() string {
	return fmt.Sprintf("extra(%d bytes)", len(b.buf))
}
