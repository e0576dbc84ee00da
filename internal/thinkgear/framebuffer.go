package thinkgear

// FrameBuffer is a FIFO of bytes awaiting classification. Bytes are appended
// at the tail and consumed from the head; the backing array is compacted
// instead of grown, so memory stays proportional to the cap rather than the
// length of the stream.
//
// A FrameBuffer is owned by a single Framer and is not safe for concurrent
// use.
type FrameBuffer struct {
	data []byte
	head int
	max  int
}

// initialBufferSize covers a burst of large frames without reallocating.
const initialBufferSize = 512

// NewFrameBuffer returns an empty buffer holding at most max bytes. A
// non-positive max selects DefaultMaxBuffer.
func NewFrameBuffer(max int) *FrameBuffer {
	if max <= 0 {
		max = DefaultMaxBuffer
	}
	return &FrameBuffer{
		data: make([]byte, 0, min(max, initialBufferSize)),
		max:  max,
	}
}

// Len reports the number of buffered bytes.
func (b *FrameBuffer) Len() int { return len(b.data) - b.head }

// Max reports the overflow cap.
func (b *FrameBuffer) Max() int { return b.max }

// Free reports how many bytes can be appended before the cap is exceeded.
func (b *FrameBuffer) Free() int { return b.max - b.Len() }

// Append adds p at the tail. If the result would exceed the cap, the
// buffered bytes are discarded first and ErrBufferOverflow is returned; p is
// still kept, trimmed to its trailing Max bytes, so resynchronization can
// start from the newest data.
func (b *FrameBuffer) Append(p []byte) error {
	var err error
	if b.Len()+len(p) > b.max {
		b.Reset()
		if len(p) > b.max {
			p = p[len(p)-b.max:]
		}
		err = ErrBufferOverflow
	}
	if b.head > 0 && len(b.data)+len(p) > cap(b.data) {
		b.compact()
	}
	b.data = append(b.data, p...)
	return err
}

// Consume removes the first n bytes. Consuming more than Len empties the
// buffer.
func (b *FrameBuffer) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= b.Len() {
		b.data = b.data[:0]
		b.head = 0
		return
	}
	b.head += n
}

// Peek returns the byte at offset from the head. It panics if offset is out
// of range, like a slice index.
func (b *FrameBuffer) Peek(offset int) byte {
	return b.data[b.head+offset]
}

// Slice returns the bytes in [start, end) relative to the head. The result
// aliases the buffer and is only valid until the next Append.
func (b *FrameBuffer) Slice(start, end int) []byte {
	return b.data[b.head+start : b.head+end : b.head+end]
}

// Bytes returns a copy of the buffered bytes.
func (b *FrameBuffer) Bytes() []byte {
	out := make([]byte, b.Len())
	copy(out, b.data[b.head:])
	return out
}

// Reset discards every buffered byte.
func (b *FrameBuffer) Reset() {
	b.data = b.data[:0]
	b.head = 0
}

func (b *FrameBuffer) compact() {
	n := copy(b.data, b.data[b.head:])
	b.data = b.data[:n]
	b.head = 0
}
