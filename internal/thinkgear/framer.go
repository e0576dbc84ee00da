package thinkgear

import "sync/atomic"

// Stats is a snapshot of the framer's diagnostic counters.
type Stats struct {
	BytesIn         uint64 `json:"bytes_in"`
	Frames          uint64 `json:"frames"`
	SmallFrames     uint64 `json:"small_frames"`
	LargeFrames     uint64 `json:"large_frames"`
	DesyncBytes     uint64 `json:"desync_bytes"`
	MalformedLength uint64 `json:"malformed_length"`
	ChecksumErrors  uint64 `json:"checksum_errors"`
	Overflows       uint64 `json:"overflows"`
}

type counters struct {
	bytesIn         atomic.Uint64
	smallFrames     atomic.Uint64
	largeFrames     atomic.Uint64
	desyncBytes     atomic.Uint64
	malformedLength atomic.Uint64
	checksumErrors  atomic.Uint64
	overflows       atomic.Uint64
}

// Framer turns an unaligned byte stream into decoded samples. Feed may be
// called with chunks of any size; the emitted sequence depends only on the
// concatenated bytes, not on how they were split.
//
// Feed must be called from a single goroutine. Stats may be read
// concurrently.
type Framer struct {
	buf      *FrameBuffer
	c        counters
	onReport func(error)
}

// FramerOption configures a Framer.
type FramerOption func(*Framer)

// WithMaxBuffer sets the FrameBuffer overflow cap in bytes.
func WithMaxBuffer(n int) FramerOption {
	return func(f *Framer) { f.buf = NewFrameBuffer(n) }
}

// WithReporter installs a callback for non-fatal decode events: a
// *ChecksumError for each rejected frame and ErrBufferOverflow for each
// forced resynchronization. It runs synchronously inside Feed.
func WithReporter(fn func(error)) FramerOption {
	return func(f *Framer) { f.onReport = fn }
}

// NewFramer returns a Framer with an empty buffer.
func NewFramer(opts ...FramerOption) *Framer {
	f := &Framer{}
	for _, opt := range opts {
		opt(f)
	}
	if f.buf == nil {
		f.buf = NewFrameBuffer(DefaultMaxBuffer)
	}
	return f
}

// Feed buffers p and emits every sample that becomes resolvable. Input is
// admitted in pieces no larger than the buffer's free space, draining in
// between, so the cap is only hit when a single pending frame cannot fit.
func (f *Framer) Feed(p []byte, emit func(Sample)) {
	f.c.bytesIn.Add(uint64(len(p)))
	for len(p) > 0 {
		n := min(len(p), f.buf.Free())
		if n == 0 {
			n = min(len(p), f.buf.Max())
		}
		if err := f.buf.Append(p[:n]); err != nil {
			f.c.overflows.Add(1)
			f.report(err)
		}
		p = p[n:]
		f.drain(emit)
	}
}

// Buffered reports how many bytes are waiting for the rest of a frame.
func (f *Framer) Buffered() int { return f.buf.Len() }

// Reset drops any partially buffered frame. Counters are kept.
func (f *Framer) Reset() { f.buf.Reset() }

// Stats returns the current counters.
func (f *Framer) Stats() Stats {
	small, large := f.c.smallFrames.Load(), f.c.largeFrames.Load()
	return Stats{
		BytesIn:         f.c.bytesIn.Load(),
		Frames:          small + large,
		SmallFrames:     small,
		LargeFrames:     large,
		DesyncBytes:     f.c.desyncBytes.Load(),
		MalformedLength: f.c.malformedLength.Load(),
		ChecksumErrors:  f.c.checksumErrors.Load(),
		Overflows:       f.c.overflows.Load(),
	}
}

// drain resolves as many frames and garbage bytes as the buffer allows,
// leaving only an incomplete trailing frame.
func (f *Framer) drain(emit func(Sample)) {
	b := f.buf
	for b.Len() >= headerLen {
		if b.Peek(0) != SyncByte || b.Peek(1) != SyncByte {
			b.Consume(1)
			f.c.desyncBytes.Add(1)
			continue
		}

		kind := KindOf(b.Peek(2))
		if kind == KindUnknown {
			// a false sync match; skip its first byte so the stream can't stall
			b.Consume(1)
			f.c.malformedLength.Add(1)
			f.c.desyncBytes.Add(1)
			continue
		}

		n := kind.FrameLen()
		if b.Len() < n {
			return
		}

		var (
			s   Sample
			err error
		)
		frame := b.Slice(0, n)
		switch kind {
		case KindSmallRaw:
			var v int16
			v, err = DecodeSmallRaw(frame)
			s = RawSample(v)
		case KindLargeBands:
			s, err = DecodeLargeBands(frame)
		}
		// the frame is consumed whatever the outcome: position is the only
		// frame boundary, so rescanning it would loop
		b.Consume(n)

		if err != nil {
			f.c.checksumErrors.Add(1)
			f.report(err)
			continue
		}
		if kind == KindSmallRaw {
			f.c.smallFrames.Add(1)
		} else {
			f.c.largeFrames.Add(1)
		}
		if emit != nil {
			emit(s)
		}
	}
}

func (f *Framer) report(err error) {
	if f.onReport != nil {
		f.onReport(err)
	}
}

// DecodeAll runs p through a fresh Framer and returns the emitted samples
// together with the final counters.
func DecodeAll(p []byte) ([]Sample, Stats) {
	var out []Sample
	f := NewFramer()
	f.Feed(p, func(s Sample) { out = append(out, s) })
	return out, f.Stats()
}
