package thinkgear

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(f *Framer, chunks ...[]byte) []Sample {
	var out []Sample
	for _, c := range chunks {
		f.Feed(c, func(s Sample) { out = append(out, s) })
	}
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func small(v int16) []byte {
	f := EncodeSmallRaw(v)
	return f[:]
}

func large(b Bands, q, att, med uint8) []byte {
	f := EncodeLargeBands(b, q, att, med)
	return f[:]
}

// mixedStream interleaves valid frames with garbage, a corrupted small
// frame and false sync markers.
func mixedStream() ([]byte, []Sample) {
	corrupt := small(77)
	corrupt[7] ^= 0xFF

	bands := Bands{100, 200, 300, 400, 500, 600, 700, 800}
	stream := concat(
		[]byte{0x00, 0x13, 0xAA},
		small(500),
		[]byte{0xAA, 0xAA, 0x07},
		small(-25536),
		corrupt,
		large(bands, 0, 80, 42),
		[]byte{0xAA},
		small(1),
		[]byte{0xFF, 0xFF},
		large(Bands{}, 200, 0, 100),
	)
	want := []Sample{
		RawSample(500),
		RawSample(-25536),
		BandSample(bands, 0, 80, 42),
		RawSample(1),
		BandSample(Bands{}, 200, 0, 100),
	}
	return stream, want
}

func TestFramer_PositionCorrectExtraction(t *testing.T) {
	f := NewFramer()
	got := collect(f, []byte{0xAA, 0xAA, 0x04, 0x80, 0x02, 0x01, 0xF4, 0x88})

	if diff := cmp.Diff([]Sample{RawSample(500)}, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	if f.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", f.Buffered())
	}
}

func TestFramer_GarbageSkip(t *testing.T) {
	f := NewFramer()
	got := collect(f, []byte{0xFF, 0xAA, 0xAA, 0x04, 0x80, 0x02, 0x00, 0x01, 0x7C})

	if diff := cmp.Diff([]Sample{RawSample(1)}, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	stats := f.Stats()
	assert.Equal(t, uint64(1), stats.DesyncBytes)
	assert.Equal(t, uint64(1), stats.SmallFrames)
	assert.Equal(t, uint64(9), stats.BytesIn)
}

func TestFramer_ChecksumRejection(t *testing.T) {
	var reported []error
	f := NewFramer(WithReporter(func(err error) { reported = append(reported, err) }))

	frame := small(500)
	frame[7] = 0x00
	got := collect(f, frame, small(3))

	if diff := cmp.Diff([]Sample{RawSample(3)}, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, reported, 1)
	assert.True(t, errors.Is(reported[0], ErrChecksum))
	assert.Equal(t, uint64(1), f.Stats().ChecksumErrors)
	assert.Equal(t, 0, f.Buffered(), "rejected frame must be consumed")
}

func TestFramer_IncompleteFrameWaits(t *testing.T) {
	f := NewFramer()
	frame := large(Bands{Delta: 100}, 0, 80, 0)

	got := collect(f, frame[:35])
	assert.Empty(t, got)
	assert.Equal(t, 35, f.Buffered())

	got = collect(f, frame[35:])
	require.Len(t, got, 1)
	assert.Equal(t, uint32(100), got[0].Bands.Get(Delta))
	assert.Equal(t, uint8(80), got[0].Attention)

	// fewer than three bytes never resolve, even when they are not sync
	got = collect(f, []byte{0x01, 0x02})
	assert.Empty(t, got)
	assert.Equal(t, 2, f.Buffered())
}

func TestFramer_UnknownDiscriminatorResyncs(t *testing.T) {
	f := NewFramer()
	// AA AA AA 04 ... : the first AA AA is followed by AA, which is not a
	// known discriminator; dropping one byte realigns on the real frame
	got := collect(f, concat([]byte{0xAA}, small(42)))

	if diff := cmp.Diff([]Sample{RawSample(42)}, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	stats := f.Stats()
	assert.Equal(t, uint64(1), stats.MalformedLength)
	assert.Equal(t, uint64(1), stats.DesyncBytes)
}

func TestFramer_IdempotentResync(t *testing.T) {
	stream, want := mixedStream()

	bulk := collect(NewFramer(), stream)
	if diff := cmp.Diff(want, bulk); diff != "" {
		t.Fatalf("bulk samples mismatch (-want +got):\n%s", diff)
	}

	byteAtATime := NewFramer()
	var single []Sample
	for i := range stream {
		byteAtATime.Feed(stream[i:i+1], func(s Sample) { single = append(single, s) })
	}
	if diff := cmp.Diff(bulk, single); diff != "" {
		t.Errorf("byte-at-a-time samples differ from bulk (-bulk +single):\n%s", diff)
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		f := NewFramer()
		var got []Sample
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(40)
			if n > len(rest) {
				n = len(rest)
			}
			f.Feed(rest[:n], func(s Sample) { got = append(got, s) })
			rest = rest[n:]
		}
		if diff := cmp.Diff(bulk, got); diff != "" {
			t.Fatalf("trial %d: random chunking differs from bulk (-bulk +got):\n%s", trial, diff)
		}
		assert.Equal(t, byteAtATime.Stats(), f.Stats())
	}
}

func TestFramer_BoundedMemory(t *testing.T) {
	const max = 64
	f := NewFramer(WithMaxBuffer(max))

	noise := make([]byte, 1000)
	for i := range noise {
		noise[i] = byte(i % 0xA0) // never 0xAA
	}
	for i := 0; i < 100; i++ {
		f.Feed(noise, nil)
		if f.Buffered() > max {
			t.Fatalf("buffer grew to %d, cap %d", f.Buffered(), max)
		}
	}
	assert.LessOrEqual(t, f.Buffered(), 2)
	assert.Equal(t, uint64(100*1000-f.Buffered()), f.Stats().DesyncBytes)
}

func TestFramer_OverflowForcesResync(t *testing.T) {
	var reported []error
	// a cap below the large frame size can never complete one
	f := NewFramer(WithMaxBuffer(16), WithReporter(func(err error) { reported = append(reported, err) }))

	got := collect(f, large(Bands{Delta: 1}, 0, 0, 0), small(9))

	require.NotEmpty(t, reported)
	assert.True(t, errors.Is(reported[0], ErrBufferOverflow))
	assert.GreaterOrEqual(t, f.Stats().Overflows, uint64(1))
	assert.LessOrEqual(t, f.Buffered(), 16)
	// the stream stays decodable afterwards
	assert.Equal(t, []Sample{RawSample(9)}, got)
}

func TestFramer_ResetDropsPartialFrame(t *testing.T) {
	f := NewFramer()
	frame := small(5)
	collect(f, frame[:5])
	f.Reset()
	got := collect(f, frame[5:], small(6))
	assert.Equal(t, []Sample{RawSample(6)}, got)
}

func TestDecodeAll(t *testing.T) {
	stream, want := mixedStream()
	got, stats := DecodeAll(stream)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeAll() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(len(stream)), stats.BytesIn)
	assert.Equal(t, uint64(3), stats.SmallFrames)
	assert.Equal(t, uint64(2), stats.LargeFrames)
	assert.Equal(t, uint64(5), stats.Frames)
	assert.Equal(t, uint64(1), stats.ChecksumErrors)
}
