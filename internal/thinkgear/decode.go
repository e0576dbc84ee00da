package thinkgear

import "fmt"

// Checksum returns the small-frame checksum for the given sample bytes: the
// one's complement of the low byte of 0x80 + 0x02 + high + low.
func Checksum(high, low byte) byte {
	sum := uint32(rawValueCode) + uint32(rawValueLength) + uint32(high) + uint32(low)
	return ^byte(sum & 0xFF)
}

// DecodeSmallRaw validates an 8-byte small frame and returns the signed raw
// sample it carries.
func DecodeSmallRaw(frame []byte) (int16, error) {
	if len(frame) != SmallFrameLen {
		return 0, fmt.Errorf("%w: small frame has %d bytes, want %d", ErrFrameLength, len(frame), SmallFrameLen)
	}
	high, low := frame[smallHighOffset], frame[smallLowOffset]
	if want, got := Checksum(high, low), frame[smallChecksumOffset]; want != got {
		return 0, &ChecksumError{Expected: want, Got: got}
	}
	// two's complement reinterpretation of the big-endian unsigned value
	return int16(uint16(high)<<8 | uint16(low)), nil
}

// DecodeLargeBands extracts the band powers and scalar metrics from a 36-byte
// large frame. The layout carries no checksum, so any window of the right
// size decodes. Attention and meditation are passed through unvalidated.
func DecodeLargeBands(frame []byte) (Sample, error) {
	if len(frame) != LargeFrameLen {
		return Sample{}, fmt.Errorf("%w: large frame has %d bytes, want %d", ErrFrameLength, len(frame), LargeFrameLen)
	}
	var bands Bands
	for i := range bands {
		off := largeBandOffset + largeBandWidth*i
		bands[i] = uint32(frame[off])<<16 | uint32(frame[off+1])<<8 | uint32(frame[off+2])
	}
	return BandSample(
		bands,
		frame[largeQualityOffset],
		frame[largeAttentionOffset],
		frame[largeMeditationOffset],
	), nil
}

// Decode dispatches on the discriminator byte of a complete frame window.
func Decode(frame []byte) (Sample, error) {
	if len(frame) < headerLen {
		return Sample{}, fmt.Errorf("%w: %d bytes", ErrFrameLength, len(frame))
	}
	switch KindOf(frame[2]) {
	case KindSmallRaw:
		v, err := DecodeSmallRaw(frame)
		if err != nil {
			return Sample{}, err
		}
		return RawSample(v), nil
	case KindLargeBands:
		return DecodeLargeBands(frame)
	default:
		return Sample{}, fmt.Errorf("%w: discriminator 0x%02X", ErrUnknownKind, frame[2])
	}
}
