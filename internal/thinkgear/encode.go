package thinkgear

// EncodeSmallRaw builds a valid small frame carrying v.
func EncodeSmallRaw(v int16) [SmallFrameLen]byte {
	u := uint16(v)
	high, low := byte(u>>8), byte(u)
	return [SmallFrameLen]byte{
		SyncByte, SyncByte, DiscriminatorSmallRaw,
		rawValueCode, rawValueLength,
		high, low,
		Checksum(high, low),
	}
}

// EncodeLargeBands builds a large frame with the given fields at their fixed
// offsets. The row codes a headset places between the fields are filled in;
// the trailing byte is left zero. Band powers are truncated to 24 bits.
func EncodeLargeBands(b Bands, quality, attention, meditation uint8) [LargeFrameLen]byte {
	var f [LargeFrameLen]byte
	f[0], f[1], f[2] = SyncByte, SyncByte, DiscriminatorLargeBands
	f[largeQualityOffset-1] = poorSignalCode
	f[largeQualityOffset] = quality
	f[largeBandOffset-2] = eegPowerCode
	f[largeBandOffset-1] = NumBands * largeBandWidth
	for i, p := range b {
		off := largeBandOffset + largeBandWidth*i
		f[off] = byte(p >> 16)
		f[off+1] = byte(p >> 8)
		f[off+2] = byte(p)
	}
	f[largeAttentionOffset-1] = attentionCode
	f[largeAttentionOffset] = attention
	f[largeMeditationOffset-1] = meditationCode
	f[largeMeditationOffset] = meditation
	return f
}

// Encode returns the wire bytes for s, or nil for KindUnknown.
func Encode(s Sample) []byte {
	switch s.Kind {
	case KindSmallRaw:
		f := EncodeSmallRaw(s.Raw)
		return f[:]
	case KindLargeBands:
		f := EncodeLargeBands(s.Bands, s.SignalQuality, s.Attention, s.Meditation)
		return f[:]
	default:
		return nil
	}
}
