// Package thinkgear reconstructs packets from the byte stream emitted by a
// ThinkGear-style EEG headset. The stream carries no framing guarantees: the
// Framer scans for the two-byte sync marker, classifies the frame by its
// discriminator byte, waits for the full frame and hands the exact window to
// the decoders, which are pure functions of their input.
//
// Two frame layouts are understood:
//
//	small (8 bytes):  AA AA 04 80 02 HI LO CS
//	large (36 bytes): AA AA 20 SQ .. .. .. [8 x 3-byte band power] ATT .. MED ..
package thinkgear

// SyncByte is repeated twice at the start of every frame.
const SyncByte = 0xAA

// Discriminator values found at offset 2, immediately after the sync marker.
const (
	DiscriminatorSmallRaw   = 0x04
	DiscriminatorLargeBands = 0x20
)

// Frame sizes including the sync marker.
const (
	SmallFrameLen = 8
	LargeFrameLen = 36
)

// headerLen is the number of bytes needed to classify a frame.
const headerLen = 3

// Fixed payload markers of the small raw frame: the raw-wave code and its
// value length. They take part in the checksum.
const (
	rawValueCode   = 0x80
	rawValueLength = 0x02
)

// Offsets inside the small frame.
const (
	smallHighOffset     = 5
	smallLowOffset      = 6
	smallChecksumOffset = 7
)

// Row codes preceding each field of the large frame. The decoder reads
// fields by position and does not check them.
const (
	poorSignalCode = 0x02
	attentionCode  = 0x04
	meditationCode = 0x05
	eegPowerCode   = 0x83
)

// Offsets inside the large frame.
const (
	largeQualityOffset    = 4
	largeBandOffset       = 7
	largeBandWidth        = 3
	largeAttentionOffset  = 32
	largeMeditationOffset = 34
)

// DefaultMaxBuffer is the default overflow cap for a FrameBuffer.
const DefaultMaxBuffer = 64 * 1024

// PacketKind identifies which frame layout starts at a sync marker.
type PacketKind uint8

const (
	KindUnknown PacketKind = iota
	KindSmallRaw
	KindLargeBands
)

func (k PacketKind) String() string {
	switch k {
	case KindSmallRaw:
		return "small_raw"
	case KindLargeBands:
		return "large_bands"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k PacketKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText; anything else
// decodes to KindUnknown.
func (k *PacketKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "small_raw":
		*k = KindSmallRaw
	case "large_bands":
		*k = KindLargeBands
	default:
		*k = KindUnknown
	}
	return nil
}

// FrameLen returns the total frame size for the kind, or 0 for KindUnknown.
func (k PacketKind) FrameLen() int {
	switch k {
	case KindSmallRaw:
		return SmallFrameLen
	case KindLargeBands:
		return LargeFrameLen
	default:
		return 0
	}
}

// KindOf maps a discriminator byte to a PacketKind.
func KindOf(discriminator byte) PacketKind {
	switch discriminator {
	case DiscriminatorSmallRaw:
		return KindSmallRaw
	case DiscriminatorLargeBands:
		return KindLargeBands
	default:
		return KindUnknown
	}
}
