package thinkgear

import "fmt"

// Band indexes the eight EEG power bands in wire order.
type Band int

const (
	Delta Band = iota
	Theta
	LowAlpha
	HighAlpha
	LowBeta
	HighBeta
	LowGamma
	MiddleGamma

	NumBands = 8
)

var bandNames = [NumBands]string{
	"Delta",
	"Theta",
	"LowAlpha",
	"HighAlpha",
	"LowBeta",
	"HighBeta",
	"LowGamma",
	"MiddleGamma",
}

func (b Band) String() string {
	if b < 0 || int(b) >= NumBands {
		return fmt.Sprintf("Band(%d)", int(b))
	}
	return bandNames[b]
}

// BandNames returns the band labels in wire order.
func BandNames() []string {
	names := make([]string, NumBands)
	copy(names, bandNames[:])
	return names
}

// Bands holds one unsigned 24-bit power value per band, in wire order.
type Bands [NumBands]uint32

// Get returns the power for the given band.
func (b Bands) Get(band Band) uint32 { return b[band] }

// Sample is a decoded packet. Kind selects which fields are meaningful:
// Raw for KindSmallRaw; Bands, SignalQuality, Attention and Meditation for
// KindLargeBands. Samples are values and are never mutated after decode.
type Sample struct {
	Kind PacketKind `json:"kind"`

	Raw int16 `json:"raw,omitempty"`

	Bands         Bands `json:"bands,omitempty"`
	SignalQuality uint8 `json:"signal_quality,omitempty"`
	Attention     uint8 `json:"attention,omitempty"`
	Meditation    uint8 `json:"meditation,omitempty"`
}

// RawSample builds a small-packet sample.
func RawSample(v int16) Sample {
	return Sample{Kind: KindSmallRaw, Raw: v}
}

// BandSample builds a large-packet sample.
func BandSample(b Bands, quality, attention, meditation uint8) Sample {
	return Sample{
		Kind:          KindLargeBands,
		Bands:         b,
		SignalQuality: quality,
		Attention:     attention,
		Meditation:    meditation,
	}
}

func (s Sample) String() string {
	switch s.Kind {
	case KindSmallRaw:
		return fmt.Sprintf("raw=%d", s.Raw)
	case KindLargeBands:
		return fmt.Sprintf("bands=%v quality=%d attention=%d meditation=%d",
			s.Bands, s.SignalQuality, s.Attention, s.Meditation)
	default:
		return "unknown"
	}
}
