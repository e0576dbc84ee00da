package serialmux

import (
	"io"
	"time"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortMode defines serial port configuration parameters.
type SerialPortMode struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// Parity defines serial port parity options.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits defines serial port stop bit options.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// DefaultBaudRate is the rate a ThinkGear headset streams at out of the box.
const DefaultBaudRate = 9600

// DefaultSerialPortMode returns 9600 8N1, the headset's factory setting.
func DefaultSerialPortMode() *SerialPortMode {
	return &SerialPortMode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}

// SerialPortFactory defines an interface for creating serial ports.
type SerialPortFactory interface {
	// Open opens a serial port at the specified path with the given mode.
	Open(path string, mode *SerialPortMode) (SerialPorter, error)
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities.
// This is an optional interface that serial ports may implement.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}
