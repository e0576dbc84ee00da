package serialmux

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// RealSerialPortFactory opens ports through go.bug.st/serial.
type RealSerialPortFactory struct{}

func NewRealSerialPortFactory() *RealSerialPortFactory {
	return &RealSerialPortFactory{}
}

// Open opens path with mode, or with DefaultSerialPortMode when mode is nil.
func (f *RealSerialPortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	if mode == nil {
		mode = DefaultSerialPortMode()
	}
	port, err := serial.Open(path, toSerialMode(mode))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return port, nil
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions, muxOpts ...Option) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[serial.Port](port, muxOpts...), nil
}

// ListPorts returns the serial device paths present on this machine, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
