package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalise(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"negative baud defaults", PortOptions{BaudRate: -5}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"explicit", PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "E"}, PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"parity words", PortOptions{Parity: " odd "}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "O"}, false},
		{"parity none", PortOptions{Parity: "none"}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"nonstandard baud", PortOptions{BaudRate: 12345}, PortOptions{}, true},
		{"data bits too small", PortOptions{DataBits: 4}, PortOptions{}, true},
		{"data bits too large", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalise()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalise(%+v) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalise() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalise() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPortOptions_Normalise_AllStandardBaudRates(t *testing.T) {
	for _, rate := range StandardBaudRates {
		got, err := PortOptions{BaudRate: rate}.Normalise()
		if err != nil || got.BaudRate != rate {
			t.Errorf("Normalise() with baud %d = %d, %v", rate, got.BaudRate, err)
		}
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "none"}) {
		t.Error("zero options should equal explicit defaults")
	}
	if (PortOptions{BaudRate: 9600}).Equal(PortOptions{BaudRate: 57600}) {
		t.Error("different baud rates should not be equal")
	}
	if (PortOptions{BaudRate: 12345}).Equal(PortOptions{BaudRate: 12345}) {
		t.Error("invalid options are never equal")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	want := serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	if *mode != want {
		t.Errorf("SerialMode() = %+v, want %+v", *mode, want)
	}

	mode, err = PortOptions{Parity: "E", StopBits: 2}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.Parity != serial.EvenParity || mode.StopBits != serial.TwoStopBits {
		t.Errorf("SerialMode() = %+v, want even parity and two stop bits", *mode)
	}

	if _, err := (PortOptions{BaudRate: 12345}).SerialMode(); err == nil {
		t.Error("expected error for invalid options")
	}
}

func TestPortOptions_PortMode(t *testing.T) {
	mode, err := PortOptions{Parity: "O", StopBits: 2}.PortMode()
	if err != nil {
		t.Fatalf("PortMode() error = %v", err)
	}
	if mode.Parity != OddParity || mode.StopBits != TwoStopBits || mode.BaudRate != DefaultBaudRate {
		t.Errorf("PortMode() = %+v", *mode)
	}
}

func TestConvertParityAndStopBits(t *testing.T) {
	if convertParity(NoParity) != serial.NoParity || convertParity(OddParity) != serial.OddParity || convertParity(EvenParity) != serial.EvenParity {
		t.Error("convertParity mapping mismatch")
	}
	if convertStopBits(OneStopBit) != serial.OneStopBit || convertStopBits(TwoStopBits) != serial.TwoStopBits {
		t.Error("convertStopBits mapping mismatch")
	}
}
