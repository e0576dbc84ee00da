package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/eeg.report/internal/serialmux"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestEmptyConfig_Defaults(t *testing.T) {
	cfg := EmptyConfig()

	if got := cfg.GetSeriesCapacity(); got != 1000 {
		t.Errorf("GetSeriesCapacity() = %d, want 1000", got)
	}
	if got := cfg.GetRawSeriesCapacity(); got != 32767 {
		t.Errorf("GetRawSeriesCapacity() = %d, want 32767", got)
	}
	if got := cfg.GetMaxBufferBytes(); got != 64*1024 {
		t.Errorf("GetMaxBufferBytes() = %d, want 65536", got)
	}
	if got := cfg.GetSubscriberBuffer(); got != DefaultSubscriberBuffer {
		t.Errorf("GetSubscriberBuffer() = %d", got)
	}
	if got := cfg.GetPortOptions(); got != (serialmux.PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}) {
		t.Errorf("GetPortOptions() = %+v", got)
	}
	if cfg.GetSerialPort() != "" || cfg.GetDBPath() != "eeg_data.db" || !cfg.GetRecord() {
		t.Errorf("unexpected defaults: port=%q db=%q record=%v", cfg.GetSerialPort(), cfg.GetDBPath(), cfg.GetRecord())
	}
	if cfg.GetFlushInterval() != time.Second ||
		cfg.GetRawRefreshInterval() != 100*time.Millisecond ||
		cfg.GetChartRefreshInterval() != time.Second {
		t.Errorf("unexpected interval defaults")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "eeg.json", `{
  "series_capacity": 50,
  "max_buffer_bytes": 128,
  "serial": {"port": "/dev/rfcomm0", "baud_rate": 57600},
  "record": false,
  "raw_refresh_interval": "250ms"
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.GetSeriesCapacity() != 50 || cfg.GetMaxBufferBytes() != 128 {
		t.Errorf("capacities = %d/%d", cfg.GetSeriesCapacity(), cfg.GetMaxBufferBytes())
	}
	// unset fields keep their defaults
	if cfg.GetRawSeriesCapacity() != 32767 {
		t.Errorf("GetRawSeriesCapacity() = %d", cfg.GetRawSeriesCapacity())
	}
	if cfg.GetSerialPort() != "/dev/rfcomm0" || cfg.GetPortOptions().BaudRate != 57600 {
		t.Errorf("serial = %q %+v", cfg.GetSerialPort(), cfg.GetPortOptions())
	}
	if cfg.GetRecord() {
		t.Error("GetRecord() = true, want false")
	}
	if cfg.GetRawRefreshInterval() != 250*time.Millisecond {
		t.Errorf("GetRawRefreshInterval() = %v", cfg.GetRawRefreshInterval())
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "eeg.yaml", `{}`, ".json extension"},
		{"syntax", "bad.json", `{`, "parse config JSON"},
		{"small buffer", "buf.json", `{"max_buffer_bytes": 35}`, "at least 36"},
		{"capacity", "cap.json", `{"series_capacity": 0}`, "series_capacity"},
		{"raw capacity", "raw.json", `{"raw_series_capacity": -1}`, "raw_series_capacity"},
		{"subscriber buffer", "sub.json", `{"subscriber_buffer": -1}`, "subscriber_buffer"},
		{"baud", "baud.json", `{"serial": {"baud_rate": 12345}}`, "serial"},
		{"duration", "dur.json", `{"flush_interval": "soon"}`, "flush_interval"},
		{"negative duration", "neg.json", `{"chart_refresh_interval": "-1s"}`, "chart_refresh_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_TooLarge(t *testing.T) {
	big := `{"db_path": "` + strings.Repeat("x", 1024*1024) + `"}`
	if _, err := LoadConfig(writeConfig(t, "big.json", big)); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	eff := cfg.Effective()
	def := EmptyConfig().Effective()

	// the defaults file only restates the built-in defaults, plus a port
	def.SerialPort = "/dev/ttyUSB0"
	if eff != def {
		t.Errorf("defaults file drifted from built-in defaults:\n file: %+v\n code: %+v", eff, def)
	}
}

func TestSetters(t *testing.T) {
	cfg := EmptyConfig()
	cfg.SetSerialPort("/dev/ttyACM0")
	cfg.SetBaudRate(115200)
	cfg.SetDBPath("/tmp/x.db")
	cfg.SetRecord(false)
	cfg.SubscriberBuffer = ptrInt(0)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	eff := cfg.Effective()
	if eff.SerialPort != "/dev/ttyACM0" || eff.Serial.BaudRate != 115200 || eff.DBPath != "/tmp/x.db" || eff.Record || eff.SubscriberBuffer != 0 {
		t.Errorf("Effective() = %+v", eff)
	}
}
