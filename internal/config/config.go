package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/eeg.report/internal/serialmux"
	"github.com/banshee-data/eeg.report/internal/series"
	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/eeg.defaults.json"

// Defaults applied by the Get* accessors when a field is unset.
const (
	DefaultSubscriberBuffer     = 1024
	DefaultDBPath               = "eeg_data.db"
	DefaultFlushInterval        = time.Second
	DefaultRawRefreshInterval   = 100 * time.Millisecond
	DefaultChartRefreshInterval = time.Second
)

// Config is the root configuration document. Every field is optional;
// omitted fields fall back to the defaults above.
type Config struct {
	SeriesCapacity    *int `json:"series_capacity,omitempty"`
	RawSeriesCapacity *int `json:"raw_series_capacity,omitempty"`
	MaxBufferBytes    *int `json:"max_buffer_bytes,omitempty"`
	SubscriberBuffer  *int `json:"subscriber_buffer,omitempty"`

	Serial *SerialConfig `json:"serial,omitempty"`

	DBPath *string `json:"db_path,omitempty"`
	Record *bool   `json:"record,omitempty"`

	FlushInterval        *string `json:"flush_interval,omitempty"`         // duration string like "1s"
	RawRefreshInterval   *string `json:"raw_refresh_interval,omitempty"`   // duration string like "100ms"
	ChartRefreshInterval *string `json:"chart_refresh_interval,omitempty"` // duration string like "1s"
}

// SerialConfig names the headset port and its line settings.
type SerialConfig struct {
	Port string `json:"port"`
	serialmux.PortOptions
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file keep their defaults, so partial configs
// are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. It panics if the
// file cannot be loaded and is intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.SeriesCapacity != nil && *c.SeriesCapacity < 1 {
		return fmt.Errorf("series_capacity must be positive, got %d", *c.SeriesCapacity)
	}
	if c.RawSeriesCapacity != nil && *c.RawSeriesCapacity < 1 {
		return fmt.Errorf("raw_series_capacity must be positive, got %d", *c.RawSeriesCapacity)
	}
	// a cap below one large frame could never hold a complete frame
	if c.MaxBufferBytes != nil && *c.MaxBufferBytes < thinkgear.LargeFrameLen {
		return fmt.Errorf("max_buffer_bytes must be at least %d, got %d", thinkgear.LargeFrameLen, *c.MaxBufferBytes)
	}
	if c.SubscriberBuffer != nil && *c.SubscriberBuffer < 0 {
		return fmt.Errorf("subscriber_buffer must be non-negative, got %d", *c.SubscriberBuffer)
	}

	if c.Serial != nil {
		if _, err := c.Serial.PortOptions.Normalise(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}

	for name, v := range map[string]*string{
		"flush_interval":         c.FlushInterval,
		"raw_refresh_interval":   c.RawRefreshInterval,
		"chart_refresh_interval": c.ChartRefreshInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}
	return nil
}

func parseDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def // default on parse error
	}
	return d
}

func (c *Config) GetSeriesCapacity() int {
	if c.SeriesCapacity == nil {
		return series.DefaultCapacity
	}
	return *c.SeriesCapacity
}

func (c *Config) GetRawSeriesCapacity() int {
	if c.RawSeriesCapacity == nil {
		return series.DefaultRawCapacity
	}
	return *c.RawSeriesCapacity
}

func (c *Config) GetMaxBufferBytes() int {
	if c.MaxBufferBytes == nil {
		return thinkgear.DefaultMaxBuffer
	}
	return *c.MaxBufferBytes
}

func (c *Config) GetSubscriberBuffer() int {
	if c.SubscriberBuffer == nil {
		return DefaultSubscriberBuffer
	}
	return *c.SubscriberBuffer
}

// GetSerialPort returns the configured port path, or "" when unset.
func (c *Config) GetSerialPort() string {
	if c.Serial == nil {
		return ""
	}
	return c.Serial.Port
}

// GetPortOptions returns the serial line settings with defaults applied.
func (c *Config) GetPortOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = c.Serial.PortOptions
	}
	if n, err := opts.Normalise(); err == nil {
		return n
	}
	return opts
}

func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

func (c *Config) GetRecord() bool {
	if c.Record == nil {
		return true
	}
	return *c.Record
}

func (c *Config) GetFlushInterval() time.Duration {
	return parseDuration(c.FlushInterval, DefaultFlushInterval)
}

func (c *Config) GetRawRefreshInterval() time.Duration {
	return parseDuration(c.RawRefreshInterval, DefaultRawRefreshInterval)
}

func (c *Config) GetChartRefreshInterval() time.Duration {
	return parseDuration(c.ChartRefreshInterval, DefaultChartRefreshInterval)
}

// Effective is the fully-resolved configuration, as reported by the API.
type Effective struct {
	SeriesCapacity       int                   `json:"series_capacity"`
	RawSeriesCapacity    int                   `json:"raw_series_capacity"`
	MaxBufferBytes       int                   `json:"max_buffer_bytes"`
	SubscriberBuffer     int                   `json:"subscriber_buffer"`
	SerialPort           string                `json:"serial_port"`
	Serial               serialmux.PortOptions `json:"serial"`
	DBPath               string                `json:"db_path"`
	Record               bool                  `json:"record"`
	FlushInterval        string                `json:"flush_interval"`
	RawRefreshInterval   string                `json:"raw_refresh_interval"`
	ChartRefreshInterval string                `json:"chart_refresh_interval"`
}

// Effective resolves every field through its getter.
func (c *Config) Effective() Effective {
	return Effective{
		SeriesCapacity:       c.GetSeriesCapacity(),
		RawSeriesCapacity:    c.GetRawSeriesCapacity(),
		MaxBufferBytes:       c.GetMaxBufferBytes(),
		SubscriberBuffer:     c.GetSubscriberBuffer(),
		SerialPort:           c.GetSerialPort(),
		Serial:               c.GetPortOptions(),
		DBPath:               c.GetDBPath(),
		Record:               c.GetRecord(),
		FlushInterval:        c.GetFlushInterval().String(),
		RawRefreshInterval:   c.GetRawRefreshInterval().String(),
		ChartRefreshInterval: c.GetChartRefreshInterval().String(),
	}
}

// SetSerialPort overrides the port path, creating the serial block if needed.
func (c *Config) SetSerialPort(port string) {
	if c.Serial == nil {
		c.Serial = &SerialConfig{}
	}
	c.Serial.Port = port
}

// SetBaudRate overrides the baud rate, creating the serial block if needed.
func (c *Config) SetBaudRate(baud int) {
	if c.Serial == nil {
		c.Serial = &SerialConfig{}
	}
	c.Serial.BaudRate = baud
}

// SetDBPath overrides the database path.
func (c *Config) SetDBPath(path string) { c.DBPath = ptrString(path) }

// SetRecord overrides recording.
func (c *Config) SetRecord(v bool) { c.Record = ptrBool(v) }
