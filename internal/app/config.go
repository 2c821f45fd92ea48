// Package app provides the application shell around the console: configuration,
// the paced run loop, save-state slots and audio recording.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nescore/internal/apu"
)

// Config holds all application configuration
type Config struct {
	Window    WindowConfig    `json:"window"`
	Video     VideoConfig     `json:"video"`
	Audio     AudioConfig     `json:"audio"`
	Input     InputConfig     `json:"input"`
	Emulation EmulationConfig `json:"emulation"`
	Debug     DebugConfig     `json:"debug"`
	Paths     PathsConfig     `json:"paths"`

	configPath string
	loaded     bool
}

// WindowConfig contains window-related configuration
type WindowConfig struct {
	Scale      int  `json:"scale"` // NES resolution multiplier
	Fullscreen bool `json:"fullscreen"`
	Resizable  bool `json:"resizable"`
}

// VideoConfig contains video output configuration
type VideoConfig struct {
	Backend    string  `json:"backend"` // "ebitengine", "headless", "terminal"
	VSync      bool    `json:"vsync"`
	Filter     string  `json:"filter"` // "nearest", "linear"
	Brightness float32 `json:"brightness"`
	Contrast   float32 `json:"contrast"`
	Saturation float32 `json:"saturation"`
}

// AudioConfig contains audio output configuration
type AudioConfig struct {
	Enabled bool    `json:"enabled"`
	Volume  float32 `json:"volume"`
}

// InputConfig contains keyboard mappings for both controllers
type InputConfig struct {
	Player1Keys KeyMapping `json:"player1_keys"`
	Player2Keys KeyMapping `json:"player2_keys"`
}

// KeyMapping represents keyboard key mappings for a NES controller
type KeyMapping struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Left   string `json:"left"`
	Right  string `json:"right"`
	A      string `json:"a"`
	B      string `json:"b"`
	Start  string `json:"start"`
	Select string `json:"select"`
}

// Buttons returns the key names in controller order: A, B, Select, Start,
// Up, Down, Left, Right.
func (k KeyMapping) Buttons() [8]string {
	return [8]string{k.A, k.B, k.Select, k.Start, k.Up, k.Down, k.Left, k.Right}
}

// EmulationConfig contains emulation-specific settings
type EmulationConfig struct {
	// Speed multiplies the NTSC clock rate; 0 runs unthrottled
	Speed          float64 `json:"speed"`
	ReportSpeed    bool    `json:"report_speed"`
	AudioQueueSize int     `json:"audio_queue_size"`
	SaveStateSlots int     `json:"save_state_slots"`
}

// DebugConfig contains debugging and development options
type DebugConfig struct {
	EnableLogging bool   `json:"enable_logging"`
	CPUTracing    bool   `json:"cpu_tracing"`
	InputLogging  bool   `json:"input_logging"`
	StatsAddr     string `json:"stats_addr"`
}

// PathsConfig contains file and directory paths
type PathsConfig struct {
	SaveData    string `json:"save_data"`
	SaveStates  string `json:"save_states"`
	Screenshots string `json:"screenshots"`
	Recordings  string `json:"recordings"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Scale:     3,
			Resizable: true,
		},
		Video: VideoConfig{
			Backend:    "ebitengine",
			VSync:      true,
			Filter:     "nearest",
			Brightness: 1.0,
			Contrast:   1.0,
			Saturation: 1.0,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  0.8,
		},
		Input: InputConfig{
			Player1Keys: KeyMapping{
				Up:     "W",
				Down:   "S",
				Left:   "A",
				Right:  "D",
				A:      "J",
				B:      "K",
				Start:  "Enter",
				Select: "Space",
			},
			Player2Keys: KeyMapping{
				Up:     "ArrowUp",
				Down:   "ArrowDown",
				Left:   "ArrowLeft",
				Right:  "ArrowRight",
				A:      "N",
				B:      "M",
				Start:  "ShiftRight",
				Select: "ControlRight",
			},
		},
		Emulation: EmulationConfig{
			Speed:          1.0,
			ReportSpeed:    false,
			AudioQueueSize: apu.DefaultQueueSize,
			SaveStateSlots: 10,
		},
		Debug: DebugConfig{
			StatsAddr: "localhost:18066",
		},
		Paths: PathsConfig{
			SaveData:    "./saves",
			SaveStates:  "./states",
			Screenshots: "./screenshots",
			Recordings:  "./recordings",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. A missing file is
// created with the current values.
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c.SaveToFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.loaded = true
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	c.configPath = path
	return nil
}

// validate rejects unusable values and clamps the recoverable ones
func (c *Config) validate() error {
	switch strings.ToLower(c.Video.Backend) {
	case "ebitengine", "headless", "terminal":
		c.Video.Backend = strings.ToLower(c.Video.Backend)
	default:
		return &ConfigError{Field: "video.backend", Value: c.Video.Backend, Err: errors.New("unknown backend")}
	}
	if c.Emulation.Speed < 0 {
		return &ConfigError{Field: "emulation.speed", Value: c.Emulation.Speed, Err: errors.New("must not be negative")}
	}

	for _, v := range []*float32{&c.Video.Brightness, &c.Video.Contrast, &c.Video.Saturation} {
		if *v < 0 || *v > 2 {
			*v = 1.0
		}
	}
	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		c.Audio.Volume = 0.8
	}
	if c.Emulation.AudioQueueSize <= 0 {
		c.Emulation.AudioQueueSize = apu.DefaultQueueSize
	}
	if c.Emulation.SaveStateSlots <= 0 {
		c.Emulation.SaveStateSlots = 10
	}
	return nil
}

// EnsureDirectories creates the configured output directories
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SaveData, c.Paths.SaveStates, c.Paths.Screenshots, c.Paths.Recordings} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WindowResolution returns the window size for the configured scale
func (c *Config) WindowResolution() (int, int) {
	return 256 * c.Window.Scale, 240 * c.Window.Scale
}

// IsLoaded returns whether the configuration was loaded from file
func (c *Config) IsLoaded() bool {
	return c.loaded
}

// ConfigPath returns the path of the config file
func (c *Config) ConfigPath() string {
	return c.configPath
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	return "./config/nescore.json"
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s' with value '%v': %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
