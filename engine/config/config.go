// Package config loads the engine configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
}

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position, if applicable.
	PosX uint32 `toml:"pos_x"`
	PosY uint32 `toml:"pos_y"`
	// Window starting size, if applicable.
	Width    uint32 `toml:"width"`
	Height   uint32 `toml:"height"`
	LogLevel string `toml:"log_level"`
}

type RendererConfig struct {
	Backend string `toml:"backend"`
	// Enables VK_LAYER_KHRONOS_validation and the debug messenger.
	Validation bool `toml:"validation"`
	// Use MAILBOX presentation when available, FIFO otherwise.
	PreferMailbox bool       `toml:"prefer_mailbox"`
	ClearColour   [4]float32 `toml:"clear_colour"`
	ClearDepth    float32    `toml:"clear_depth"`
	ClearStencil  uint32     `toml:"clear_stencil"`
	// How long BeginFrame waits on the in-flight fence. 0 waits forever.
	FrameTimeoutMS uint64 `toml:"frame_timeout_ms"`
	// Budget of the host-side arena, in bytes.
	ArenaSize uint64       `toml:"arena_size"`
	Device    DeviceConfig `toml:"device"`
}

type DeviceConfig struct {
	Graphics          bool     `toml:"graphics"`
	Present           bool     `toml:"present"`
	Compute           bool     `toml:"compute"`
	Transfer          bool     `toml:"transfer"`
	SamplerAnisotropy bool     `toml:"sampler_anisotropy"`
	DiscreteGPU       bool     `toml:"discrete_gpu"`
	Extensions        []string `toml:"extensions"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:     "Kiwi Engine",
			PosX:     100,
			PosY:     100,
			Width:    1280,
			Height:   720,
			LogLevel: "info",
		},
		Renderer: RendererConfig{
			Backend:        "vulkan",
			Validation:     true,
			PreferMailbox:  true,
			ClearColour:    [4]float32{0.0, 0.0, 0.2, 1.0},
			ClearDepth:     1.0,
			ClearStencil:   0,
			FrameTimeoutMS: 0,
			ArenaSize:      1 << 20,
			Device: DeviceConfig{
				Graphics:          true,
				Present:           true,
				Transfer:          true,
				SamplerAnisotropy: true,
				DiscreteGPU:       true,
				Extensions:        []string{"VK_KHR_swapchain"},
			},
		},
	}
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Application.Width == 0 || c.Application.Height == 0 {
		return fmt.Errorf("%w: window size must be non zero, got %dx%d", ErrInvalidConfig, c.Application.Width, c.Application.Height)
	}
	switch c.Renderer.Backend {
	case "vulkan":
	default:
		return fmt.Errorf("%w: unknown renderer backend %q", ErrInvalidConfig, c.Renderer.Backend)
	}
	if !c.Renderer.Device.Graphics || !c.Renderer.Device.Present {
		return fmt.Errorf("%w: the renderer needs graphics and present queues", ErrInvalidConfig)
	}
	if c.Renderer.ArenaSize == 0 {
		return fmt.Errorf("%w: arena_size must be non zero", ErrInvalidConfig)
	}
	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
