package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/desc"
	"github.com/spaghettifunk/anima-gfx/engine/render"
)

type GfxConfig struct {
	// Threaded runs the backend on its own goroutine behind the command stream.
	Threaded bool `toml:"threaded"`
	// Backend selects the driver, only "null" is available headless.
	Backend string `toml:"backend"`
	// StreamCapacity bounds the command stream of the threaded wrapper.
	StreamCapacity int `toml:"stream_capacity"`
}

type RenderConfig struct {
	Views            int               `toml:"views"`
	CompileWorkers   int               `toml:"compile_workers"`
	CompileQueueSize int               `toml:"compile_queue_size"`
	Layers           int               `toml:"layers"`
	SkipPolicy       render.SkipPolicy `toml:"skip_policy"`
}

type AssetsConfig struct {
	MaterialsDir string `toml:"materials_dir"`
	Watch        bool   `toml:"watch"`
}

type ApplicationConfig struct {
	// The application name used in logs.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	// Frames to run before stopping, 0 runs until Shutdown.
	Frames int `toml:"frames"`
	// FrameMS is the target frame time in milliseconds, 0 runs unthrottled.
	FrameMS int `toml:"frame_ms"`

	Gfx      GfxConfig      `toml:"gfx"`
	DescPool desc.PoolSizes `toml:"desc_pool"`
	Render   RenderConfig   `toml:"render"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:     "Anima Gfx",
		LogLevel: "info",
		FrameMS:  16,
		Gfx: GfxConfig{
			Threaded:       true,
			Backend:        "null",
			StreamCapacity: 1024,
		},
		DescPool: desc.DefaultPoolSizes(),
		Render: RenderConfig{
			Views:            1,
			CompileWorkers:   2,
			CompileQueueSize: 64,
			Layers:           16,
			SkipPolicy:       render.DefaultSkipPolicy(),
		},
		Assets: AssetsConfig{MaterialsDir: "assets/materials"},
	}
}

// LoadApplicationConfig reads path over the defaults. Unknown keys are errors.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(config); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("config %s: %s", path, strict.String())
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Gfx.Backend != "null" {
		return fmt.Errorf("unsupported gfx backend %q", c.Gfx.Backend)
	}
	if c.Frames < 0 || c.FrameMS < 0 {
		return fmt.Errorf("frames and frame_ms must not be negative")
	}
	if c.Render.Views < 1 {
		return fmt.Errorf("render needs at least one view, got %d", c.Render.Views)
	}
	if c.Render.CompileWorkers < 1 {
		return fmt.Errorf("render needs at least one compile worker, got %d", c.Render.CompileWorkers)
	}
	if c.DescPool.MaxSets < 1 {
		return fmt.Errorf("desc_pool.max_sets must be positive, got %d", c.DescPool.MaxSets)
	}
	return c.Render.SkipPolicy.Validate()
}

func (c *ApplicationConfig) FrameTime() time.Duration {
	return time.Duration(c.FrameMS) * time.Millisecond
}
