package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-gfx/engine/assets"
	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/nulldrv"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/threaded"
	"github.com/spaghettifunk/anima-gfx/engine/math"
	"github.com/spaghettifunk/anima-gfx/engine/render"
	"github.com/spaghettifunk/anima-gfx/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine created its subsystems and is ready to be initialized
	EngineStageBootComplete
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageStopped
)

const (
	windowName = "main"
	// longest step in seconds handed to the game update
	maxFrameDelta = 0.25
)

type Engine struct {
	stage        atomic.Uint32
	gameInstance *Game
	config       *ApplicationConfig

	backend  *nulldrv.Driver
	wrapper  *threaded.DriverWrapper
	driver   gfx.Driver
	jobs     *systems.JobSystem
	renderer *render.RenderEngine

	shaders   *assets.Registry[*render.Shader]
	textures  *assets.Registry[assets.TextureBinding]
	materials *assets.MaterialLibrary

	events   *core.EventBus
	clock    *core.Clock
	metrics  *core.FrameMetrics
	lastTime float64
	frames   int

	isRunning    atomic.Bool
	shutdownOnce sync.Once
}

func New(g *Game) (*Engine, error) {
	config := g.ApplicationConfig
	if config == nil {
		config = DefaultApplicationConfig()
		g.ApplicationConfig = config
	}
	if err := config.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	level, _ := core.ParseLogLevel(config.LogLevel)
	core.SetLogLevel(level)

	backend, err := nulldrv.New(nulldrv.Options{DescPool: config.DescPool})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		gameInstance: g,
		config:       config,
		backend:      backend,
		driver:       backend,
		shaders:      assets.NewRegistry[*render.Shader](),
		textures:     assets.NewRegistry[assets.TextureBinding](),
		events:       core.NewEventBus(),
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
	}
	if config.Gfx.Threaded {
		e.wrapper = threaded.NewDriverWrapper(backend, config.Gfx.StreamCapacity)
		e.driver = e.wrapper
		backend.SetOwner(e.wrapper.OnGfxThread)
	}

	jobs, err := systems.NewJobSystem(config.Render.CompileWorkers, config.Render.CompileQueueSize)
	if err != nil {
		e.release()
		return nil, err
	}
	e.jobs = jobs

	rc := render.DefaultRenderEngineConfig()
	rc.Views = config.Render.Views
	rc.SkipPolicy = config.Render.SkipPolicy
	renderer, err := render.NewRenderEngine(rc, e.driver, jobs)
	if err != nil {
		e.release()
		return nil, err
	}
	e.renderer = renderer
	e.materials = assets.NewMaterialLibrary(config.Assets.MaterialsDir, e.shaders, e.textures)
	e.materials.SetEventBus(e.events)
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, func(core.SystemEventCode, interface{}, interface{}, core.EventContext) bool {
		core.LogInfo("quit requested")
		_ = e.Shutdown()
		return true
	})

	e.stage.Store(uint32(EngineStageBootComplete))
	core.LogInfo("%s booted (threaded=%t)", config.Name, config.Gfx.Threaded)
	return e, nil
}

// Initialize runs the game initialization, then loads the materials, so the
// game gets to register the shaders and textures they refer to.
func (e *Engine) Initialize() error {
	if e.Stage() != EngineStageBootComplete {
		return fmt.Errorf("engine cannot initialize in stage %d", e.Stage())
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}

	dir := e.config.Assets.MaterialsDir
	if _, err := os.Stat(dir); err == nil {
		if err := e.materials.Load(); err != nil {
			core.LogWarn("some materials failed to load: %s", err.Error())
		}
		if e.config.Assets.Watch {
			if err := e.materials.Watch(); err != nil {
				return err
			}
		}
	} else {
		core.LogDebug("no material directory at %s", dir)
	}

	e.stage.Store(uint32(EngineStageInitialized))
	return nil
}

// Run drives frames until Shutdown is called, the configured frame count is
// reached, or a frame fails. Everything the engine owns is released on return.
func (e *Engine) Run() error {
	if e.Stage() != EngineStageInitialized {
		return fmt.Errorf("engine cannot run in stage %d", e.Stage())
	}
	e.stage.Store(uint32(EngineStageRunning))
	e.isRunning.Store(true)
	defer e.release()

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Seconds()

	for e.isRunning.Load() {
		frameStart := time.Now()
		e.clock.Update()
		currentTime := e.clock.Seconds()
		delta := math.Clamp(currentTime-e.lastTime, 0, maxFrameDelta)

		stats, err := e.frame(currentTime, delta)
		if errors.Is(err, core.ErrPipelineStalled) {
			e.events.Fire(core.EVENT_CODE_PIPELINE_STALLED, e, core.EventContext{Data: err})
		}
		if err != nil {
			core.LogError("frame %d failed, shutting down: %s", e.frames, err.Error())
			return err
		}

		frameElapsed := time.Since(frameStart)
		e.metrics.Update(core.FrameSample{Elapsed: frameElapsed.Seconds(), Draws: stats.Draws, Skipped: stats.Skipped})
		e.frames++
		e.lastTime = currentTime

		if n := e.config.Frames; n > 0 && e.frames >= n {
			break
		}
		if remaining := e.config.FrameTime() - frameElapsed; remaining > 0 {
			time.Sleep(remaining)
		}
	}
	return nil
}

func (e *Engine) frame(currentTime, delta float64) (render.ExecuteStats, error) {
	ctx := e.driver.Ctx()
	e.driver.PrepareWindow(windowName)
	ctx.BeginFrame()

	e.renderer.SetTime(float32(currentTime))
	e.renderer.SetDeltaTime(float32(delta))
	e.renderer.BeginRendering()

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return render.ExecuteStats{}, fmt.Errorf("game update: %w", err)
		}
	}
	if e.gameInstance.FnRender != nil {
		err := e.renderer.Collect(context.Background(), func(_ context.Context, s *render.Submitter) error {
			return e.gameInstance.FnRender(s, delta)
		})
		if err != nil {
			return render.ExecuteStats{}, fmt.Errorf("game render: %w", err)
		}
	}

	var (
		stats render.ExecuteStats
		errs  []error
	)
	for i := 0; i < e.renderer.ViewCount(); i++ {
		st, err := e.renderer.Render(i)
		stats.Add(st)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.renderer.EndRendering(); err != nil {
		errs = append(errs, err)
	}

	ctx.EndFrame()
	e.driver.SwapBuffers(windowName)
	return stats, errors.Join(errs...)
}

// Shutdown asks the frame loop to stop. It is safe to call from any goroutine.
func (e *Engine) Shutdown() error {
	e.isRunning.Store(false)
	// never ran, nothing else will release
	if e.Stage() < EngineStageRunning {
		e.release()
	}
	return nil
}

func (e *Engine) release() {
	e.shutdownOnce.Do(func() {
		e.stage.Store(uint32(EngineStageShuttingDown))
		if e.gameInstance.FnShutdown != nil {
			if err := e.gameInstance.FnShutdown(); err != nil {
				core.LogError("game shutdown: %s", err.Error())
			}
		}
		if e.materials != nil {
			if err := e.materials.Close(); err != nil {
				core.LogError(err.Error())
			}
		}
		if e.renderer != nil {
			e.renderer.Destroy()
		}
		if e.jobs != nil {
			_ = e.jobs.Shutdown()
		}
		if e.wrapper != nil {
			e.wrapper.Shutdown()
		} else {
			e.backend.Shutdown()
		}

		e.events.Shutdown()

		frames, draws, skipped := e.metrics.Totals()
		core.LogInfo("%s stopped after %d frames, %d draws, %d skipped", e.config.Name, frames, draws, skipped)
		e.stage.Store(uint32(EngineStageStopped))
	})
}

func (e *Engine) Stage() Stage                                      { return Stage(e.stage.Load()) }
func (e *Engine) Config() *ApplicationConfig                        { return e.config }
func (e *Engine) Driver() gfx.Driver                                { return e.driver }
func (e *Engine) Backend() *nulldrv.Driver                          { return e.backend }
func (e *Engine) Renderer() *render.RenderEngine                    { return e.renderer }
func (e *Engine) Shaders() *assets.Registry[*render.Shader]         { return e.shaders }
func (e *Engine) Textures() *assets.Registry[assets.TextureBinding] { return e.textures }
func (e *Engine) Materials() *assets.MaterialLibrary                { return e.materials }
func (e *Engine) Events() *core.EventBus                            { return e.events }
func (e *Engine) Metrics() *core.FrameMetrics                       { return e.metrics }
func (e *Engine) Frames() int                                       { return e.frames }
