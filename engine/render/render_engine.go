package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/anima-gfx/engine/containers"
	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/math"
	"github.com/spaghettifunk/anima-gfx/engine/systems"
)

const (
	// time, delta time, frame number, padding
	frameDataSize = 16
	// view projection matrix, viewport
	viewDataSize = 64 + 16

	frameDataLocation = 0
	viewDataLocation  = 1
)

type RenderEngineConfig struct {
	Views      int
	SlabBlock  int
	SkipPolicy SkipPolicy
	Pipelines  PipelineCacheOptions
}

func DefaultRenderEngineConfig() RenderEngineConfig {
	return RenderEngineConfig{
		Views:      1,
		SlabBlock:  256,
		SkipPolicy: DefaultSkipPolicy(),
		Pipelines:  DefaultPipelineCacheOptions(),
	}
}

type DrawCmdHandle = containers.Handle

/**
 * @brief Everything needed to draw one camera: a queue per pass, the view
 * uniform buffer and the skip tracker shared by its passes.
 */
type RenderView struct {
	index      int
	queues     [DrawPassMax]*DrawCmdQueue
	viewData   gfx.UniformBuffer
	skips      *SkipTracker
	primitives DrawPrimitiveCollector
	transient  []DrawCmdHandle

	// Target is optional, without it passes are recorded outside a render pass.
	Target   gfx.RenderPass
	Viewport math.Rect
}

func (v *RenderView) Index() int {
	return v.index
}

func (v *RenderView) Queue(pass DrawPass) *DrawCmdQueue {
	return v.queues[pass]
}

func (v *RenderView) ViewData() gfx.UniformBuffer {
	return v.viewData
}

func (v *RenderView) Skips() *SkipTracker {
	return v.skips
}

// SetViewProjection uploads the camera matrix of the view.
func (v *RenderView) SetViewProjection(ctx gfx.Ctx, viewProj math.Mat4) {
	data := make([]byte, viewDataSize)
	math.PutFloats(data, viewProj.Floats()...)
	math.PutFloats(data[64:], float32(v.Viewport.X), float32(v.Viewport.Y), float32(v.Viewport.Width), float32(v.Viewport.Height))
	ctx.UpdateUniformBuffer(v.viewData, 0, data)
}

// AddPrimitive queues a primitive compiled and drawn this frame only.
func (v *RenderView) AddPrimitive(prim *DrawPrimitive) {
	v.primitives.Add(prim)
}

/**
 * @brief Owns command storage, pipeline compilation and the views.
 *
 * A frame goes BeginRendering, Collect, Render for each view, EndRendering.
 */
type RenderEngine struct {
	config   RenderEngineConfig
	driver   gfx.Driver
	cache    *PipelineCache
	compiler *PipelineCompiler
	views    []*RenderView

	cmdMutex sync.Mutex
	cmds     *containers.Slab[DrawCmd]

	frameData gfx.UniformBuffer

	mutex     sync.Mutex
	time      float32
	deltaTime float32
	stats     ExecuteStats
}

func NewRenderEngine(config RenderEngineConfig, driver gfx.Driver, jobs *systems.JobSystem) (*RenderEngine, error) {
	if config.Views < 1 {
		config.Views = 1
	}
	if err := config.SkipPolicy.Validate(); err != nil {
		return nil, err
	}

	cache := NewPipelineCache(driver, jobs, config.Pipelines)
	e := &RenderEngine{
		config:   config,
		driver:   driver,
		cache:    cache,
		compiler: NewPipelineCompiler(driver, cache),
		cmds:     containers.NewSlab[DrawCmd](config.SlabBlock),
	}

	frameData, err := driver.MakeUniformBuffer(frameDataSize, gfx.MemUsageCpuVisibleGpu, "frame_data")
	if err != nil {
		return nil, fmt.Errorf("render engine: %w", err)
	}
	e.frameData = frameData

	for i := 0; i < config.Views; i++ {
		viewData, err := driver.MakeUniformBuffer(viewDataSize, gfx.MemUsageCpuVisibleGpu, fmt.Sprintf("view_data_%d", i))
		if err != nil {
			e.Destroy()
			return nil, fmt.Errorf("render engine: %w", err)
		}
		view := &RenderView{index: i, viewData: viewData, skips: NewSkipTracker(config.SkipPolicy)}
		for pass := DrawPass(0); pass < DrawPassMax; pass++ {
			q := NewDrawCmdQueue(fmt.Sprintf("view %d %s", i, pass))
			q.SetSkipPolicy(view.skips)
			view.queues[pass] = q
		}
		e.views = append(e.views, view)
	}

	core.LogInfo("render engine created with %d view(s)", config.Views)
	return e, nil
}

func (e *RenderEngine) Driver() gfx.Driver            { return e.driver }
func (e *RenderEngine) Compiler() *PipelineCompiler   { return e.compiler }
func (e *RenderEngine) PipelineCache() *PipelineCache { return e.cache }
func (e *RenderEngine) FrameData() gfx.UniformBuffer  { return e.frameData }
func (e *RenderEngine) ViewCount() int                { return len(e.views) }
func (e *RenderEngine) View(index int) *RenderView    { return e.views[index] }
func (e *RenderEngine) Config() RenderEngineConfig    { return e.config }
func (e *RenderEngine) SkipPolicy() SkipPolicy        { return e.config.SkipPolicy }

func (e *RenderEngine) AllocateDrawCmd() (DrawCmdHandle, *DrawCmd) {
	e.cmdMutex.Lock()
	defer e.cmdMutex.Unlock()
	return e.cmds.Allocate()
}

func (e *RenderEngine) FreeDrawCmd(h DrawCmdHandle) error {
	e.cmdMutex.Lock()
	defer e.cmdMutex.Unlock()
	return e.cmds.Free(h)
}

func (e *RenderEngine) DrawCmd(h DrawCmdHandle) (*DrawCmd, bool) {
	e.cmdMutex.Lock()
	defer e.cmdMutex.Unlock()
	return e.cmds.Get(h)
}

// LiveDrawCmds returns the number of allocated commands.
func (e *RenderEngine) LiveDrawCmds() int {
	e.cmdMutex.Lock()
	defer e.cmdMutex.Unlock()
	return e.cmds.Len()
}

func (e *RenderEngine) SetTime(t float32) {
	e.mutex.Lock()
	e.time = t
	e.mutex.Unlock()
}

func (e *RenderEngine) SetDeltaTime(dt float32) {
	e.mutex.Lock()
	e.deltaTime = dt
	e.mutex.Unlock()
}

func (e *RenderEngine) Time() float32 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.time
}

func (e *RenderEngine) DeltaTime() float32 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.deltaTime
}

// BeginRendering uploads the frame data and resets the frame stats.
func (e *RenderEngine) BeginRendering() {
	e.mutex.Lock()
	data := make([]byte, frameDataSize)
	math.PutFloats(data, e.time, e.deltaTime, float32(e.driver.FrameNumber()))
	e.stats = ExecuteStats{}
	e.mutex.Unlock()

	e.driver.Ctx().UpdateUniformBuffer(e.frameData, 0, data)
}

// Producer generates commands for a frame. Producers run concurrently.
type Producer func(ctx context.Context, s *Submitter) error

/** @brief Handed to producers to push commands into the view queues. */
type Submitter struct {
	engine *RenderEngine
}

func (s *Submitter) Engine() *RenderEngine {
	return s.engine
}

func (s *Submitter) Push(view int, pass DrawPass, key DrawCmdSortingKey, cmd *DrawCmd) error {
	if view < 0 || view >= len(s.engine.views) {
		return fmt.Errorf("no view %d", view)
	}
	if pass >= DrawPassMax {
		return fmt.Errorf("no pass %s", pass)
	}
	s.engine.views[view].queues[pass].Push(key, cmd)
	return nil
}

func (s *Submitter) AddPrimitive(view int, prim *DrawPrimitive) error {
	if view < 0 || view >= len(s.engine.views) {
		return fmt.Errorf("no view %d", view)
	}
	s.engine.views[view].AddPrimitive(prim)
	return nil
}

// Collect runs producers concurrently and waits for all of them. The first
// error cancels the context handed to the others.
func (e *RenderEngine) Collect(ctx context.Context, producers ...Producer) error {
	g, gctx := errgroup.WithContext(ctx)
	submitter := &Submitter{engine: e}
	for _, producer := range producers {
		g.Go(func() error {
			return producer(gctx, submitter)
		})
	}
	return g.Wait()
}

/**
 * @brief Draws every pass of view in DrawPass order and clears its queues.
 * The error is the escalation of the view skip policy, if any.
 */
func (e *RenderEngine) Render(index int) (ExecuteStats, error) {
	if index < 0 || index >= len(e.views) {
		return ExecuteStats{}, fmt.Errorf("no view %d", index)
	}
	view := e.views[index]
	ctx := e.driver.Ctx()

	e.compileTransient(view)

	if view.Target != nil {
		ctx.BeginRenderPass(view.Target, fmt.Sprintf("view %d", index))
		ctx.Viewport(view.Viewport)
	}

	passBuffers := []DrawUniformBuffer{
		{Buffer: e.frameData, Range: frameDataSize, Location: frameDataLocation},
		{Buffer: view.viewData, Range: viewDataSize, Location: viewDataLocation},
	}

	var (
		stats ExecuteStats
		errs  []error
	)
	for _, q := range view.queues {
		if q.Len() == 0 {
			continue
		}
		ctx.BeginLabel(q.Name())
		q.Sort()
		st, err := q.Execute(ctx, passBuffers)
		ctx.EndLabel()
		q.Clear()

		stats.Add(st)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if view.Target != nil {
		ctx.EndRenderPass()
	}

	e.mutex.Lock()
	e.stats.Add(stats)
	e.mutex.Unlock()
	return stats, errors.Join(errs...)
}

// compileTransient turns the primitives added this frame into commands
// freed again by EndRendering.
func (e *RenderEngine) compileTransient(view *RenderView) {
	prims := view.primitives.Primitives()
	view.primitives.Clear()

	for _, prim := range prims {
		n := prim.DrawPass.Count()
		if n == 0 {
			core.LogError("primitive %s: %s", prim.Name, core.ErrNoDrawPass.Error())
			continue
		}
		handles := make([]DrawCmdHandle, n)
		cmds := make([]*DrawCmd, n)
		for i := range cmds {
			handles[i], cmds[i] = e.AllocateDrawCmd()
		}
		view.transient = append(view.transient, handles...)

		if err := e.compiler.Compile(prim, cmds); err != nil {
			// not ready pipelines show up again next frame
			continue
		}
		key, err := NewOverlaySortingKey(cmds[0].Material, prim.Layer)
		if err != nil {
			core.LogError("primitive %s: %s", prim.Name, err.Error())
			continue
		}
		for i, pass := range prim.DrawPass.Passes() {
			view.queues[pass].Push(key, cmds[i])
		}
	}
}

// EndRendering frees this frame's transient commands and closes the frame
// of every skip tracker.
func (e *RenderEngine) EndRendering() error {
	var errs []error
	for _, view := range e.views {
		for _, h := range view.transient {
			if err := e.FreeDrawCmd(h); err != nil {
				errs = append(errs, err)
			}
		}
		view.transient = view.transient[:0]

		if err := view.skips.EndFrame(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the totals of the frame in progress or the last one.
func (e *RenderEngine) Stats() ExecuteStats {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.stats
}

func (e *RenderEngine) Destroy() {
	e.cache.Clear()
	for _, view := range e.views {
		if view.viewData != nil {
			e.driver.Destroy(view.viewData)
		}
	}
	if e.frameData != nil {
		e.driver.Destroy(e.frameData)
	}
	core.LogInfo("render engine destroyed")
}
