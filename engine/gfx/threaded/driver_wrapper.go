// Package threaded marshals every gfx call onto one dedicated goroutine
// that owns the backend. Calls whose result the caller needs block until
// the gfx goroutine ran them, everything else is queued and returns.
package threaded

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

const defaultStreamCapacity = 1024

type DriverWrapper struct {
	driver gfx.Driver
	stream *core.CmdStream
	ctx    *CtxWrapper

	gfxGoroutine atomic.Uint64
	frame        atomic.Uint64
	done         chan struct{}
	shutdownOnce sync.Once
}

// NewDriverWrapper starts the gfx goroutine and takes ownership of driver.
// From here on the driver must only be used through the wrapper.
func NewDriverWrapper(driver gfx.Driver, streamCapacity int) *DriverWrapper {
	if streamCapacity <= 0 {
		streamCapacity = defaultStreamCapacity
	}
	w := &DriverWrapper{
		driver: driver,
		stream: core.NewCmdStream(streamCapacity),
		done:   make(chan struct{}),
	}
	w.ctx = &CtxWrapper{wrapper: w}

	started := make(chan struct{})
	go w.loop(started)
	<-started

	core.LogInfo("gfx thread started")
	return w
}

func (w *DriverWrapper) loop(started chan<- struct{}) {
	// graphics APIs want their context on one os thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	w.gfxGoroutine.Store(core.GoroutineID())
	w.ctx.ctx = w.driver.Ctx()
	close(started)

	for w.stream.Consume() {
	}
	core.LogInfo("gfx thread stopped")
}

// call runs fn and turns a panic into an error so nothing unwinds the gfx goroutine.
func call(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gfx %s panicked: %v", op, r)
			core.LogError(err.Error())
		}
	}()
	fn()
	return nil
}

func (w *DriverWrapper) push(op string, fn func()) {
	if w.OnGfxThread() {
		_ = call(op, fn)
		return
	}
	if err := w.stream.Push(func() { _ = call(op, fn) }); err != nil {
		core.LogWarn("gfx %s dropped: %s", op, err.Error())
	}
}

func (w *DriverWrapper) pushAndWait(op string, fn func()) error {
	var callErr error
	run := func() { callErr = call(op, fn) }

	// already on the gfx goroutine, queuing would wait on ourselves
	if w.OnGfxThread() {
		run()
		return callErr
	}
	if err := w.stream.PushAndWait(run); err != nil {
		core.LogWarn("gfx %s dropped: %s", op, err.Error())
		return err
	}
	return callErr
}

func wait[T any](w *DriverWrapper, op string, fn func() (T, error)) (T, error) {
	var out T
	var err error
	if werr := w.pushAndWait(op, func() { out, err = fn() }); werr != nil {
		var zero T
		return zero, werr
	}
	return out, err
}

func (w *DriverWrapper) MakeVertFormat(elements gfx.VertElements, name string) (gfx.VertFormat, error) {
	return wait(w, "make_vert_format", func() (gfx.VertFormat, error) {
		return w.driver.MakeVertFormat(elements, name)
	})
}

func (w *DriverWrapper) MakeVertBuffer(size int, usage gfx.MemUsage, name string) (gfx.VertBuffer, error) {
	return wait(w, "make_vert_buffer", func() (gfx.VertBuffer, error) {
		return w.driver.MakeVertBuffer(size, usage, name)
	})
}

func (w *DriverWrapper) MakeIndexBuffer(size int, usage gfx.MemUsage, name string) (gfx.IndexBuffer, error) {
	return wait(w, "make_index_buffer", func() (gfx.IndexBuffer, error) {
		return w.driver.MakeIndexBuffer(size, usage, name)
	})
}

func (w *DriverWrapper) MakeUniformBuffer(size int, usage gfx.MemUsage, name string) (gfx.UniformBuffer, error) {
	return wait(w, "make_uniform_buffer", func() (gfx.UniformBuffer, error) {
		return w.driver.MakeUniformBuffer(size, usage, name)
	})
}

func (w *DriverWrapper) MakeStorageBuffer(size int, usage gfx.MemUsage, name string) (gfx.StorageBuffer, error) {
	return wait(w, "make_storage_buffer", func() (gfx.StorageBuffer, error) {
		return w.driver.MakeStorageBuffer(size, usage, name)
	})
}

func (w *DriverWrapper) MakeShader(desc gfx.ShaderDesc, name string) (gfx.Shader, error) {
	return wait(w, "make_shader", func() (gfx.Shader, error) {
		return w.driver.MakeShader(desc, name)
	})
}

func (w *DriverWrapper) MakeTexture2d(desc gfx.TextureDesc, name string) (gfx.Texture, error) {
	return wait(w, "make_texture_2d", func() (gfx.Texture, error) {
		return w.driver.MakeTexture2d(desc, name)
	})
}

func (w *DriverWrapper) MakeSampler(desc gfx.SamplerDesc, name string) (gfx.Sampler, error) {
	return wait(w, "make_sampler", func() (gfx.Sampler, error) {
		return w.driver.MakeSampler(desc, name)
	})
}

func (w *DriverWrapper) MakeRenderPass(desc gfx.RenderPassDesc, name string) (gfx.RenderPass, error) {
	return wait(w, "make_render_pass", func() (gfx.RenderPass, error) {
		return w.driver.MakeRenderPass(desc, name)
	})
}

func (w *DriverWrapper) MakePipeline(desc gfx.PipelineDesc, name string) (gfx.Pipeline, error) {
	return wait(w, "make_pipeline", func() (gfx.Pipeline, error) {
		return w.driver.MakePipeline(desc, name)
	})
}

func (w *DriverWrapper) MakeDescSetLayout(desc gfx.DescSetLayoutDesc, name string) (gfx.DescSetLayout, error) {
	return wait(w, "make_desc_set_layout", func() (gfx.DescSetLayout, error) {
		return w.driver.MakeDescSetLayout(desc, name)
	})
}

func (w *DriverWrapper) MakeDescSet(resources gfx.DescSetResources, layout gfx.DescSetLayout, name string) (gfx.DescSet, error) {
	return wait(w, "make_desc_set", func() (gfx.DescSet, error) {
		return w.driver.MakeDescSet(resources, layout, name)
	})
}

func (w *DriverWrapper) Destroy(resource gfx.Resource) {
	w.push("destroy", func() { w.driver.Destroy(resource) })
}

func (w *DriverWrapper) PrepareWindow(window string) {
	w.push("prepare_window", func() { w.driver.PrepareWindow(window) })
}

func (w *DriverWrapper) SwapBuffers(window string) {
	_ = w.pushAndWait("swap_buffers", func() { w.driver.SwapBuffers(window) })
}

// Flush returns once every call queued before it has reached the backend.
func (w *DriverWrapper) Flush() {
	_ = w.pushAndWait("flush", w.driver.Flush)
}

// Shutdown waits for all queued work and the backend shutdown, then stops
// the gfx goroutine. Later calls are dropped with a warning.
func (w *DriverWrapper) Shutdown() {
	w.shutdownOnce.Do(func() {
		_ = w.pushAndWait("shutdown", w.driver.Shutdown)
		w.stream.PushClose()
		if !w.OnGfxThread() {
			<-w.done
		}
	})
}

func (w *DriverWrapper) OnGfxThread() bool {
	return core.GoroutineID() == w.gfxGoroutine.Load()
}

func (w *DriverWrapper) FrameNumber() uint64 {
	return w.frame.Load()
}

func (w *DriverWrapper) Ctx() gfx.Ctx {
	return w.ctx
}

// Stream exposes the command stream backing the wrapper.
func (w *DriverWrapper) Stream() *core.CmdStream {
	return w.stream
}
