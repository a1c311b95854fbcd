package threaded

import (
	"sync"
	"testing"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/nulldrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingDriver remembers which goroutines issued draws.
type trackingDriver struct {
	*nulldrv.Driver

	mutex      sync.Mutex
	goroutines map[uint64]int
}

func (d *trackingDriver) Ctx() gfx.Ctx {
	return d
}

func (d *trackingDriver) Draw(vertexCount, baseVertex, instanceCount int) {
	d.mutex.Lock()
	d.goroutines[core.GoroutineID()]++
	d.mutex.Unlock()
	d.Driver.Draw(vertexCount, baseVertex, instanceCount)
}

func newWrapper(t *testing.T) (*DriverWrapper, *trackingDriver) {
	t.Helper()
	null, err := nulldrv.New(nulldrv.DefaultOptions())
	require.NoError(t, err)
	backend := &trackingDriver{Driver: null, goroutines: map[uint64]int{}}
	w := NewDriverWrapper(backend, 8)
	t.Cleanup(w.Shutdown)
	return w, backend
}

func TestCallsRunOnTheGfxGoroutineInOrder(t *testing.T) {
	w, backend := newWrapper(t)
	ctx := w.Ctx()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ctx.Draw(3, 0, 1)
			}
		}()
	}
	wg.Wait()

	ctx.BeginLabel("overlay")
	ctx.DrawIndexed(6, 0, 1)
	ctx.EndLabel()
	w.Flush()

	require.Len(t, backend.goroutines, 1)
	for id, n := range backend.goroutines {
		assert.NotEqual(t, core.GoroutineID(), id)
		assert.Equal(t, 200, n)
	}

	ops := backend.Ops()
	require.GreaterOrEqual(t, len(ops), 4)
	assert.Equal(t, []string{nulldrv.OpBeginLabel, nulldrv.OpDrawIndexed, nulldrv.OpEndLabel, nulldrv.OpFlush}, ops[len(ops)-4:])
	assert.False(t, w.OnGfxThread())
}

func TestCreationReturnsTheBackendResult(t *testing.T) {
	w, _ := newWrapper(t)

	buf, err := w.MakeUniformBuffer(64, gfx.MemUsageCpuVisibleGpu, "view")
	require.NoError(t, err)
	assert.Equal(t, "view", buf.Name())
	assert.Equal(t, 64, buf.Size())

	_, err = w.MakeUniformBuffer(0, gfx.MemUsageCpuVisibleGpu, "broken")
	assert.Error(t, err)
}

func TestUpdateDataIsCopied(t *testing.T) {
	w, _ := newWrapper(t)
	vb, err := w.MakeVertBuffer(4, gfx.MemUsageGpuLocal, "quad")
	require.NoError(t, err)

	data := []byte{1, 2, 3, 4}
	w.Ctx().UpdateVertBuffer(vb, 0, data)
	data[0] = 42

	mapped := w.Ctx().MapBuffer(vb)
	assert.Equal(t, []byte{1, 2, 3, 4}, mapped)
	w.Ctx().UnmapBuffer(vb)
}

func TestBindPipelineBlocksForTheResult(t *testing.T) {
	w, _ := newWrapper(t)
	shader, err := w.MakeShader(gfx.ShaderDesc{}, "mesh")
	require.NoError(t, err)
	p, err := w.MakePipeline(gfx.PipelineDesc{Shader: shader}, "mesh.color")
	require.NoError(t, err)

	assert.True(t, w.Ctx().BindPipeline(p))
	p.(*nulldrv.Pipeline).SetStatus(gfx.PipelineStatusFailed)
	assert.False(t, w.Ctx().BindPipeline(p))
}

func TestBackendPanicsAreContained(t *testing.T) {
	w, backend := newWrapper(t)

	w.Ctx().Execute(func(gfx.Ctx) { panic("lost device") })
	w.Ctx().Draw(3, 0, 1)
	w.Flush()

	assert.Equal(t, 1, backend.Count(nulldrv.OpDraw))
}

func TestExecuteRunsInlineOnTheGfxGoroutine(t *testing.T) {
	w, backend := newWrapper(t)

	done := make(chan bool, 1)
	w.Ctx().Execute(func(ctx gfx.Ctx) {
		ctx.Draw(3, 0, 1)
		// waiting calls from the gfx goroutine must not deadlock
		w.Flush()
		done <- w.OnGfxThread()
	})
	w.Flush()

	assert.True(t, <-done)
	assert.Equal(t, 1, backend.Count(nulldrv.OpDraw))
	assert.Equal(t, 2, backend.Count(nulldrv.OpFlush))
}

func TestWrappedCallsFromTheGfxGoroutineKeepOrder(t *testing.T) {
	w, backend := newWrapper(t)
	w.Flush()
	backend.Reset()

	w.Ctx().Execute(func(gfx.Ctx) {
		w.Ctx().BeginLabel("nested")
		w.Ctx().Draw(3, 0, 1)
		w.Ctx().EndLabel()
		w.Flush()
	})
	w.Flush()

	assert.Equal(t, []string{
		nulldrv.OpBeginLabel, nulldrv.OpDraw, nulldrv.OpEndLabel, nulldrv.OpFlush, nulldrv.OpFlush,
	}, backend.Ops())
	require.Len(t, backend.goroutines, 1)
}

func TestFrameNumberCountsBeginFrame(t *testing.T) {
	w, backend := newWrapper(t)
	w.Ctx().BeginFrame()
	w.Ctx().EndFrame()
	w.Ctx().BeginFrame()
	assert.Equal(t, uint64(2), w.FrameNumber())

	w.Flush()
	assert.Equal(t, uint64(2), backend.FrameNumber())
}

func TestShutdown(t *testing.T) {
	w, backend := newWrapper(t)
	w.Ctx().Draw(3, 0, 1)

	w.Shutdown()
	w.Shutdown()

	assert.Equal(t, 1, backend.Count(nulldrv.OpDraw))
	assert.Equal(t, 1, backend.Count(nulldrv.OpShutdown))
	assert.True(t, w.Stream().IsClosed())

	_, err := w.MakeVertBuffer(16, gfx.MemUsageGpuLocal, "late")
	assert.ErrorIs(t, err, core.ErrStreamClosed)
	assert.False(t, w.Ctx().BindPipeline(nil))
	assert.Nil(t, w.Ctx().MapBuffer(nil))

	w.Ctx().Draw(3, 0, 1)
	assert.Equal(t, 1, backend.Count(nulldrv.OpDraw))
}
