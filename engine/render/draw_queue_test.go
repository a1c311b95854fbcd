package render

import (
	"sync"
	"testing"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/nulldrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOne(t *testing.T, compiler *PipelineCompiler, prim *DrawPrimitive) (*DrawCmd, DrawCmdSortingKey) {
	t.Helper()
	cmd := &DrawCmd{}
	require.NoError(t, compiler.Compile(prim, []*DrawCmd{cmd}))
	key, err := NewOverlaySortingKey(cmd.Material, prim.Layer)
	require.NoError(t, err)
	return cmd, key
}

func TestOverlayDrawEndToEnd(t *testing.T) {
	d := newDefaultDriver(t)
	g := newGeometry(t, d)
	shader := newTestShader(t, d, "overlay", NewDrawPassMask(DrawPassOverlay2d))
	m := NewMaterial("hud", shader)
	compiler := newCompiler(d)

	prim := g.primitive("hud.quad", m, 3, NewDrawPassMask(DrawPassOverlay2d))
	cmd, key := compileOne(t, compiler, prim)
	assert.Equal(t, 3, key.Layer())

	queue := NewDrawCmdQueue("overlay")
	queue.Push(key, cmd)
	queue.Sort()

	d.Reset()
	stats, err := queue.Execute(d, nil)
	require.NoError(t, err)
	assert.Equal(t, ExecuteStats{Draws: 1, PipelineBinds: 1, MaterialBinds: 1}, stats)

	assert.Equal(t, []string{
		nulldrv.OpBindPipeline,
		nulldrv.OpBindVertBuffer,
		nulldrv.OpBindIndexBuffer,
		nulldrv.OpBindUniformBuffer,
		nulldrv.OpDrawIndexed,
	}, d.Ops())

	draws := d.Filter(nulldrv.OpDrawIndexed)
	require.Len(t, draws, 1)
	assert.Equal(t, []any{6, 0, 1}, draws[0].Args)

	index := d.Filter(nulldrv.OpBindIndexBuffer)
	assert.Equal(t, gfx.IndexTypeUint16, index[0].Args[1])

	material := d.Filter(nulldrv.OpBindUniformBuffer)
	assert.Equal(t, gfx.Location{Set: DrawSetPerMaterial, Binding: 0}, material[0].Args[0])
}

func TestMaterialBindsAreBatched(t *testing.T) {
	d := newDefaultDriver(t)
	g := newGeometry(t, d)
	shader := newTestShader(t, d, "overlay", NewDrawPassMask(DrawPassOverlay2d))
	mm := NewMaterial("m", shader)
	nm := NewMaterial("n", shader)
	compiler := newCompiler(d)
	overlay := NewDrawPassMask(DrawPassOverlay2d)

	queue := NewDrawCmdQueue("overlay")
	for _, prim := range []*DrawPrimitive{
		g.primitive("a", mm, 1, overlay),
		g.primitive("b", nm, 1, overlay),
		g.primitive("c", mm, 1, overlay),
	} {
		cmd, key := compileOne(t, compiler, prim)
		queue.Push(key, cmd)
	}
	queue.Sort()

	keys := queue.Keys()
	require.Len(t, keys, 3)
	// same material ends up adjacent
	assert.True(t, keys[0] == keys[1] || keys[1] == keys[2])

	d.Reset()
	stats, err := queue.Execute(d, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MaterialBinds)
	assert.Equal(t, 1, stats.PipelineBinds)
	assert.Equal(t, 3, stats.Draws)
	assert.Equal(t, 2, d.Count(nulldrv.OpBindUniformBuffer))
	assert.Equal(t, 1, d.Count(nulldrv.OpBindPipeline))
}

func TestSortIsStableForEqualKeys(t *testing.T) {
	queue := NewDrawCmdQueue("color")
	key, err := NewSortingKey(2, 42)
	require.NoError(t, err)
	low, err := NewSortingKey(0, 1)
	require.NoError(t, err)

	a, b, c := &DrawCmd{}, &DrawCmd{}, &DrawCmd{}
	queue.Push(low, c)
	queue.Push(key, a)
	queue.Push(key, b)
	queue.Sort()
	assert.Equal(t, []*DrawCmd{a, b, c}, queue.Cmds())

	queue.Clear()
	assert.Zero(t, queue.Len())
}

func TestConcurrentPush(t *testing.T) {
	queue := NewDrawCmdQueue("color")
	queue.Reserve(400)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				queue.Push(DrawCmdSortingKey(j), &DrawCmd{})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, queue.Len())
}

func TestExecuteBindsPassBuffersOnce(t *testing.T) {
	d := newDefaultDriver(t)
	g := newGeometry(t, d)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor))
	m := NewMaterial("brick", shader)
	compiler := newCompiler(d)
	frame, err := d.MakeUniformBuffer(16, gfx.MemUsageCpuVisibleGpu, "frame")
	require.NoError(t, err)

	queue := NewDrawCmdQueue("color")
	for i := 0; i < 3; i++ {
		cmd, key := compileOne(t, compiler, g.primitive("quad", m, 0, NewDrawPassMask(DrawPassColor)))
		queue.Push(key, cmd)
	}

	d.Reset()
	_, err = queue.Execute(d, []DrawUniformBuffer{{Buffer: frame, Range: 16, Location: 0}, {}})
	require.NoError(t, err)

	var passBinds int
	for _, c := range d.Filter(nulldrv.OpBindUniformBuffer) {
		if c.Args[0].(gfx.Location).Set == DrawSetPerPass {
			passBinds++
		}
	}
	assert.Equal(t, 1, passBinds)
	assert.Equal(t, 3, d.Count(nulldrv.OpDrawIndexed))
}

func TestExecuteSkipsUnusableCommands(t *testing.T) {
	d := newDefaultDriver(t)
	g := newGeometry(t, d)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor))
	compiler := newCompiler(d)

	ready, key := compileOne(t, compiler, g.primitive("ready", NewMaterial("a", shader), 0, NewDrawPassMask(DrawPassColor)))

	otherShader := newTestShader(t, d, "slow", NewDrawPassMask(DrawPassColor))
	stalled, _ := compileOne(t, compiler, g.primitive("stalled", NewMaterial("b", otherShader), 0, NewDrawPassMask(DrawPassColor)))
	stalled.Pipeline.(*nulldrv.Pipeline).SetStatus(gfx.PipelineStatusCreating)

	broken, _ := compileOne(t, compiler, g.primitive("broken", NewMaterial("c", shader), 0, NewDrawPassMask(DrawPassColor)))
	broken.Params.InstanceCount = 0

	queue := NewDrawCmdQueue("color")
	queue.Push(key, stalled)
	queue.Push(key, nil)
	queue.Push(key, broken)
	queue.Push(key, ready)

	d.Reset()
	stats, err := queue.Execute(d, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Draws)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 1, d.Count(nulldrv.OpDrawIndexed))
}

func TestExecuteEscalatesStalledPipelines(t *testing.T) {
	d := newDefaultDriver(t)
	g := newGeometry(t, d)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor))
	compiler := newCompiler(d)

	cmd, key := compileOne(t, compiler, g.primitive("quad", NewMaterial("a", shader), 0, NewDrawPassMask(DrawPassColor)))
	cmd.Pipeline.(*nulldrv.Pipeline).SetStatus(gfx.PipelineStatusCreating)

	tracker := NewSkipTracker(SkipPolicy{Mode: SkipModeEscalate, EscalateAfter: 2})
	queue := NewDrawCmdQueue("color")
	queue.SetSkipPolicy(tracker)

	queue.Push(key, cmd)
	_, err := queue.Execute(d, nil)
	require.NoError(t, err)
	require.NoError(t, tracker.EndFrame())

	stats, err := queue.Execute(d, nil)
	assert.ErrorIs(t, err, core.ErrPipelineStalled)
	assert.Equal(t, 1, stats.Skipped)
	assert.ErrorIs(t, tracker.EndFrame(), core.ErrPipelineStalled)
}

func TestExecuteRebindsAfterRejectedDraw(t *testing.T) {
	d := newDefaultDriver(t)
	g := newGeometry(t, d)
	compiler := newCompiler(d)
	color := NewDrawPassMask(DrawPassColor)

	mesh := NewMaterial("a", newTestShader(t, d, "mesh", color))
	other := NewMaterial("b", newTestShader(t, d, "other", color))

	first, key := compileOne(t, compiler, g.primitive("first", mesh, 0, color))
	rejected, _ := compileOne(t, compiler, g.primitive("rejected", other, 0, color))
	rejected.Params.IndexCount = 0
	last, _ := compileOne(t, compiler, g.primitive("last", mesh, 0, color))
	require.NotEqual(t, first.Pipeline, rejected.Pipeline)
	require.Equal(t, first.Pipeline, last.Pipeline)

	queue := NewDrawCmdQueue("color")
	queue.Push(key, first)
	queue.Push(key, rejected)
	queue.Push(key, last)

	d.Reset()
	stats, err := queue.Execute(d, nil)
	require.NoError(t, err)
	assert.Equal(t, ExecuteStats{Draws: 2, Skipped: 1, PipelineBinds: 3, MaterialBinds: 3}, stats)

	binds := d.Filter(nulldrv.OpBindPipeline)
	require.Len(t, binds, 3)
	assert.Equal(t, binds[0].Args, binds[2].Args)
	assert.NotEqual(t, binds[1].Args, binds[2].Args)

	// the last draw follows a rebind of its own pipeline
	ops := d.Ops()
	assert.Equal(t, nulldrv.OpDrawIndexed, ops[len(ops)-1])
	assert.Equal(t, 2, d.Count(nulldrv.OpDrawIndexed))
}
