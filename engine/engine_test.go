package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleConfigMatchesDefaults(t *testing.T) {
	config, err := LoadApplicationConfig(filepath.Join("..", "config.sample.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultApplicationConfig(), config)
}

func TestLoadApplicationConfig(t *testing.T) {
	write := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	config, err := LoadApplicationConfig(write(t, "frames = 10\n[gfx]\nthreaded = false\n[render.skip_policy]\nmode = \"escalate\"\nescalate_after = 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 10, config.Frames)
	assert.False(t, config.Gfx.Threaded)
	assert.Equal(t, render.SkipModeEscalate, config.Render.SkipPolicy.Mode)
	// untouched keys keep their defaults
	assert.Equal(t, 1024, config.Gfx.StreamCapacity)

	tests := map[string]string{
		"unknown key":   "colour = \"red\"\n",
		"bad backend":   "[gfx]\nbackend = \"metal\"\n",
		"no views":      "[render]\nviews = 0\n",
		"bad log level": "log_level = \"loud\"\n",
		"bad toml":      "frames = \n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadApplicationConfig(write(t, content))
			assert.Error(t, err)
		})
	}

	_, err = LoadApplicationConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func newTestConfig(t *testing.T) *ApplicationConfig {
	config := DefaultApplicationConfig()
	config.LogLevel = "error"
	config.FrameMS = 0
	config.Assets.MaterialsDir = filepath.Join(t.TempDir(), "none")
	return config
}

func TestQuitEventStopsTheLoop(t *testing.T) {
	var updates int
	var shutdown bool
	game := &Game{ApplicationConfig: newTestConfig(t)}

	e, err := New(game)
	require.NoError(t, err)
	game.FnUpdate = func(float64) error {
		updates++
		if updates == 3 {
			e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
		return nil
	}
	game.FnShutdown = func() error {
		shutdown = true
		return nil
	}

	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())
	assert.Equal(t, 3, updates)
	assert.Equal(t, 3, e.Frames())
	assert.True(t, shutdown)
	assert.Equal(t, EngineStageStopped, e.Stage())

	assert.Error(t, e.Run())
}

func TestRunStopsOnGameErrors(t *testing.T) {
	config := newTestConfig(t)
	config.Gfx.Threaded = false
	boom := errors.New("boom")
	game := &Game{
		ApplicationConfig: config,
		FnRender:          func(*render.Submitter, float64) error { return boom },
	}

	e, err := New(game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.ErrorIs(t, e.Run(), boom)
	assert.Zero(t, e.Frames())
	assert.Equal(t, 1, e.Backend().Count("shutdown"))
}

func TestThreadedBackendStaysOnTheGfxThread(t *testing.T) {
	config := newTestConfig(t)
	config.Gfx.Threaded = true
	e, err := New(&Game{ApplicationConfig: config})
	require.NoError(t, err)
	defer func() { _ = e.Shutdown() }()

	layout, err := e.Driver().MakeDescSetLayout(gfx.DescSetLayoutDesc{
		{Binding: 0, Type: gfx.BindingTypeUniformBuffer, Count: 1},
	}, "material")
	require.NoError(t, err)
	ubo, err := e.Driver().MakeUniformBuffer(64, gfx.MemUsageCpuVisibleGpu, "params")
	require.NoError(t, err)
	resources := gfx.DescSetResources{{Binding: 0, Value: gfx.UniformBufferBinding{Buffer: ubo, Range: 64}}}

	set, err := e.Driver().MakeDescSet(resources, layout, "wrapped")
	require.NoError(t, err)
	e.Driver().Destroy(set)

	assert.PanicsWithValue(t, core.ErrWrongThread, func() {
		_, _ = e.Backend().MakeDescSet(resources, layout, "direct")
	})
}

func TestShutdownBeforeRunReleases(t *testing.T) {
	game := &Game{ApplicationConfig: newTestConfig(t)}
	e, err := New(game)
	require.NoError(t, err)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageStopped, e.Stage())
	assert.Error(t, e.Initialize())
}

func TestNewRejectsBadConfig(t *testing.T) {
	config := newTestConfig(t)
	config.Render.Views = 0
	_, err := New(&Game{ApplicationConfig: config})
	assert.Error(t, err)
}

func TestBrokenObjectsDoNotStopTheLoop(t *testing.T) {
	config := newTestConfig(t)
	config.Frames = 3
	game := &Game{ApplicationConfig: config}
	var objects []*render.RenderObject

	game.FnInitialize = func(e *Engine) error {
		d := e.Driver()
		program, err := d.MakeShader(gfx.ShaderDesc{}, "mesh")
		if err != nil {
			return err
		}
		// only a color variation, depth draws cannot compile
		shader, err := render.NewShader(render.ShaderDesc{
			Name:            "mesh",
			Program:         program,
			Params:          []render.ShaderParamDesc{{Name: "tint", Type: render.ParamVec4}},
			Passes:          render.NewDrawPassMask(render.DrawPassColor),
			RequiredAttribs: gfx.NewVertAttribs(gfx.VertAttribPos3f),
		})
		if err != nil {
			return err
		}
		attribs := gfx.NewVertAttribs(gfx.VertAttribPos3f)
		format, err := d.MakeVertFormat(gfx.NewInterleavedElements(0, attribs), "tri")
		if err != nil {
			return err
		}
		vb, err := d.MakeVertBuffer(3*attribs.Stride(), gfx.MemUsageGpuLocal, "tri")
		if err != nil {
			return err
		}
		for _, pass := range []render.DrawPass{render.DrawPassDepth, render.DrawPassColor} {
			prim := &render.DrawPrimitive{
				Params:     render.NewDrawParams(),
				VertFormat: format,
				Material:   render.NewMaterial(pass.String(), shader),
				DrawPass:   render.NewDrawPassMask(pass),
				Attribs:    attribs,
				PrimType:   gfx.PrimTypeTriangles,
				Name:       pass.String(),
			}
			prim.Params.VertexCount = 3
			prim.Params.BaseVertex = 0
			prim.Params.InstanceCount = 1
			prim.Vertices.Buffers[0] = vb
			objects = append(objects, render.NewRenderObject(prim))
		}
		return nil
	}
	game.FnRender = func(s *render.Submitter, _ float64) error {
		for _, o := range objects {
			if err := o.Submit(s, 0); err != nil {
				return err
			}
		}
		return nil
	}

	e, err := New(game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())

	assert.Equal(t, 3, e.Frames())
	assert.False(t, objects[0].IsCompiled())
	assert.Positive(t, e.Renderer().Compiler().Stats().Failed)
}
