package testbed

import (
	"errors"

	"github.com/spaghettifunk/anima-gfx/engine"
	"github.com/spaghettifunk/anima-gfx/engine/assets"
	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/math"
	"github.com/spaghettifunk/anima-gfx/engine/render"
)

const (
	width  = 1280
	height = 720
)

type TestGame struct {
	*engine.Game
}

type quad struct {
	vertices gfx.VertBuffer
	indices  gfx.IndexBuffer
}

type gameState struct {
	engine *engine.Engine

	format  gfx.VertFormat
	quads   []quad
	objects []*render.RenderObject
	glow    *render.Material
	hud     *render.Material

	elapsed float64
	frames  int
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	if config == nil {
		config = engine.DefaultApplicationConfig()
	}
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	state := g.state()
	state.engine = e
	driver := e.Driver()
	ctx := driver.Ctx()

	program, err := driver.MakeShader(gfx.ShaderDesc{}, "mesh")
	if err != nil {
		return err
	}
	shader, err := render.NewShader(render.ShaderDesc{
		Name:    "mesh",
		Program: program,
		Params: []render.ShaderParamDesc{
			{Name: "tint", Type: render.ParamVec4, Default: "1 1 1 1"},
			{Name: "roughness", Type: render.ParamFloat, Default: "0.5"},
		},
		Textures:          []render.ShaderTextureDesc{{Name: "albedo", TexType: gfx.TexType2d}},
		Passes:            render.NewDrawPassMask(render.DrawPassColor, render.DrawPassOverlay2d),
		RequiredAttribs:   gfx.NewVertAttribs(gfx.VertAttribPos3f),
		StartBuffersSlot:  0,
		StartTexturesSlot: 1,
	})
	if err != nil {
		return err
	}
	e.Shaders().Register(shader.Name(), shader)

	texture, err := driver.MakeTexture2d(gfx.TextureDesc{TexType: gfx.TexType2d, Width: 2, Height: 2, Mips: 1, Format: gfx.FormatRGBA8}, "checker")
	if err != nil {
		return err
	}
	ctx.UpdateTexture2d(texture, 0, math.Rect{Width: 2, Height: 2}, []byte{
		255, 255, 255, 255, 0, 0, 0, 255,
		0, 0, 0, 255, 255, 255, 255, 255,
	})
	sampler, err := driver.MakeSampler(gfx.SamplerDesc{MinFilter: gfx.SamplerFilterNearest, MagFilter: gfx.SamplerFilterNearest}, "nearest")
	if err != nil {
		return err
	}
	e.Textures().Register("checker", assets.TextureBinding{Texture: texture, Sampler: sampler})

	attribs := gfx.NewVertAttribs(gfx.VertAttribPos3f, gfx.VertAttribUv02f)
	state.format, err = driver.MakeVertFormat(gfx.NewInterleavedElements(0, attribs), "quad")
	if err != nil {
		return err
	}
	for i, x := range []float32{-0.5, 0.5} {
		q, err := makeQuad(driver, attribs, x)
		if err != nil {
			return err
		}
		state.quads = append(state.quads, q)

		material := render.NewMaterial([]string{"left", "right"}[i], shader)
		if err := errors.Join(
			material.SetVec4("tint", math.NewVec4(1-float32(i), 0.2, float32(i), 1)),
			material.SetTexture("albedo", texture, sampler),
		); err != nil {
			return err
		}
		if i == 0 {
			state.glow = material
		}
		prim := state.primitive(q, material, 0, render.NewDrawPassMask(render.DrawPassColor), material.Name())
		state.objects = append(state.objects, render.NewRenderObject(prim))
	}

	state.hud = render.NewMaterial("hud", shader)
	if err := state.hud.SetTexture("albedo", texture, sampler); err != nil {
		return err
	}

	e.Events().Register(core.EVENT_CODE_MATERIAL_LOADED, g, func(_ core.SystemEventCode, _, _ interface{}, data core.EventContext) bool {
		core.LogInfo("material %s is at version %d", data.Name, data.Version)
		return false
	})

	pass, err := driver.MakeRenderPass(gfx.RenderPassDesc{}, "main")
	if err != nil {
		return err
	}
	view := e.Renderer().View(0)
	view.Target = pass
	view.Viewport = math.Rect{Width: width, Height: height}
	view.SetViewProjection(ctx, math.NewMat4Identity())

	return nil
}

func makeQuad(driver gfx.Driver, attribs gfx.VertAttribs, x float32) (quad, error) {
	stride := attribs.Stride()
	vb, err := driver.MakeVertBuffer(4*stride, gfx.MemUsageGpuLocal, "quad.vertices")
	if err != nil {
		return quad{}, err
	}
	ib, err := driver.MakeIndexBuffer(6*gfx.IndexTypeUint16.Size(), gfx.MemUsageGpuLocal, "quad.indices")
	if err != nil {
		return quad{}, err
	}

	// pos3 uv2 per corner
	vertices := make([]byte, 4*stride)
	math.PutFloats(vertices,
		x-0.4, -0.4, 0, 0, 0,
		x+0.4, -0.4, 0, 1, 0,
		x+0.4, 0.4, 0, 1, 1,
		x-0.4, 0.4, 0, 0, 1,
	)
	indices := []byte{0, 0, 1, 0, 2, 0, 2, 0, 3, 0, 0, 0}

	ctx := driver.Ctx()
	ctx.UpdateVertBuffer(vb, 0, vertices)
	ctx.UpdateIndexBuffer(ib, 0, indices)
	return quad{vertices: vb, indices: ib}, nil
}

func (s *gameState) primitive(q quad, material *render.Material, layer int, passes render.DrawPassMask, name string) *render.DrawPrimitive {
	prim := &render.DrawPrimitive{
		Params:     render.NewDrawParams(),
		VertFormat: s.format,
		Material:   material,
		DrawPass:   passes,
		Attribs:    s.format.Elements().Attribs(),
		PrimType:   gfx.PrimTypeTriangles,
		Layer:      layer,
		Name:       name,
	}
	prim.Params.IndexCount = 6
	prim.Params.InstanceCount = 1
	prim.Vertices.Buffers[0] = q.vertices
	prim.Indices = render.DrawIndexBuffer{Buffer: q.indices, IndexType: gfx.IndexTypeUint16}
	return prim
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.elapsed += deltaTime
	state.frames++

	// pulse the left quad
	pulse := float32(state.frames%60) / 60
	return state.glow.SetFloat("roughness", pulse)
}

func (g *TestGame) Render(s *render.Submitter, deltaTime float64) error {
	state := g.state()
	for _, o := range state.objects {
		if err := o.Submit(s, 0); err != nil {
			return err
		}
	}
	if len(state.quads) == 0 {
		return nil
	}
	// the overlay is rebuilt every frame
	overlay := state.primitive(state.quads[0], state.hud, 10, render.NewDrawPassMask(render.DrawPassOverlay2d), "crosshair")
	return s.AddPrimitive(0, overlay)
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed...")
	state := g.state()
	if state.engine == nil {
		return nil
	}

	var errs []error
	for _, o := range state.objects {
		errs = append(errs, o.Release(state.engine.Renderer()))
	}
	fps, avg := state.engine.Metrics().Frame()
	core.LogInfo("testbed ran %d frames, avg %.3fms, %.1f fps", state.frames, avg, fps)
	return errors.Join(errs...)
}
