package render

import (
	"testing"

	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/nulldrv"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T, options nulldrv.Options) *nulldrv.Driver {
	t.Helper()
	d, err := nulldrv.New(options)
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)
	return d
}

func newTestShader(t *testing.T, d gfx.Driver, name string, passes DrawPassMask, textures ...ShaderTextureDesc) *Shader {
	t.Helper()
	program, err := d.MakeShader(gfx.ShaderDesc{}, name)
	require.NoError(t, err)
	shader, err := NewShader(ShaderDesc{
		Name:    name,
		Program: program,
		Params: []ShaderParamDesc{
			{Name: "tint", Type: ParamVec4, Default: "1 1 1 1"},
			{Name: "roughness", Type: ParamFloat, Default: "0.5"},
			{Name: "mode", Type: ParamInt},
		},
		Textures:          textures,
		Passes:            passes,
		RequiredAttribs:   gfx.NewVertAttribs(gfx.VertAttribPos3f),
		StartBuffersSlot:  0,
		StartTexturesSlot: 1,
	})
	require.NoError(t, err)
	return shader
}

type geometry struct {
	format   gfx.VertFormat
	vertices gfx.VertBuffer
	indices  gfx.IndexBuffer
}

func newGeometry(t *testing.T, d gfx.Driver) geometry {
	t.Helper()
	attribs := gfx.NewVertAttribs(gfx.VertAttribPos3f, gfx.VertAttribUv02f)
	format, err := d.MakeVertFormat(gfx.NewInterleavedElements(0, attribs), "quad")
	require.NoError(t, err)
	vb, err := d.MakeVertBuffer(4*attribs.Stride(), gfx.MemUsageGpuLocal, "quad.vertices")
	require.NoError(t, err)
	ib, err := d.MakeIndexBuffer(6*gfx.IndexTypeUint16.Size(), gfx.MemUsageGpuLocal, "quad.indices")
	require.NoError(t, err)
	return geometry{format: format, vertices: vb, indices: ib}
}

func (g geometry) primitive(name string, material *Material, layer int, passes DrawPassMask) *DrawPrimitive {
	prim := &DrawPrimitive{
		Params:     NewDrawParams(),
		VertFormat: g.format,
		Material:   material,
		DrawPass:   passes,
		Attribs:    g.format.Elements().Attribs(),
		PrimType:   gfx.PrimTypeTriangles,
		Layer:      layer,
		Name:       name,
	}
	prim.Params.IndexCount = 6
	prim.Params.BaseVertex = 0
	prim.Params.InstanceCount = 1
	prim.Vertices.Buffers[0] = g.vertices
	prim.Indices = DrawIndexBuffer{Buffer: g.indices, IndexType: gfx.IndexTypeUint16}
	return prim
}

func newCompiler(d gfx.Driver) *PipelineCompiler {
	return NewPipelineCompiler(d, NewPipelineCache(d, nil, DefaultPipelineCacheOptions()))
}

func newDefaultDriver(t *testing.T) *nulldrv.Driver {
	t.Helper()
	return newDriver(t, nulldrv.DefaultOptions())
}
