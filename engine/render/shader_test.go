package render

import (
	"testing"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateParamsLayout(t *testing.T) {
	params, size := GenerateParamsLayout([]ShaderParamDesc{
		{Name: "color", Type: ParamVec3},
		{Name: "strength", Type: ParamFloat},
		{Name: "uv_scale", Type: ParamVec2},
		{Name: "flags", Type: ParamInt},
	})
	require.Len(t, params, 4)
	assert.Equal(t, 64, size)

	offsets := []int{params[0].Offset, params[1].Offset, params[2].Offset, params[3].Offset}
	assert.Equal(t, []int{0, 16, 32, 48}, offsets)
	assert.Equal(t, 12, params[0].Size)
	assert.Equal(t, 8, params[2].Size)
	assert.Equal(t, 3, params[3].ID)
}

func TestNewShaderDefaults(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor))

	assert.Equal(t, 48, shader.ParamsSize())
	defaults := shader.DefaultParams()
	assert.Equal(t, []float32{1, 1, 1, 1}, math.Floats(defaults[0:16], 4))
	assert.Equal(t, []float32{0.5}, math.Floats(defaults[16:20], 1))
	assert.Equal(t, []byte{0, 0, 0, 0}, defaults[32:36])

	// the defaults are copied out
	defaults[0] = 0xff
	assert.NotEqual(t, byte(0xff), shader.DefaultParams()[0])

	p, ok := shader.Param("roughness")
	require.True(t, ok)
	assert.Equal(t, ParamFloat, p.Type)
	_, ok = shader.Param("missing")
	assert.False(t, ok)
}

func TestNewShaderRejectsBadDescs(t *testing.T) {
	tests := []struct {
		name string
		desc ShaderDesc
	}{
		{
			name: "duplicate param",
			desc: ShaderDesc{Params: []ShaderParamDesc{{Name: "a", Type: ParamFloat}, {Name: "a", Type: ParamInt}}},
		},
		{
			name: "duplicate texture",
			desc: ShaderDesc{Textures: []ShaderTextureDesc{{Name: "albedo"}, {Name: "albedo"}}},
		},
		{
			name: "bad default",
			desc: ShaderDesc{Params: []ShaderParamDesc{{Name: "tint", Type: ParamVec3, Default: "1 2"}}},
		},
		{
			name: "params slot inside texture slots",
			desc: ShaderDesc{
				Params:            []ShaderParamDesc{{Name: "a", Type: ParamFloat}},
				Textures:          []ShaderTextureDesc{{Name: "albedo"}, {Name: "normal"}},
				StartBuffersSlot:  1,
				StartTexturesSlot: 0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.desc.Name = tt.name
			_, err := NewShader(tt.desc)
			assert.Error(t, err)
		})
	}
}

func TestMaterialLayoutDesc(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor),
		ShaderTextureDesc{Name: "albedo", TexType: gfx.TexType2d},
		ShaderTextureDesc{Name: "env", TexType: gfx.TexTypeCube},
	)

	assert.Equal(t, gfx.DescSetLayoutDesc{
		{Binding: 0, Type: gfx.BindingTypeUniformBuffer, Count: 1, Name: "params"},
		{Binding: 1, Type: gfx.BindingTypeSampledTexture, Count: 1, Name: "albedo"},
		{Binding: 2, Type: gfx.BindingTypeSampledTexture, Count: 1, Name: "env"},
	}, shader.MaterialLayoutDesc())

	first, err := shader.MaterialLayout(d)
	require.NoError(t, err)
	second, err := shader.MaterialLayout(d)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestPipelineDescSelectsVariation(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor, DrawPassOverlay2d))
	full := gfx.NewVertAttribs(gfx.VertAttribPos3f, gfx.VertAttribUv02f)

	desc, err := shader.PipelineDesc(DrawPassOverlay2d, full, nil, gfx.PrimTypeTriangles)
	require.NoError(t, err)
	assert.Equal(t, shader.Program(), desc.Shader)
	assert.True(t, desc.State.Blending)
	assert.False(t, desc.State.DepthEnable)

	_, err = shader.PipelineDesc(DrawPassDepth, full, nil, gfx.PrimTypeTriangles)
	assert.ErrorIs(t, err, core.ErrNoShaderVariation)

	_, err = shader.PipelineDesc(DrawPassColor, gfx.NewVertAttribs(gfx.VertAttribUv02f), nil, gfx.PrimTypeTriangles)
	assert.ErrorIs(t, err, core.ErrNoShaderVariation)
}

func TestEncodeParam(t *testing.T) {
	v, err := encodeParam(ParamVec3, "1, 2,\t3")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, math.Floats(v, 3))

	i, err := encodeParam(ParamInt, "-2")
	require.NoError(t, err)
	assert.Equal(t, encodeInt(-2), i)

	_, err = encodeParam(ParamInt, "1.5")
	assert.ErrorIs(t, err, core.ErrParamType)
	_, err = encodeParam(ParamVec2, "1")
	assert.ErrorIs(t, err, core.ErrParamType)

	pt, err := ParseParamType("vec4")
	require.NoError(t, err)
	assert.Equal(t, ParamVec4, pt)
	assert.Equal(t, 16, pt.Size())
	_, err = ParseParamType("mat4")
	assert.Error(t, err)
}
