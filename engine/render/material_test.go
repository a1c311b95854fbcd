package render

import (
	"sync"
	"testing"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/nulldrv"
	"github.com/spaghettifunk/anima-gfx/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTexture(t *testing.T, d gfx.Driver, name string, texType gfx.TexType) (gfx.Texture, gfx.Sampler) {
	t.Helper()
	tex, err := d.MakeTexture2d(gfx.TextureDesc{TexType: texType, Width: 4, Height: 4}, name)
	require.NoError(t, err)
	smp, err := d.MakeSampler(gfx.SamplerDesc{}, name+".sampler")
	require.NoError(t, err)
	return tex, smp
}

func TestMaterialSetters(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor))
	m := NewMaterial("brick", shader)
	assert.Equal(t, int64(0), m.Version())

	require.NoError(t, m.SetFloat("roughness", 0.25))
	require.NoError(t, m.SetVec4("tint", math.NewVec4(1, 0, 0, 1)))
	require.NoError(t, m.SetInt("mode", 7))
	require.NoError(t, m.SetParam("roughness", "0.75"))
	assert.Equal(t, int64(4), m.Version())

	params := m.Params()
	assert.Equal(t, []float32{1, 0, 0, 1}, math.Floats(params[0:16], 4))
	assert.Equal(t, []float32{0.75}, math.Floats(params[16:20], 1))
	assert.Equal(t, encodeInt(7), params[32:36])
}

func TestMaterialSetterErrors(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor),
		ShaderTextureDesc{Name: "albedo", TexType: gfx.TexType2d})
	m := NewMaterial("brick", shader)
	tex, smp := newTexture(t, d, "bricks", gfx.TexType2d)
	cube, cubeSmp := newTexture(t, d, "sky", gfx.TexTypeCube)

	assert.ErrorIs(t, m.SetFloat("missing", 1), core.ErrUnknownParam)
	assert.ErrorIs(t, m.SetInt("roughness", 1), core.ErrParamType)
	assert.ErrorIs(t, m.SetVec2("tint", math.NewVec2(1, 1)), core.ErrParamType)
	assert.ErrorIs(t, m.SetParam("tint", "1 2"), core.ErrParamType)
	assert.ErrorIs(t, m.SetParam("nope", "1"), core.ErrUnknownParam)
	assert.ErrorIs(t, m.SetTexture("albedo", nil, smp), core.ErrNilTexture)
	assert.ErrorIs(t, m.SetTexture("albedo", tex, nil), core.ErrNilTexture)
	assert.ErrorIs(t, m.SetTexture("albedo", cube, cubeSmp), core.ErrParamType)
	assert.ErrorIs(t, m.SetTexture("normal", tex, smp), core.ErrUnknownParam)

	// failed writes leave the material untouched
	assert.Equal(t, int64(0), m.Version())
	assert.Equal(t, shader.DefaultParams(), m.Params())

	require.NoError(t, m.SetTexture("albedo", tex, smp))
	assert.Equal(t, int64(1), m.Version())
}

func TestMaterialCopyState(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor),
		ShaderTextureDesc{Name: "albedo", TexType: gfx.TexType2d})
	m := NewMaterial("brick", shader)
	tex, smp := newTexture(t, d, "bricks", gfx.TexType2d)
	require.NoError(t, m.SetTexture("albedo", tex, smp))

	textures := make([]gfx.Texture, 1)
	samplers := make([]gfx.Sampler, 1)
	params := make([]byte, shader.ParamsSize())

	version, changed := m.CopyState(-1, textures, samplers, params)
	assert.True(t, changed)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, tex, textures[0])
	assert.Equal(t, smp, samplers[0])
	assert.Equal(t, shader.DefaultParams(), params)

	_, changed = m.CopyState(version, textures, samplers, params)
	assert.False(t, changed)
}

func TestMaterialConcurrentWrites(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor))
	m := NewMaterial("brick", shader)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = m.SetFloat("roughness", float32(j))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(200), m.Version())
}

func TestRenderMaterialUploadsOncePerChange(t *testing.T) {
	d := newDefaultDriver(t)
	shader := newTestShader(t, d, "mesh", NewDrawPassMask(DrawPassColor))
	m := NewMaterial("brick", shader)

	rm, err := m.RenderMaterial(d)
	require.NoError(t, err)
	again, err := m.RenderMaterial(d)
	require.NoError(t, err)
	assert.Same(t, rm, again)
	assert.Equal(t, m.ID().ID(), rm.Hash())
	assert.Equal(t, int64(-1), rm.Version())
	assert.False(t, rm.IsActualVersion())

	assert.True(t, rm.EnsureVersion(d))
	assert.False(t, rm.EnsureVersion(d))
	assert.True(t, rm.IsActualVersion())
	assert.Equal(t, int64(1), rm.Uploads())

	require.NoError(t, m.SetFloat("roughness", 0.1))
	assert.True(t, rm.EnsureVersion(d))
	assert.Equal(t, int64(2), rm.Uploads())
	assert.Equal(t, 2, d.Count(nulldrv.OpUpdateUniformBuffer))

	mapped := d.MapBuffer(rm.Parameters())
	assert.Equal(t, m.Params(), mapped)
	d.UnmapBuffer(rm.Parameters())

	rm.Destroy(d)
	assert.Nil(t, rm.Parameters())
}

func TestRenderMaterialWithoutParams(t *testing.T) {
	d := newDefaultDriver(t)
	shader, err := NewShader(ShaderDesc{
		Name:              "unlit",
		Textures:          []ShaderTextureDesc{{Name: "albedo", TexType: gfx.TexType2d}},
		StartTexturesSlot: 0,
	})
	require.NoError(t, err)
	m := NewMaterial("sprite", shader)
	tex, smp := newTexture(t, d, "atlas", gfx.TexType2d)
	require.NoError(t, m.SetTexture("albedo", tex, smp))

	rm, err := m.RenderMaterial(d)
	require.NoError(t, err)
	assert.Nil(t, rm.Parameters())
	assert.True(t, rm.EnsureVersion(d))
	assert.Zero(t, rm.Uploads())
	assert.Equal(t, []gfx.Texture{tex}, rm.Textures())
	assert.Equal(t, []gfx.Sampler{smp}, rm.Samplers())

	rm.bindAll(d, DrawMaterialBindings{FirstTexture: 4})
	binds := d.Filter(nulldrv.OpBindTexture)
	require.Len(t, binds, 1)
	assert.Equal(t, gfx.Location{Set: DrawSetPerMaterial, Binding: 4}, binds[0].Args[0])
	assert.Zero(t, d.Count(nulldrv.OpBindUniformBuffer))
}
