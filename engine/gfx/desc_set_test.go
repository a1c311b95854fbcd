package gfx_test

import (
	"testing"

	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/nulldrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResources(t *testing.T) {
	d, err := nulldrv.New(nulldrv.DefaultOptions())
	require.NoError(t, err)
	defer d.Shutdown()

	ubo, err := d.MakeUniformBuffer(64, gfx.MemUsageCpuVisibleGpu, "ubo")
	require.NoError(t, err)
	tex, err := d.MakeTexture2d(gfx.TextureDesc{Width: 4, Height: 4}, "albedo")
	require.NoError(t, err)
	smp, err := d.MakeSampler(gfx.SamplerDesc{}, "linear")
	require.NoError(t, err)

	layout := gfx.DescSetLayoutDesc{
		{Binding: 0, Type: gfx.BindingTypeUniformBuffer, Count: 1},
		{Binding: 1, Type: gfx.BindingTypeSampledTexture, Count: 2},
	}

	tests := []struct {
		name      string
		resources gfx.DescSetResources
		wantErr   bool
	}{
		{
			name: "valid",
			resources: gfx.DescSetResources{
				{Binding: 0, Value: gfx.UniformBufferBinding{Buffer: ubo, Range: 64}},
				{Binding: 1, ArrayElement: 1, Value: gfx.SampledTextureBinding{Texture: tex, Sampler: smp}},
			},
		},
		{
			name:      "undeclared slot",
			resources: gfx.DescSetResources{{Binding: 5, Value: gfx.StorageImageBinding{Texture: tex}}},
			wantErr:   true,
		},
		{
			name:      "type mismatch",
			resources: gfx.DescSetResources{{Binding: 0, Value: gfx.SampledTextureBinding{Texture: tex, Sampler: smp}}},
			wantErr:   true,
		},
		{
			name:      "range past buffer end",
			resources: gfx.DescSetResources{{Binding: 0, Value: gfx.UniformBufferBinding{Buffer: ubo, Offset: 32, Range: 64}}},
			wantErr:   true,
		},
		{
			name:      "array element out of range",
			resources: gfx.DescSetResources{{Binding: 1, ArrayElement: 2, Value: gfx.SampledTextureBinding{Texture: tex, Sampler: smp}}},
			wantErr:   true,
		},
		{
			name:      "missing sampler",
			resources: gfx.DescSetResources{{Binding: 1, Value: gfx.SampledTextureBinding{Texture: tex}}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gfx.ValidateResources(layout, tt.resources)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResourcesLayoutDesc(t *testing.T) {
	resources := gfx.DescSetResources{
		{Binding: 0, Value: gfx.UniformBufferBinding{}},
		{Binding: 2, Value: gfx.SampledTextureBinding{}},
		{Binding: 2, ArrayElement: 3, Value: gfx.SampledTextureBinding{}},
	}
	assert.Equal(t, gfx.DescSetLayoutDesc{
		{Binding: 0, Type: gfx.BindingTypeUniformBuffer, Count: 1},
		{Binding: 2, Type: gfx.BindingTypeSampledTexture, Count: 4},
	}, resources.LayoutDesc())

	counts := resources.CountByType()
	assert.Equal(t, 1, counts[gfx.BindingTypeUniformBuffer])
	assert.Equal(t, 2, counts[gfx.BindingTypeSampledTexture])
}

func TestVertAttribs(t *testing.T) {
	attribs := gfx.NewVertAttribs(gfx.VertAttribPos3f, gfx.VertAttribUv02f)
	assert.True(t, attribs.Has(gfx.VertAttribPos3f))
	assert.False(t, attribs.Has(gfx.VertAttribNorm3f))
	assert.Equal(t, 20, attribs.Stride())

	elements := gfx.NewInterleavedElements(0, attribs)
	require.Len(t, elements, 2)
	assert.Equal(t, 12, elements[1].Offset)
	assert.Equal(t, 20, elements[1].Stride)
	assert.Equal(t, attribs, elements.Attribs())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "StorageImage", gfx.BindingTypeStorageImage.String())
	assert.Equal(t, "Uint16", gfx.IndexTypeUint16.String())
	assert.Equal(t, 2, gfx.IndexTypeUint16.Size())
	assert.Equal(t, "Created", gfx.PipelineStatusCreated.String())
	assert.Equal(t, "Uv02f", gfx.VertAttribUv02f.String())
}
