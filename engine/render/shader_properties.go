package render

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/math"
)

type PropertiesDirty uint8

const (
	DirtyTextures PropertiesDirty = 1 << iota
	DirtyParameters
)

type ShaderPropertiesStats struct {
	Uploads       int
	DescSetBuilds int
}

/**
 * @brief Params and textures of a shader owned directly by the render side.
 *
 * Setters only mark state dirty. Validate is the single place where GPU
 * visible state changes: it uploads the params buffer and rebuilds the
 * descriptor set for whatever is dirty.
 */
type ShaderProperties struct {
	driver gfx.Driver
	shader *Shader
	name   string

	mutex    sync.Mutex
	params   []byte
	textures []gfx.Texture
	samplers []gfx.Sampler
	buffer   gfx.UniformBuffer
	descSet  gfx.DescSet
	dirty    PropertiesDirty
	stats    ShaderPropertiesStats
}

func NewShaderProperties(driver gfx.Driver, shader *Shader, name string) (*ShaderProperties, error) {
	p := &ShaderProperties{
		driver:   driver,
		shader:   shader,
		name:     name,
		params:   shader.DefaultParams(),
		textures: make([]gfx.Texture, shader.TexturesCount()),
		samplers: make([]gfx.Sampler, shader.TexturesCount()),
		dirty:    DirtyTextures | DirtyParameters,
	}
	if shader.ParamsSize() > 0 {
		buffer, err := driver.MakeUniformBuffer(shader.ParamsSize(), gfx.MemUsageCpuVisibleGpu, name+".params")
		if err != nil {
			core.LogError("shader properties %s: %s", name, err.Error())
			return nil, err
		}
		p.buffer = buffer
	}
	return p, nil
}

func (p *ShaderProperties) owner() string {
	return "shader properties " + p.name
}

func (p *ShaderProperties) write(name string, t ParamType, value []byte) error {
	param, err := p.shader.lookupParam(p.owner(), name, t)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	p.mutex.Lock()
	copy(p.params[param.Offset:param.Offset+param.Size], value)
	p.dirty |= DirtyParameters
	p.mutex.Unlock()
	return nil
}

func (p *ShaderProperties) SetInt(name string, v int32) error {
	return p.write(name, ParamInt, encodeInt(v))
}

func (p *ShaderProperties) SetFloat(name string, v float32) error {
	return p.write(name, ParamFloat, encodeFloats(v))
}

func (p *ShaderProperties) SetVec2(name string, v math.Vec2) error {
	return p.write(name, ParamVec2, encodeFloats(v.Floats()...))
}

func (p *ShaderProperties) SetVec3(name string, v math.Vec3) error {
	return p.write(name, ParamVec3, encodeFloats(v.Floats()...))
}

func (p *ShaderProperties) SetVec4(name string, v math.Vec4) error {
	return p.write(name, ParamVec4, encodeFloats(v.Floats()...))
}

func (p *ShaderProperties) SetParam(name, value string) error {
	param, ok := p.shader.Param(name)
	if !ok {
		err := fmt.Errorf("%s: %w %q in shader %s", p.owner(), core.ErrUnknownParam, name, p.shader.Name())
		core.LogError(err.Error())
		return err
	}
	encoded, err := encodeParam(param.Type, value)
	if err != nil {
		err = fmt.Errorf("%s: param %s: %w", p.owner(), name, err)
		core.LogError(err.Error())
		return err
	}
	return p.write(name, param.Type, encoded)
}

func (p *ShaderProperties) SetTexture(name string, texture gfx.Texture, sampler gfx.Sampler) error {
	t, err := p.shader.lookupTexture(p.owner(), name, texture, sampler)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	p.mutex.Lock()
	p.textures[t.ID] = texture
	p.samplers[t.ID] = sampler
	p.dirty |= DirtyTextures
	p.mutex.Unlock()
	return nil
}

// From copies the whole state of material, which must use the same shader.
func (p *ShaderProperties) From(material *Material) error {
	if material.Shader() != p.shader {
		err := fmt.Errorf("%s: %w: %s uses %s, expected %s", p.owner(), core.ErrShaderMismatch, material.Name(), material.Shader().Name(), p.shader.Name())
		core.LogError(err.Error())
		return err
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	material.CopyState(-1, p.textures, p.samplers, p.params)
	p.dirty |= DirtyTextures | DirtyParameters
	return nil
}

/**
 * @brief Uploads dirty params and rebuilds the descriptor set when textures
 * changed. Does nothing when clean.
 */
func (p *ShaderProperties) Validate(ctx gfx.Ctx) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.dirty == 0 {
		return nil
	}

	if p.dirty&DirtyParameters != 0 && p.buffer != nil {
		ctx.UpdateUniformBuffer(p.buffer, 0, p.params)
		p.stats.Uploads++
		p.dirty &^= DirtyParameters
	}

	// shaders without texture slots bind their params buffer directly
	if p.dirty&DirtyTextures != 0 {
		resources := p.resources()
		if len(resources) > 0 && p.shader.TexturesCount() > 0 {
			layout, err := p.shader.MaterialLayout(p.driver)
			if err != nil {
				return err
			}
			set, err := p.driver.MakeDescSet(resources, layout, p.name)
			if err != nil {
				return fmt.Errorf("%s: %w", p.owner(), err)
			}
			if p.descSet != nil {
				p.driver.Destroy(p.descSet)
			}
			p.descSet = set
			p.stats.DescSetBuilds++
		}
		p.dirty &^= DirtyTextures
	}
	return nil
}

func (p *ShaderProperties) resources() gfx.DescSetResources {
	var resources gfx.DescSetResources
	if p.buffer != nil {
		resources = append(resources, gfx.DescSetResource{
			Binding: p.shader.StartBuffersSlot(),
			Value:   gfx.UniformBufferBinding{Buffer: p.buffer, Range: p.buffer.Size()},
		})
	}
	for i, texture := range p.textures {
		if texture == nil {
			continue
		}
		resources = append(resources, gfx.DescSetResource{
			Binding: p.shader.StartTexturesSlot() + i,
			Value:   gfx.SampledTextureBinding{Texture: texture, Sampler: p.samplers[i]},
		})
	}
	return resources
}

func (p *ShaderProperties) DescSet() gfx.DescSet {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.descSet
}

func (p *ShaderProperties) Buffer() gfx.UniformBuffer {
	return p.buffer
}

func (p *ShaderProperties) Dirty() PropertiesDirty {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.dirty
}

func (p *ShaderProperties) Stats() ShaderPropertiesStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.stats
}

// Destroy returns the descriptor set to the pool and releases the buffer.
func (p *ShaderProperties) Destroy() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.descSet != nil {
		p.driver.Destroy(p.descSet)
		p.descSet = nil
	}
	if p.buffer != nil {
		p.driver.Destroy(p.buffer)
		p.buffer = nil
	}
}
