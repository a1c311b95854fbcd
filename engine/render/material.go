package render

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/math"
)

/**
 * @brief User facing material: a shader plus the values of its params and
 * textures. Setters may be called from any goroutine; the render side
 * observes changes through the content version.
 */
type Material struct {
	id     uuid.UUID
	name   string
	shader *Shader

	mutex    sync.Mutex
	params   []byte
	textures []gfx.Texture
	samplers []gfx.Sampler
	render   *RenderMaterial

	version atomic.Int64
}

func NewMaterial(name string, shader *Shader) *Material {
	return &Material{
		id:       uuid.New(),
		name:     name,
		shader:   shader,
		params:   shader.DefaultParams(),
		textures: make([]gfx.Texture, shader.TexturesCount()),
		samplers: make([]gfx.Sampler, shader.TexturesCount()),
	}
}

func (m *Material) ID() uuid.UUID   { return m.id }
func (m *Material) Name() string    { return m.name }
func (m *Material) Shader() *Shader { return m.shader }
func (m *Material) Version() int64  { return m.version.Load() }

func (m *Material) owner() string {
	return "material " + m.name
}

func (m *Material) write(name string, t ParamType, value []byte) error {
	p, err := m.shader.lookupParam(m.owner(), name, t)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	m.mutex.Lock()
	copy(m.params[p.Offset:p.Offset+p.Size], value)
	m.version.Add(1)
	m.mutex.Unlock()
	return nil
}

func (m *Material) SetInt(name string, v int32) error {
	return m.write(name, ParamInt, encodeInt(v))
}

func (m *Material) SetFloat(name string, v float32) error {
	return m.write(name, ParamFloat, encodeFloats(v))
}

func (m *Material) SetVec2(name string, v math.Vec2) error {
	return m.write(name, ParamVec2, encodeFloats(v.Floats()...))
}

func (m *Material) SetVec3(name string, v math.Vec3) error {
	return m.write(name, ParamVec3, encodeFloats(v.Floats()...))
}

func (m *Material) SetVec4(name string, v math.Vec4) error {
	return m.write(name, ParamVec4, encodeFloats(v.Floats()...))
}

// SetParam parses value according to the declared type of name.
func (m *Material) SetParam(name, value string) error {
	p, ok := m.shader.Param(name)
	if !ok {
		err := fmt.Errorf("%s: %w %q in shader %s", m.owner(), core.ErrUnknownParam, name, m.shader.Name())
		core.LogError(err.Error())
		return err
	}
	encoded, err := encodeParam(p.Type, value)
	if err != nil {
		err = fmt.Errorf("%s: param %s: %w", m.owner(), name, err)
		core.LogError(err.Error())
		return err
	}
	return m.write(name, p.Type, encoded)
}

func (m *Material) SetTexture(name string, texture gfx.Texture, sampler gfx.Sampler) error {
	t, err := m.shader.lookupTexture(m.owner(), name, texture, sampler)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	m.mutex.Lock()
	m.textures[t.ID] = texture
	m.samplers[t.ID] = sampler
	m.version.Add(1)
	m.mutex.Unlock()
	return nil
}

// Params returns a copy of the packed params buffer.
func (m *Material) Params() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]byte(nil), m.params...)
}

/**
 * @brief Copies the state out when the material moved past version.
 * @return The version the copied state belongs to and whether anything was copied.
 */
func (m *Material) CopyState(version int64, textures []gfx.Texture, samplers []gfx.Sampler, params []byte) (int64, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	current := m.version.Load()
	if current == version {
		return version, false
	}
	copy(textures, m.textures)
	copy(samplers, m.samplers)
	copy(params, m.params)
	return current, true
}

// RenderMaterial returns the render side proxy, creating it on first use.
func (m *Material) RenderMaterial(driver gfx.Driver) (*RenderMaterial, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.render != nil {
		return m.render, nil
	}
	rm, err := NewRenderMaterial(driver, m)
	if err != nil {
		return nil, err
	}
	m.render = rm
	return rm, nil
}
