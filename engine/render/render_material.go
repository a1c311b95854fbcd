package render

import (
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

/**
 * @brief Render side proxy of a Material.
 *
 * Holds a snapshot of the textures, samplers and packed params, plus the
 * uniform buffer they are uploaded to. EnsureVersion must run before the
 * proxy is used in a frame.
 */
type RenderMaterial struct {
	material *Material
	name     string
	hash     uint32
	buffer   gfx.UniformBuffer

	mutex    sync.Mutex
	textures []gfx.Texture
	samplers []gfx.Sampler
	params   []byte

	// -1 until the first snapshot
	version atomic.Int64
	uploads atomic.Int64
}

func NewRenderMaterial(driver gfx.Driver, material *Material) (*RenderMaterial, error) {
	shader := material.Shader()
	rm := &RenderMaterial{
		material: material,
		name:     material.Name(),
		hash:     material.ID().ID(),
		textures: make([]gfx.Texture, shader.TexturesCount()),
		samplers: make([]gfx.Sampler, shader.TexturesCount()),
		params:   make([]byte, shader.ParamsSize()),
	}
	rm.version.Store(-1)

	if shader.ParamsSize() > 0 {
		buffer, err := driver.MakeUniformBuffer(shader.ParamsSize(), gfx.MemUsageCpuVisibleGpu, material.Name()+".params")
		if err != nil {
			core.LogError("render material %s: %s", material.Name(), err.Error())
			return nil, err
		}
		rm.buffer = buffer
	}
	return rm, nil
}

// EnsureVersion pulls the material state when it changed and uploads the
// params once per change. It reports whether an upload happened.
func (rm *RenderMaterial) EnsureVersion(ctx gfx.Ctx) bool {
	if rm.IsActualVersion() {
		return false
	}

	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	version, changed := rm.material.CopyState(rm.version.Load(), rm.textures, rm.samplers, rm.params)
	if !changed {
		return false
	}
	if rm.buffer != nil {
		ctx.UpdateUniformBuffer(rm.buffer, 0, rm.params)
		rm.uploads.Add(1)
	}
	rm.version.Store(version)
	return true
}

func (rm *RenderMaterial) IsActualVersion() bool {
	return rm.version.Load() == rm.material.Version()
}

func (rm *RenderMaterial) Version() int64 {
	return rm.version.Load()
}

func (rm *RenderMaterial) Hash() uint32 {
	return rm.hash
}

func (rm *RenderMaterial) Name() string {
	return rm.name
}

func (rm *RenderMaterial) Material() *Material {
	return rm.material
}

// Parameters is nil when the shader declares no params.
func (rm *RenderMaterial) Parameters() gfx.UniformBuffer {
	return rm.buffer
}

func (rm *RenderMaterial) Textures() []gfx.Texture {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	return append([]gfx.Texture(nil), rm.textures...)
}

func (rm *RenderMaterial) Samplers() []gfx.Sampler {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	return append([]gfx.Sampler(nil), rm.samplers...)
}

// Uploads counts params uploads since creation.
func (rm *RenderMaterial) Uploads() int64 {
	return rm.uploads.Load()
}

func (rm *RenderMaterial) bindAll(ctx gfx.Ctx, bindings DrawMaterialBindings) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	for i, texture := range rm.textures {
		if texture == nil {
			continue
		}
		ctx.BindTexture(gfx.Location{Set: DrawSetPerMaterial, Binding: bindings.FirstTexture + i}, 0, texture, rm.samplers[i])
	}
	if rm.buffer != nil {
		ctx.BindUniformBuffer(gfx.Location{Set: DrawSetPerMaterial, Binding: bindings.FirstBuffer}, 0, rm.buffer.Size(), rm.buffer)
	}
}

func (rm *RenderMaterial) Destroy(driver gfx.Driver) {
	if rm.buffer != nil {
		driver.Destroy(rm.buffer)
		rm.buffer = nil
	}
}
