package nulldrv

import (
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

type resource struct {
	name string
}

func (r *resource) Name() string {
	return r.name
}

type buffer struct {
	resource
	usage  gfx.MemUsage
	data   []byte
	mapped bool
}

func (b *buffer) Size() int {
	return len(b.data)
}

func (b *buffer) Usage() gfx.MemUsage {
	return b.usage
}

// Bytes returns a copy of the buffer contents.
func (b *buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

type VertBuffer struct {
	buffer
	gfx.VertBufferKind
}

type IndexBuffer struct {
	buffer
	gfx.IndexBufferKind
}

type UniformBuffer struct {
	buffer
	gfx.UniformBufferKind
}

type StorageBuffer struct {
	buffer
	gfx.StorageBufferKind
}

type Texture struct {
	resource
	desc gfx.TextureDesc
}

func (t *Texture) Desc() gfx.TextureDesc {
	return t.desc
}

type Sampler struct {
	resource
	desc gfx.SamplerDesc
}

func (s *Sampler) Desc() gfx.SamplerDesc {
	return s.desc
}

type Shader struct {
	resource
	desc gfx.ShaderDesc
}

type VertFormat struct {
	resource
	elements gfx.VertElements
}

func (f *VertFormat) Elements() gfx.VertElements {
	return f.elements
}

type RenderPass struct {
	resource
	desc gfx.RenderPassDesc
}

func (p *RenderPass) Desc() gfx.RenderPassDesc {
	return p.desc
}

type DescSetLayout struct {
	resource
	id   uint64
	desc gfx.DescSetLayoutDesc
}

func (l *DescSetLayout) ID() uint64 {
	return l.id
}

func (l *DescSetLayout) Desc() gfx.DescSetLayoutDesc {
	return l.desc
}

type DescSet struct {
	resource
	layout    *DescSetLayout
	handle    uint64
	resources gfx.DescSetResources
}

func (s *DescSet) Layout() gfx.DescSetLayout {
	return s.layout
}

// Handle is the pooled slot backing the set.
func (s *DescSet) Handle() uint64 {
	return s.handle
}

func (s *DescSet) Resources() gfx.DescSetResources {
	return s.resources
}

// Pipeline becomes usable once its simulated compile delay has passed,
// unless a status was forced with SetStatus.
type Pipeline struct {
	resource
	desc    gfx.PipelineDesc
	created time.Time
	delay   time.Duration
	forced  atomic.Uint32
}

func (p *Pipeline) Desc() gfx.PipelineDesc {
	return p.desc
}

func (p *Pipeline) Status() gfx.PipelineStatus {
	if forced := p.forced.Load(); forced != 0 {
		return gfx.PipelineStatus(forced - 1)
	}
	if time.Since(p.created) < p.delay {
		return gfx.PipelineStatusCreating
	}
	return gfx.PipelineStatusCreated
}

func (p *Pipeline) SetStatus(status gfx.PipelineStatus) {
	p.forced.Store(uint32(status) + 1)
}
