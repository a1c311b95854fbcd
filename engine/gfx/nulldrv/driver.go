// Package nulldrv is a backend that keeps every resource in memory and
// records every context call. It backs the headless demo and the tests.
package nulldrv

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/desc"
	"github.com/spaghettifunk/anima-gfx/engine/math"
)

type Options struct {
	DescPool desc.PoolSizes
	// PipelineDelay simulates asynchronous pipeline compilation.
	PipelineDelay time.Duration
	// FailPipelines makes every pipeline creation fail.
	FailPipelines bool
	// Owner reports whether the caller may touch descriptor sets. Nil
	// allows any goroutine. See also SetOwner.
	Owner func() bool
}

func DefaultOptions() Options {
	return Options{DescPool: desc.DefaultPoolSizes()}
}

// Driver implements both gfx.Driver and gfx.Ctx. State is guarded by a
// mutex so it can also be used without the threaded wrapper.
type Driver struct {
	callLog

	options Options
	mutex   sync.Mutex
	descs   *desc.Manager[uint64]
	pool    *poolAllocator

	owner        atomic.Pointer[func() bool]
	nextLayoutID atomic.Uint64
	frame        atomic.Uint64
	shutdown     bool

	boundPipeline *Pipeline
}

func New(options Options) (*Driver, error) {
	d := &Driver{options: options, pool: &poolAllocator{}}
	if options.Owner != nil {
		d.SetOwner(options.Owner)
	}

	m, err := desc.NewManager[uint64](options.DescPool, d.pool, d.ownerThread)
	if err != nil {
		return nil, err
	}
	d.descs = m
	core.LogInfo("null gfx driver created")
	return d, nil
}

// SetOwner confines descriptor set calls to goroutines for which owner
// returns true. The threaded wrapper is created after the driver, so the
// check can be bound late.
func (d *Driver) SetOwner(owner func() bool) {
	if owner == nil {
		d.owner.Store(nil)
		return
	}
	d.owner.Store(&owner)
}

func (d *Driver) ownerThread() bool {
	owner := d.owner.Load()
	return owner == nil || (*owner)()
}

// DescManager exposes the descriptor pool, mostly for tests.
func (d *Driver) DescManager() *desc.Manager[uint64] {
	return d.descs
}

func resourceName(kind, name string) string {
	if name != "" {
		return name
	}
	return kind + "-" + uuid.NewString()[:8]
}

func (d *Driver) MakeVertFormat(elements gfx.VertElements, name string) (gfx.VertFormat, error) {
	return &VertFormat{resource: resource{resourceName("vert_format", name)}, elements: elements}, nil
}

func newBuffer(kind string, size int, usage gfx.MemUsage, name string) (buffer, error) {
	if size <= 0 {
		return buffer{}, fmt.Errorf("%s %q: invalid size %d", kind, name, size)
	}
	return buffer{
		resource: resource{resourceName(kind, name)},
		usage:    usage,
		data:     make([]byte, size),
	}, nil
}

func (d *Driver) MakeVertBuffer(size int, usage gfx.MemUsage, name string) (gfx.VertBuffer, error) {
	b, err := newBuffer("vert_buffer", size, usage, name)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &VertBuffer{buffer: b}, nil
}

func (d *Driver) MakeIndexBuffer(size int, usage gfx.MemUsage, name string) (gfx.IndexBuffer, error) {
	b, err := newBuffer("index_buffer", size, usage, name)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &IndexBuffer{buffer: b}, nil
}

func (d *Driver) MakeUniformBuffer(size int, usage gfx.MemUsage, name string) (gfx.UniformBuffer, error) {
	b, err := newBuffer("uniform_buffer", size, usage, name)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &UniformBuffer{buffer: b}, nil
}

func (d *Driver) MakeStorageBuffer(size int, usage gfx.MemUsage, name string) (gfx.StorageBuffer, error) {
	b, err := newBuffer("storage_buffer", size, usage, name)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &StorageBuffer{buffer: b}, nil
}

func (d *Driver) MakeShader(desc gfx.ShaderDesc, name string) (gfx.Shader, error) {
	return &Shader{resource: resource{resourceName("shader", name)}, desc: desc}, nil
}

func (d *Driver) MakeTexture2d(desc gfx.TextureDesc, name string) (gfx.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		err := fmt.Errorf("texture %q: invalid size %dx%d", name, desc.Width, desc.Height)
		core.LogError(err.Error())
		return nil, err
	}
	desc.TexType = gfx.TexType2d
	return &Texture{resource: resource{resourceName("texture", name)}, desc: desc}, nil
}

func (d *Driver) MakeSampler(desc gfx.SamplerDesc, name string) (gfx.Sampler, error) {
	return &Sampler{resource: resource{resourceName("sampler", name)}, desc: desc}, nil
}

func (d *Driver) MakeRenderPass(desc gfx.RenderPassDesc, name string) (gfx.RenderPass, error) {
	return &RenderPass{resource: resource{resourceName("render_pass", name)}, desc: desc}, nil
}

func (d *Driver) MakePipeline(desc gfx.PipelineDesc, name string) (gfx.Pipeline, error) {
	d.record(OpMakePipeline, name)
	if desc.Shader == nil {
		err := fmt.Errorf("pipeline %q: no shader", name)
		core.LogError(err.Error())
		return nil, err
	}
	p := &Pipeline{
		resource: resource{resourceName("pipeline", name)},
		desc:     desc,
		created:  time.Now(),
		delay:    d.options.PipelineDelay,
	}
	if d.options.FailPipelines {
		p.SetStatus(gfx.PipelineStatusFailed)
	}
	return p, nil
}

func (d *Driver) MakeDescSetLayout(desc gfx.DescSetLayoutDesc, name string) (gfx.DescSetLayout, error) {
	for _, b := range desc {
		if b.Type >= gfx.BindingTypeMax {
			err := fmt.Errorf("layout %q: binding %d has invalid type %d", name, b.Binding, b.Type)
			core.LogError(err.Error())
			return nil, err
		}
	}
	return &DescSetLayout{
		resource: resource{resourceName("desc_set_layout", name)},
		id:       d.nextLayoutID.Add(1),
		desc:     desc,
	}, nil
}

func (d *Driver) MakeDescSet(resources gfx.DescSetResources, layout gfx.DescSetLayout, name string) (gfx.DescSet, error) {
	d.record(OpMakeDescSet, name, len(resources))

	l, ok := layout.(*DescSetLayout)
	if !ok {
		err := fmt.Errorf("desc set %q: layout %T does not belong to the null driver", name, layout)
		core.LogError(err.Error())
		return nil, err
	}
	if err := gfx.ValidateResources(l.desc, resources); err != nil {
		err = fmt.Errorf("desc set %q: %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}

	handle := d.allocateSet(l)

	return &DescSet{
		resource:  resource{resourceName("desc_set", name)},
		layout:    l,
		handle:    handle,
		resources: append(gfx.DescSetResources(nil), resources...),
	}, nil
}

func (d *Driver) Destroy(r gfx.Resource) {
	if r == nil {
		return
	}
	d.record(OpDestroy, r.Name())
	if set, ok := r.(*DescSet); ok {
		d.freeSet(set)
	}
}

func (d *Driver) allocateSet(layout *DescSetLayout) uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.descs.Allocate(layout)
}

func (d *Driver) freeSet(set *DescSet) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.descs.Free(set.layout, set.handle)
}

func (d *Driver) PrepareWindow(window string) {
	d.record(OpPrepareWindow, window)
}

func (d *Driver) SwapBuffers(window string) {
	d.record(OpSwapBuffers, window)
}

func (d *Driver) Flush() {
	d.record(OpFlush)
}

func (d *Driver) Shutdown() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.shutdown {
		return
	}
	d.record(OpShutdown)
	d.descs.Destroy()
	d.shutdown = true
	core.LogInfo("null gfx driver shut down")
}

// OnGfxThread is always true, every goroutine may drive the null backend.
func (d *Driver) OnGfxThread() bool {
	return true
}

func (d *Driver) FrameNumber() uint64 {
	return d.frame.Load()
}

func (d *Driver) Ctx() gfx.Ctx {
	return d
}

func write(op string, b *buffer, offset int, data []byte) {
	if offset < 0 || offset+len(data) > len(b.data) {
		core.LogError("%s %s: range [%d, %d) out of bounds (size %d)", op, b.name, offset, offset+len(data), len(b.data))
		return
	}
	copy(b.data[offset:], data)
}

func (d *Driver) UpdateVertBuffer(buf gfx.VertBuffer, offset int, data []byte) {
	d.record(OpUpdateVertBuffer, buf.Name(), offset, len(data))
	d.mutex.Lock()
	write(OpUpdateVertBuffer, &buf.(*VertBuffer).buffer, offset, data)
	d.mutex.Unlock()
}

func (d *Driver) UpdateIndexBuffer(buf gfx.IndexBuffer, offset int, data []byte) {
	d.record(OpUpdateIndexBuffer, buf.Name(), offset, len(data))
	d.mutex.Lock()
	write(OpUpdateIndexBuffer, &buf.(*IndexBuffer).buffer, offset, data)
	d.mutex.Unlock()
}

func (d *Driver) UpdateUniformBuffer(buf gfx.UniformBuffer, offset int, data []byte) {
	d.record(OpUpdateUniformBuffer, buf.Name(), offset, len(data))
	d.mutex.Lock()
	write(OpUpdateUniformBuffer, &buf.(*UniformBuffer).buffer, offset, data)
	d.mutex.Unlock()
}

func (d *Driver) UpdateStorageBuffer(buf gfx.StorageBuffer, offset int, data []byte) {
	d.record(OpUpdateStorageBuffer, buf.Name(), offset, len(data))
	d.mutex.Lock()
	write(OpUpdateStorageBuffer, &buf.(*StorageBuffer).buffer, offset, data)
	d.mutex.Unlock()
}

func (d *Driver) UpdateTexture2d(texture gfx.Texture, mip int, region math.Rect, data []byte) {
	d.record(OpUpdateTexture2d, texture.Name(), mip, region, len(data))
}

func (d *Driver) UpdateDescSet(set gfx.DescSet, resources gfx.DescSetResources) {
	d.record(OpUpdateDescSet, set.Name(), len(resources))
	s := set.(*DescSet)
	if err := gfx.ValidateResources(s.layout.desc, resources); err != nil {
		core.LogError("update desc set %s: %s", s.name, err.Error())
		return
	}
	d.mutex.Lock()
	s.resources = append(gfx.DescSetResources(nil), resources...)
	d.mutex.Unlock()
}

func bufferOf(b gfx.Buffer) *buffer {
	switch v := b.(type) {
	case *VertBuffer:
		return &v.buffer
	case *IndexBuffer:
		return &v.buffer
	case *UniformBuffer:
		return &v.buffer
	case *StorageBuffer:
		return &v.buffer
	}
	return nil
}

func (d *Driver) MapBuffer(buf gfx.Buffer) []byte {
	d.record(OpMapBuffer, buf.Name())
	b := bufferOf(buf)
	if b == nil {
		core.LogError("map buffer %s: unsupported buffer %T", buf.Name(), buf)
		return nil
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if b.mapped {
		core.LogWarn("map buffer %s: already mapped", b.name)
	}
	b.mapped = true
	return b.data
}

func (d *Driver) UnmapBuffer(buf gfx.Buffer) {
	d.record(OpUnmapBuffer, buf.Name())
	if b := bufferOf(buf); b != nil {
		d.mutex.Lock()
		b.mapped = false
		d.mutex.Unlock()
	}
}

func (d *Driver) BeginRenderPass(pass gfx.RenderPass, name string) {
	d.record(OpBeginRenderPass, pass.Name(), name)
}

func (d *Driver) EndRenderPass() {
	d.record(OpEndRenderPass)
}

func (d *Driver) Viewport(viewport math.Rect) {
	d.record(OpViewport, viewport)
}

func (d *Driver) BindPipeline(pipeline gfx.Pipeline) bool {
	d.record(OpBindPipeline, pipeline.Name())
	p, ok := pipeline.(*Pipeline)
	if !ok || p.Status() != gfx.PipelineStatusCreated {
		return false
	}
	d.mutex.Lock()
	d.boundPipeline = p
	d.mutex.Unlock()
	return true
}

func (d *Driver) BindVertBuffer(buf gfx.VertBuffer, index int, offset int) {
	d.record(OpBindVertBuffer, buf.Name(), index, offset)
}

func (d *Driver) BindIndexBuffer(buf gfx.IndexBuffer, indexType gfx.IndexType, offset int) {
	d.record(OpBindIndexBuffer, buf.Name(), indexType, offset)
}

func (d *Driver) BindUniformBuffer(location gfx.Location, offset int, rng int, buf gfx.UniformBuffer) {
	d.record(OpBindUniformBuffer, location, offset, rng, buf.Name())
}

func (d *Driver) BindStorageBuffer(location gfx.Location, offset int, rng int, buf gfx.StorageBuffer) {
	d.record(OpBindStorageBuffer, location, offset, rng, buf.Name())
}

func (d *Driver) BindTexture(location gfx.Location, arrayElement int, texture gfx.Texture, sampler gfx.Sampler) {
	var samplerName string
	if sampler != nil {
		samplerName = sampler.Name()
	}
	d.record(OpBindTexture, location, arrayElement, texture.Name(), samplerName)
}

func (d *Driver) BindDescSet(set gfx.DescSet, index int) {
	d.record(OpBindDescSet, set.Name(), index)
}

func (d *Driver) Draw(vertexCount, baseVertex, instanceCount int) {
	d.record(OpDraw, vertexCount, baseVertex, instanceCount)
}

func (d *Driver) DrawIndexed(indexCount, baseVertex, instanceCount int) {
	d.record(OpDrawIndexed, indexCount, baseVertex, instanceCount)
}

func (d *Driver) BeginFrame() {
	d.record(OpBeginFrame, d.frame.Add(1))
}

func (d *Driver) EndFrame() {
	d.record(OpEndFrame, d.frame.Load())
}

func (d *Driver) BeginLabel(label string) {
	d.record(OpBeginLabel, label)
}

func (d *Driver) EndLabel() {
	d.record(OpEndLabel)
}

func (d *Driver) Execute(fn func(ctx gfx.Ctx)) {
	d.record(OpExecute)
	fn(d)
}

// poolAllocator hands out increasing handles and enforces nothing; the
// manager tracks MaxSets itself.
type poolAllocator struct {
	next  uint64
	sizes desc.PoolSizes
	alive bool
}

func (a *poolAllocator) CreatePool(sizes desc.PoolSizes) error {
	a.sizes = sizes
	a.alive = true
	return nil
}

func (a *poolAllocator) AllocateSet(layout gfx.DescSetLayout) (uint64, error) {
	if !a.alive {
		return 0, fmt.Errorf("pool destroyed")
	}
	a.next++
	return a.next, nil
}

func (a *poolAllocator) DestroyPool() {
	a.alive = false
}
