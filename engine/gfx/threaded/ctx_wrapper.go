package threaded

import (
	"bytes"

	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/math"
)

// CtxWrapper queues immediate mode calls for the gfx goroutine. Data slices
// are copied before queuing so callers may reuse them right away.
type CtxWrapper struct {
	wrapper *DriverWrapper
	// only touched on the gfx goroutine
	ctx gfx.Ctx
}

func (c *CtxWrapper) UpdateVertBuffer(buffer gfx.VertBuffer, offset int, data []byte) {
	data = bytes.Clone(data)
	c.wrapper.push("update_vert_buffer", func() { c.ctx.UpdateVertBuffer(buffer, offset, data) })
}

func (c *CtxWrapper) UpdateIndexBuffer(buffer gfx.IndexBuffer, offset int, data []byte) {
	data = bytes.Clone(data)
	c.wrapper.push("update_index_buffer", func() { c.ctx.UpdateIndexBuffer(buffer, offset, data) })
}

func (c *CtxWrapper) UpdateUniformBuffer(buffer gfx.UniformBuffer, offset int, data []byte) {
	data = bytes.Clone(data)
	c.wrapper.push("update_uniform_buffer", func() { c.ctx.UpdateUniformBuffer(buffer, offset, data) })
}

func (c *CtxWrapper) UpdateStorageBuffer(buffer gfx.StorageBuffer, offset int, data []byte) {
	data = bytes.Clone(data)
	c.wrapper.push("update_storage_buffer", func() { c.ctx.UpdateStorageBuffer(buffer, offset, data) })
}

func (c *CtxWrapper) UpdateTexture2d(texture gfx.Texture, mip int, region math.Rect, data []byte) {
	data = bytes.Clone(data)
	c.wrapper.push("update_texture_2d", func() { c.ctx.UpdateTexture2d(texture, mip, region, data) })
}

func (c *CtxWrapper) UpdateDescSet(set gfx.DescSet, resources gfx.DescSetResources) {
	resources = append(gfx.DescSetResources(nil), resources...)
	c.wrapper.push("update_desc_set", func() { c.ctx.UpdateDescSet(set, resources) })
}

// MapBuffer blocks, the mapped memory is only valid until UnmapBuffer.
func (c *CtxWrapper) MapBuffer(buffer gfx.Buffer) []byte {
	mapped, _ := wait(c.wrapper, "map_buffer", func() ([]byte, error) {
		return c.ctx.MapBuffer(buffer), nil
	})
	return mapped
}

func (c *CtxWrapper) UnmapBuffer(buffer gfx.Buffer) {
	c.wrapper.push("unmap_buffer", func() { c.ctx.UnmapBuffer(buffer) })
}

func (c *CtxWrapper) BeginRenderPass(pass gfx.RenderPass, name string) {
	c.wrapper.push("begin_render_pass", func() { c.ctx.BeginRenderPass(pass, name) })
}

func (c *CtxWrapper) EndRenderPass() {
	c.wrapper.push("end_render_pass", func() { c.ctx.EndRenderPass() })
}

func (c *CtxWrapper) Viewport(viewport math.Rect) {
	c.wrapper.push("viewport", func() { c.ctx.Viewport(viewport) })
}

// BindPipeline blocks for the result, false also covers a stopped gfx thread.
func (c *CtxWrapper) BindPipeline(pipeline gfx.Pipeline) bool {
	ok, err := wait(c.wrapper, "bind_pipeline", func() (bool, error) {
		return c.ctx.BindPipeline(pipeline), nil
	})
	return err == nil && ok
}

func (c *CtxWrapper) BindVertBuffer(buffer gfx.VertBuffer, index int, offset int) {
	c.wrapper.push("bind_vert_buffer", func() { c.ctx.BindVertBuffer(buffer, index, offset) })
}

func (c *CtxWrapper) BindIndexBuffer(buffer gfx.IndexBuffer, indexType gfx.IndexType, offset int) {
	c.wrapper.push("bind_index_buffer", func() { c.ctx.BindIndexBuffer(buffer, indexType, offset) })
}

func (c *CtxWrapper) BindUniformBuffer(location gfx.Location, offset int, rng int, buffer gfx.UniformBuffer) {
	c.wrapper.push("bind_uniform_buffer", func() { c.ctx.BindUniformBuffer(location, offset, rng, buffer) })
}

func (c *CtxWrapper) BindStorageBuffer(location gfx.Location, offset int, rng int, buffer gfx.StorageBuffer) {
	c.wrapper.push("bind_storage_buffer", func() { c.ctx.BindStorageBuffer(location, offset, rng, buffer) })
}

func (c *CtxWrapper) BindTexture(location gfx.Location, arrayElement int, texture gfx.Texture, sampler gfx.Sampler) {
	c.wrapper.push("bind_texture", func() { c.ctx.BindTexture(location, arrayElement, texture, sampler) })
}

func (c *CtxWrapper) BindDescSet(set gfx.DescSet, index int) {
	c.wrapper.push("bind_desc_set", func() { c.ctx.BindDescSet(set, index) })
}

func (c *CtxWrapper) Draw(vertexCount, baseVertex, instanceCount int) {
	c.wrapper.push("draw", func() { c.ctx.Draw(vertexCount, baseVertex, instanceCount) })
}

func (c *CtxWrapper) DrawIndexed(indexCount, baseVertex, instanceCount int) {
	c.wrapper.push("draw_indexed", func() { c.ctx.DrawIndexed(indexCount, baseVertex, instanceCount) })
}

func (c *CtxWrapper) BeginFrame() {
	c.wrapper.frame.Add(1)
	c.wrapper.push("begin_frame", func() { c.ctx.BeginFrame() })
}

func (c *CtxWrapper) EndFrame() {
	c.wrapper.push("end_frame", func() { c.ctx.EndFrame() })
}

func (c *CtxWrapper) BeginLabel(label string) {
	c.wrapper.push("begin_label", func() { c.ctx.BeginLabel(label) })
}

func (c *CtxWrapper) EndLabel() {
	c.wrapper.push("end_label", func() { c.ctx.EndLabel() })
}

// Execute hands fn the backend context itself, so calls made inside fn
// run immediately on the gfx goroutine.
func (c *CtxWrapper) Execute(fn func(ctx gfx.Ctx)) {
	c.wrapper.push("execute", func() { fn(c.ctx) })
}
