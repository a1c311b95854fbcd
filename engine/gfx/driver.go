package gfx

import "github.com/spaghettifunk/anima-gfx/engine/math"

// Driver creates gpu resources and drives the frame lifecycle of a backend.
// Creation failures are returned and logged. Soft failures never cross the
// gfx thread as panics.
type Driver interface {
	MakeVertFormat(elements VertElements, name string) (VertFormat, error)
	MakeVertBuffer(size int, usage MemUsage, name string) (VertBuffer, error)
	MakeIndexBuffer(size int, usage MemUsage, name string) (IndexBuffer, error)
	MakeUniformBuffer(size int, usage MemUsage, name string) (UniformBuffer, error)
	MakeStorageBuffer(size int, usage MemUsage, name string) (StorageBuffer, error)
	MakeShader(desc ShaderDesc, name string) (Shader, error)
	MakeTexture2d(desc TextureDesc, name string) (Texture, error)
	MakeSampler(desc SamplerDesc, name string) (Sampler, error)
	MakeRenderPass(desc RenderPassDesc, name string) (RenderPass, error)
	MakePipeline(desc PipelineDesc, name string) (Pipeline, error)
	MakeDescSetLayout(desc DescSetLayoutDesc, name string) (DescSetLayout, error)
	MakeDescSet(resources DescSetResources, layout DescSetLayout, name string) (DescSet, error)

	// Destroy releases a resource. Descriptor sets go back to their pool.
	Destroy(resource Resource)

	PrepareWindow(window string)
	SwapBuffers(window string)
	Flush()
	Shutdown()

	// OnGfxThread reports whether the caller runs on the goroutine that owns
	// the backend.
	OnGfxThread() bool
	FrameNumber() uint64
	Ctx() Ctx
}

// Ctx is the immediate mode interface used to record a frame.
type Ctx interface {
	UpdateVertBuffer(buffer VertBuffer, offset int, data []byte)
	UpdateIndexBuffer(buffer IndexBuffer, offset int, data []byte)
	UpdateUniformBuffer(buffer UniformBuffer, offset int, data []byte)
	UpdateStorageBuffer(buffer StorageBuffer, offset int, data []byte)
	UpdateTexture2d(texture Texture, mip int, region math.Rect, data []byte)
	UpdateDescSet(set DescSet, resources DescSetResources)

	MapBuffer(buffer Buffer) []byte
	UnmapBuffer(buffer Buffer)

	BeginRenderPass(pass RenderPass, name string)
	EndRenderPass()
	Viewport(viewport math.Rect)

	// BindPipeline returns false when the pipeline cannot be used yet.
	BindPipeline(pipeline Pipeline) bool
	BindVertBuffer(buffer VertBuffer, index int, offset int)
	BindIndexBuffer(buffer IndexBuffer, indexType IndexType, offset int)
	BindUniformBuffer(location Location, offset int, rng int, buffer UniformBuffer)
	BindStorageBuffer(location Location, offset int, rng int, buffer StorageBuffer)
	BindTexture(location Location, arrayElement int, texture Texture, sampler Sampler)
	BindDescSet(set DescSet, index int)

	Draw(vertexCount, baseVertex, instanceCount int)
	DrawIndexed(indexCount, baseVertex, instanceCount int)

	BeginFrame()
	EndFrame()
	BeginLabel(label string)
	EndLabel()

	// Execute runs fn against the context on the gfx thread.
	Execute(fn func(ctx Ctx))
}
