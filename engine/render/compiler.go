package render

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

/**
 * @brief Turns a primitive into one command per pass it is drawn in.
 *
 * cmds must hold at least prim.DrawPass.Count() entries. On error none of
 * them was written.
 */
type DrawCmdCompiler interface {
	Compile(prim *DrawPrimitive, cmds []*DrawCmd) error
}

type CompilerStats struct {
	Compiled uint64
	NotReady uint64
	Failed   uint64
}

// PipelineCompiler resolves pipelines through a PipelineCache.
type PipelineCompiler struct {
	driver gfx.Driver
	cache  *PipelineCache

	compiled atomic.Uint64
	notReady atomic.Uint64
	failed   atomic.Uint64
}

func NewPipelineCompiler(driver gfx.Driver, cache *PipelineCache) *PipelineCompiler {
	return &PipelineCompiler{driver: driver, cache: cache}
}

func (c *PipelineCompiler) Compile(prim *DrawPrimitive, cmds []*DrawCmd) error {
	if err := c.compile(prim, cmds); err != nil {
		if errors.Is(err, core.ErrPipelineNotReady) {
			c.notReady.Add(1)
		} else {
			c.failed.Add(1)
			core.LogError("compile %s: %s", prim.Name, err.Error())
		}
		return err
	}
	c.compiled.Add(1)
	return nil
}

func (c *PipelineCompiler) compile(prim *DrawPrimitive, cmds []*DrawCmd) error {
	passes := prim.DrawPass.Passes()
	if len(passes) == 0 {
		return fmt.Errorf("%w: %s", core.ErrNoDrawPass, prim.Name)
	}
	if len(cmds) < len(passes) {
		return fmt.Errorf("%w: %d commands for %d passes", core.ErrCompileOutputSize, len(cmds), len(passes))
	}
	for i := range passes {
		if cmds[i] == nil {
			return fmt.Errorf("%w: command %d is nil", core.ErrCompileOutputSize, i)
		}
	}
	if prim.Material == nil {
		return fmt.Errorf("primitive %s has no material", prim.Name)
	}

	rm, err := prim.Material.RenderMaterial(c.driver)
	if err != nil {
		return err
	}
	rm.EnsureVersion(c.driver.Ctx())

	shader := prim.Material.Shader()
	layout, err := shader.MaterialLayout(c.driver)
	if err != nil {
		return err
	}

	// resolve everything before touching the output
	var pipelines [DrawPassMax]gfx.Pipeline
	for i, pass := range passes {
		desc, err := shader.PipelineDesc(pass, prim.Attribs, prim.VertFormat, prim.PrimType, layout)
		if err != nil {
			return err
		}
		key := PipelineKey{
			Shader:     shader,
			Pass:       pass,
			Attribs:    prim.Attribs,
			VertFormat: prim.VertFormat,
			PrimType:   prim.PrimType,
		}
		pending := c.cache.Get(key, desc)
		switch pending.Status() {
		case PendingStatusPending:
			return fmt.Errorf("%w: %s", core.ErrPipelineNotReady, key)
		case PendingStatusFailed:
			return pending.Err()
		}
		pipelines[i] = pending.Pipeline()
	}

	bindings := DrawMaterialBindings{
		FirstTexture: shader.StartTexturesSlot(),
		FirstBuffer:  shader.StartBuffersSlot(),
	}
	for i := range passes {
		*cmds[i] = DrawCmd{
			Params:    prim.Params,
			Vertices:  prim.Vertices,
			Indices:   prim.Indices,
			Constants: prim.Constants,
			Bindings:  bindings,
			Material:  rm,
			Pipeline:  pipelines[i],
		}
	}
	return nil
}

func (c *PipelineCompiler) Cache() *PipelineCache {
	return c.cache
}

func (c *PipelineCompiler) Stats() CompilerStats {
	return CompilerStats{
		Compiled: c.compiled.Load(),
		NotReady: c.notReady.Load(),
		Failed:   c.failed.Load(),
	}
}
