package render

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-gfx/engine/core"
)

/**
 * @brief A persistent drawable: its commands are compiled once and reused
 * every frame until the primitive changes.
 */
type RenderObject struct {
	prim     *DrawPrimitive
	handles  []DrawCmdHandle
	cmds     []*DrawCmd
	passes   []DrawPass
	key      DrawCmdSortingKey
	compiled bool
}

func NewRenderObject(prim *DrawPrimitive) *RenderObject {
	return &RenderObject{prim: prim, passes: prim.DrawPass.Passes()}
}

func (o *RenderObject) Primitive() *DrawPrimitive {
	return o.prim
}

func (o *RenderObject) IsCompiled() bool {
	return o.compiled
}

// Compile allocates the commands on first use. A pipeline that is still
// building returns core.ErrPipelineNotReady and the call can be retried.
func (o *RenderObject) Compile(engine *RenderEngine) error {
	if o.compiled {
		return nil
	}
	if len(o.passes) == 0 {
		return fmt.Errorf("render object %s: %w", o.prim.Name, core.ErrNoDrawPass)
	}
	if o.handles == nil {
		o.handles = make([]DrawCmdHandle, len(o.passes))
		o.cmds = make([]*DrawCmd, len(o.passes))
		for i := range o.passes {
			o.handles[i], o.cmds[i] = engine.AllocateDrawCmd()
		}
	}
	if err := engine.Compiler().Compile(o.prim, o.cmds); err != nil {
		return err
	}
	key, err := NewOverlaySortingKey(o.cmds[0].Material, o.prim.Layer)
	if err != nil {
		return err
	}
	o.key = key
	o.compiled = true
	return nil
}

// Submit compiles when needed and pushes one command per pass. Objects that
// do not compile are left out of the frame and retried on the next one, the
// compiler already logged why.
func (o *RenderObject) Submit(s *Submitter, view int) error {
	if err := o.Compile(s.Engine()); err != nil {
		if errors.Is(err, core.ErrNoDrawPass) {
			core.LogError(err.Error())
		}
		return nil
	}
	for i, pass := range o.passes {
		if err := s.Push(view, pass, o.key, o.cmds[i]); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate forces the next Submit to recompile, keeping the commands.
func (o *RenderObject) Invalidate() {
	o.compiled = false
}

// Release frees the commands. The object may be compiled again afterwards.
func (o *RenderObject) Release(engine *RenderEngine) error {
	var errs []error
	for _, h := range o.handles {
		if err := engine.FreeDrawCmd(h); err != nil {
			errs = append(errs, err)
		}
	}
	o.handles = nil
	o.cmds = nil
	o.compiled = false
	return errors.Join(errs...)
}
