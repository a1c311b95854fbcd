package render

import (
	"sync"

	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

/**
 * @brief A chunk of geometry drawn with one material.
 *
 * Primitives cannot be rendered directly, a DrawCmdCompiler turns them into
 * one command per pass in DrawPass. Compiling is costly, so keep primitives
 * around and cache their commands (see RenderObject).
 */
type DrawPrimitive struct {
	Params     DrawParams
	Vertices   DrawVertexBuffers
	Indices    DrawIndexBuffer
	Constants  DrawUniformBuffer
	VertFormat gfx.VertFormat
	Material   *Material
	DrawPass   DrawPassMask
	Attribs    gfx.VertAttribs
	PrimType   gfx.PrimType
	Layer      int
	Name       string
}

// DrawPrimitiveCollector gathers primitives from many goroutines.
type DrawPrimitiveCollector struct {
	mutex      sync.Mutex
	primitives []*DrawPrimitive
}

func (c *DrawPrimitiveCollector) Add(primitive *DrawPrimitive) {
	c.mutex.Lock()
	c.primitives = append(c.primitives, primitive)
	c.mutex.Unlock()
}

func (c *DrawPrimitiveCollector) Reserve(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if cap(c.primitives)-len(c.primitives) < n {
		grown := make([]*DrawPrimitive, len(c.primitives), len(c.primitives)+n)
		copy(grown, c.primitives)
		c.primitives = grown
	}
}

// Primitives returns a snapshot of the collected primitives.
func (c *DrawPrimitiveCollector) Primitives() []*DrawPrimitive {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]*DrawPrimitive(nil), c.primitives...)
}

func (c *DrawPrimitiveCollector) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.primitives)
}

func (c *DrawPrimitiveCollector) Clear() {
	c.mutex.Lock()
	clear(c.primitives)
	c.primitives = c.primitives[:0]
	c.mutex.Unlock()
}
