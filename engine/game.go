package engine

import (
	"github.com/spaghettifunk/anima-gfx/engine/render"
)

// Game is what an application hands to the engine. The engine calls the
// hooks from its frame loop, FnRender runs as a render producer.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnShutdown        Shutdown
}

type Initialize func(e *Engine) error
type Update func(deltaTime float64) error
type Render func(s *render.Submitter, deltaTime float64) error
type Shutdown func() error
