package core

import (
	"errors"
)

var (
	ErrStreamClosed      = errors.New("command stream closed")
	ErrWrongThread       = errors.New("call made outside of the owning gfx thread")
	ErrPoolExhausted     = errors.New("descriptor pool exhausted")
	ErrPipelineNotReady  = errors.New("pipeline is not ready yet")
	ErrPipelineFailed    = errors.New("pipeline creation failed")
	ErrPipelineStalled   = errors.New("pipeline skipped for too many consecutive frames")
	ErrNoShaderVariation = errors.New("shader has no variation for the requested pass")
	ErrCompileOutputSize = errors.New("output command span is smaller than the pass count")
	ErrNoDrawPass        = errors.New("primitive is not drawn in any pass")
	ErrNegativeLayer     = errors.New("layer id must be non-negative")
	ErrUnknownParam      = errors.New("no such shader param")
	ErrParamType         = errors.New("shader param type mismatch")
	ErrNilTexture        = errors.New("texture is nil")
	ErrShaderMismatch    = errors.New("material and properties use different shaders")
	ErrUnknown           = errors.New("unknown")
)
