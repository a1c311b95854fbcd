package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/systems"
)

// PipelineKey identifies one shader permutation.
type PipelineKey struct {
	Shader     *Shader
	Pass       DrawPass
	Attribs    gfx.VertAttribs
	VertFormat gfx.VertFormat
	PrimType   gfx.PrimType
}

func (k PipelineKey) String() string {
	name := "<nil>"
	if k.Shader != nil {
		name = k.Shader.Name()
	}
	return fmt.Sprintf("%s.%s.%#x.%s", name, k.Pass, uint32(k.Attribs), k.PrimType)
}

type PendingStatus uint32

const (
	PendingStatusPending PendingStatus = iota
	PendingStatusReady
	PendingStatusFailed
)

func (s PendingStatus) String() string {
	switch s {
	case PendingStatusPending:
		return "Pending"
	case PendingStatusReady:
		return "Ready"
	case PendingStatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("PendingStatus(%d)", uint32(s))
}

/**
 * @brief Handle to a pipeline compiled in the background. Poll Status or
 * join with Wait.
 */
type PendingPipeline struct {
	key      PipelineKey
	status   atomic.Uint32
	done     chan struct{}
	pipeline gfx.Pipeline
	err      error
}

func newPendingPipeline(key PipelineKey) *PendingPipeline {
	return &PendingPipeline{key: key, done: make(chan struct{})}
}

func (p *PendingPipeline) Key() PipelineKey {
	return p.key
}

func (p *PendingPipeline) Status() PendingStatus {
	return PendingStatus(p.status.Load())
}

// Pipeline is nil until the status is Ready.
func (p *PendingPipeline) Pipeline() gfx.Pipeline {
	if p.Status() != PendingStatusReady {
		return nil
	}
	return p.pipeline
}

func (p *PendingPipeline) Err() error {
	if p.Status() != PendingStatusFailed {
		return nil
	}
	return p.err
}

// Wait blocks until the pipeline resolved or ctx is done.
func (p *PendingPipeline) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PendingPipeline) resolve(pipeline gfx.Pipeline, err error) {
	p.pipeline = pipeline
	p.err = err
	if err != nil {
		p.status.Store(uint32(PendingStatusFailed))
	} else {
		p.status.Store(uint32(PendingStatusReady))
	}
	close(p.done)
}

type PipelineCacheOptions struct {
	// PollInterval is how often a compiling pipeline is checked.
	PollInterval time.Duration
	// Timeout fails pipelines that stay in Creating for longer.
	Timeout time.Duration
}

func DefaultPipelineCacheOptions() PipelineCacheOptions {
	return PipelineCacheOptions{PollInterval: time.Millisecond, Timeout: 30 * time.Second}
}

/**
 * @brief Pipelines by permutation. Misses are compiled by the job system so
 * lookups never block the caller.
 */
type PipelineCache struct {
	driver  gfx.Driver
	jobs    *systems.JobSystem
	options PipelineCacheOptions

	mutex   sync.Mutex
	entries map[PipelineKey]*PendingPipeline
}

// NewPipelineCache compiles on jobs. With a nil job system misses compile
// synchronously inside Get.
func NewPipelineCache(driver gfx.Driver, jobs *systems.JobSystem, options PipelineCacheOptions) *PipelineCache {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPipelineCacheOptions().PollInterval
	}
	return &PipelineCache{
		driver:  driver,
		jobs:    jobs,
		options: options,
		entries: make(map[PipelineKey]*PendingPipeline),
	}
}

func (c *PipelineCache) Get(key PipelineKey, desc gfx.PipelineDesc) *PendingPipeline {
	c.mutex.Lock()
	if p, ok := c.entries[key]; ok {
		c.mutex.Unlock()
		return p
	}
	p := newPendingPipeline(key)
	c.entries[key] = p
	c.mutex.Unlock()

	task := systems.JobTask{
		Name: "pipeline " + key.String(),
		Run: func() error {
			pipeline, err := c.build(key, desc)
			p.resolve(pipeline, err)
			return err
		},
	}
	if c.jobs == nil {
		_ = task.Run()
		return p
	}
	go func() {
		if err := c.jobs.Submit(task); err != nil {
			p.resolve(nil, err)
		}
	}()
	return p
}

// Prepare starts compiling key without waiting for it.
func (c *PipelineCache) Prepare(key PipelineKey, desc gfx.PipelineDesc) {
	c.Get(key, desc)
}

func (c *PipelineCache) build(key PipelineKey, desc gfx.PipelineDesc) (gfx.Pipeline, error) {
	pipeline, err := c.driver.MakePipeline(desc, key.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", core.ErrPipelineFailed, key, err.Error())
	}

	var deadline time.Time
	if c.options.Timeout > 0 {
		deadline = time.Now().Add(c.options.Timeout)
	}
	for {
		switch pipeline.Status() {
		case gfx.PipelineStatusCreated:
			return pipeline, nil
		case gfx.PipelineStatusFailed:
			return nil, fmt.Errorf("%w: %s", core.ErrPipelineFailed, key)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s timed out after %s", core.ErrPipelineFailed, key, c.options.Timeout)
		}
		time.Sleep(c.options.PollInterval)
	}
}

func (c *PipelineCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Clear drops every entry and destroys the ready pipelines.
func (c *PipelineCache) Clear() {
	c.mutex.Lock()
	entries := c.entries
	c.entries = make(map[PipelineKey]*PendingPipeline)
	c.mutex.Unlock()

	for _, p := range entries {
		if pipeline := p.Pipeline(); pipeline != nil {
			c.driver.Destroy(pipeline)
		}
	}
}
