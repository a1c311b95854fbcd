package render

import (
	"cmp"
	"slices"
	"sync"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

type ExecuteStats struct {
	Draws         int
	Skipped       int
	PipelineBinds int
	MaterialBinds int
}

func (s *ExecuteStats) Add(other ExecuteStats) {
	s.Draws += other.Draws
	s.Skipped += other.Skipped
	s.PipelineBinds += other.PipelineBinds
	s.MaterialBinds += other.MaterialBinds
}

type queueEntry struct {
	key DrawCmdSortingKey
	cmd *DrawCmd
}

/**
 * @brief Commands of one pass for one frame.
 *
 * Push is safe from any goroutine. Sort and Execute run once per frame on
 * the rendering goroutine after every producer is done.
 */
type DrawCmdQueue struct {
	name    string
	mutex   sync.Mutex
	entries []queueEntry
	skips   *SkipTracker
}

func NewDrawCmdQueue(name string) *DrawCmdQueue {
	return &DrawCmdQueue{name: name, skips: NewSkipTracker(DefaultSkipPolicy())}
}

func (q *DrawCmdQueue) Name() string {
	return q.name
}

func (q *DrawCmdQueue) SetSkipPolicy(tracker *SkipTracker) {
	q.mutex.Lock()
	q.skips = tracker
	q.mutex.Unlock()
}

func (q *DrawCmdQueue) Push(key DrawCmdSortingKey, cmd *DrawCmd) {
	q.mutex.Lock()
	q.entries = append(q.entries, queueEntry{key: key, cmd: cmd})
	q.mutex.Unlock()
}

func (q *DrawCmdQueue) Reserve(n int) {
	q.mutex.Lock()
	q.entries = slices.Grow(q.entries, n)
	q.mutex.Unlock()
}

func (q *DrawCmdQueue) Clear() {
	q.mutex.Lock()
	clear(q.entries)
	q.entries = q.entries[:0]
	q.mutex.Unlock()
}

func (q *DrawCmdQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.entries)
}

// Sort orders by ascending key, pushes with equal keys keep their order.
func (q *DrawCmdQueue) Sort() {
	q.mutex.Lock()
	slices.SortStableFunc(q.entries, func(a, b queueEntry) int {
		return cmp.Compare(a.key, b.key)
	})
	q.mutex.Unlock()
}

func (q *DrawCmdQueue) Cmds() []*DrawCmd {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	cmds := make([]*DrawCmd, len(q.entries))
	for i, e := range q.entries {
		cmds[i] = e.cmd
	}
	return cmds
}

func (q *DrawCmdQueue) Keys() []DrawCmdSortingKey {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	keys := make([]DrawCmdSortingKey, len(q.entries))
	for i, e := range q.entries {
		keys[i] = e.key
	}
	return keys
}

/**
 * @brief Replays the queue against ctx, skipping redundant pipeline and
 * material binds. Pass buffers are bound once before the first draw.
 *
 * Draws whose pipeline cannot be bound are skipped and reported to the skip
 * tracker; the rest of the batch still runs. The error is non nil only when
 * the tracker escalates.
 */
func (q *DrawCmdQueue) Execute(ctx gfx.Ctx, passBuffers []DrawUniformBuffer) (ExecuteStats, error) {
	q.mutex.Lock()
	entries := q.entries
	skips := q.skips
	q.mutex.Unlock()

	var (
		stats        ExecuteStats
		stalled      error
		prevPipeline gfx.Pipeline
		prevMaterial *RenderMaterial
		passBound    bool
	)

	for _, e := range entries {
		cmd := e.cmd
		if cmd == nil || cmd.Pipeline == nil {
			core.LogError("%s: command without pipeline, draw skipped", q.name)
			stats.Skipped++
			continue
		}

		if cmd.Pipeline != prevPipeline {
			if !ctx.BindPipeline(cmd.Pipeline) {
				stats.Skipped++
				if err := skips.Skip(cmd.Pipeline.Name(), q.name); err != nil && stalled == nil {
					stalled = err
				}
				continue
			}
			stats.PipelineBinds++
			prevPipeline = cmd.Pipeline
		}

		for i, buffer := range cmd.Vertices.Buffers {
			if buffer == nil {
				break
			}
			ctx.BindVertBuffer(buffer, i, cmd.Vertices.Offsets[i])
		}
		if cmd.Indices.Buffer != nil {
			ctx.BindIndexBuffer(cmd.Indices.Buffer, cmd.Indices.IndexType, cmd.Indices.Offset)
		}

		if !passBound {
			for _, pb := range passBuffers {
				if pb.Buffer == nil {
					continue
				}
				ctx.BindUniformBuffer(gfx.Location{Set: DrawSetPerPass, Binding: pb.Location}, pb.Offset, pb.Range, pb.Buffer)
			}
			passBound = true
		}

		if cmd.Material != nil && cmd.Material != prevMaterial {
			cmd.Material.EnsureVersion(ctx)
			cmd.Material.bindAll(ctx, cmd.Bindings)
			stats.MaterialBinds++
			prevMaterial = cmd.Material
		}

		if cmd.Constants.Buffer != nil {
			c := cmd.Constants
			ctx.BindUniformBuffer(gfx.Location{Set: DrawSetPerDraw, Binding: c.Location}, c.Offset, c.Range, c.Buffer)
		}

		p := cmd.Params
		if cmd.Indices.Buffer != nil {
			if p.IndexCount <= 0 || p.BaseVertex < 0 || p.InstanceCount <= 0 {
				core.LogError("%s: invalid indexed draw (%d indices, base %d, %d instances), draw skipped", q.name, p.IndexCount, p.BaseVertex, p.InstanceCount)
				stats.Skipped++
				continue
			}
			ctx.DrawIndexed(p.IndexCount, p.BaseVertex, p.InstanceCount)
		} else {
			if p.VertexCount <= 0 || p.BaseVertex < 0 || p.InstanceCount <= 0 {
				core.LogError("%s: invalid draw (%d vertices, base %d, %d instances), draw skipped", q.name, p.VertexCount, p.BaseVertex, p.InstanceCount)
				stats.Skipped++
				continue
			}
			ctx.Draw(p.VertexCount, p.BaseVertex, p.InstanceCount)
		}
		stats.Draws++
	}
	return stats, stalled
}
