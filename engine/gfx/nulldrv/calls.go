package nulldrv

import "sync"

// Recorded operation names.
const (
	OpUpdateVertBuffer    = "update_vert_buffer"
	OpUpdateIndexBuffer   = "update_index_buffer"
	OpUpdateUniformBuffer = "update_uniform_buffer"
	OpUpdateStorageBuffer = "update_storage_buffer"
	OpUpdateTexture2d     = "update_texture_2d"
	OpUpdateDescSet       = "update_desc_set"
	OpMapBuffer           = "map_buffer"
	OpUnmapBuffer         = "unmap_buffer"
	OpBeginRenderPass     = "begin_render_pass"
	OpEndRenderPass       = "end_render_pass"
	OpViewport            = "viewport"
	OpBindPipeline        = "bind_pipeline"
	OpBindVertBuffer      = "bind_vert_buffer"
	OpBindIndexBuffer     = "bind_index_buffer"
	OpBindUniformBuffer   = "bind_uniform_buffer"
	OpBindStorageBuffer   = "bind_storage_buffer"
	OpBindTexture         = "bind_texture"
	OpBindDescSet         = "bind_desc_set"
	OpDraw                = "draw"
	OpDrawIndexed         = "draw_indexed"
	OpBeginFrame          = "begin_frame"
	OpEndFrame            = "end_frame"
	OpBeginLabel          = "begin_label"
	OpEndLabel            = "end_label"
	OpExecute             = "execute"
	OpPrepareWindow       = "prepare_window"
	OpSwapBuffers         = "swap_buffers"
	OpFlush               = "flush"
	OpShutdown            = "shutdown"
	OpMakeDescSet         = "make_desc_set"
	OpMakePipeline        = "make_pipeline"
	OpDestroy             = "destroy"
)

type Call struct {
	Op   string
	Args []any
}

type callLog struct {
	mutex sync.Mutex
	calls []Call
}

func (l *callLog) record(op string, args ...any) {
	l.mutex.Lock()
	l.calls = append(l.calls, Call{Op: op, Args: args})
	l.mutex.Unlock()
}

// Calls returns a snapshot of every recorded call in order.
func (l *callLog) Calls() []Call {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// Ops returns the recorded operation names in order.
func (l *callLog) Ops() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	out := make([]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.Op
	}
	return out
}

func (l *callLog) Count(op string) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Filter returns the calls of a single operation in order.
func (l *callLog) Filter(op string) []Call {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var out []Call
	for _, c := range l.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (l *callLog) Reset() {
	l.mutex.Lock()
	l.calls = nil
	l.mutex.Unlock()
}
