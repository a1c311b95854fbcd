package render

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/anima-gfx/engine/core"
)

type SkipMode string

const (
	// SkipModeLog logs every skipped draw.
	SkipModeLog SkipMode = "log"
	// SkipModeRateLimited logs the first skip of a pipeline, then every Every-th one.
	SkipModeRateLimited SkipMode = "rate_limited"
	// SkipModeEscalate logs every skip and fails the frame once a pipeline
	// was skipped EscalateAfter frames in a row.
	SkipModeEscalate SkipMode = "escalate"
)

/** @brief What to do with draws skipped because their pipeline cannot be bound. */
type SkipPolicy struct {
	Mode          SkipMode `toml:"mode"`
	Every         int      `toml:"every"`
	EscalateAfter int      `toml:"escalate_after"`
}

func DefaultSkipPolicy() SkipPolicy {
	return SkipPolicy{Mode: SkipModeLog, Every: 60, EscalateAfter: 120}
}

func (p SkipPolicy) Validate() error {
	switch p.Mode {
	case SkipModeLog:
	case SkipModeRateLimited:
		if p.Every < 1 {
			return fmt.Errorf("skip policy %s: every must be at least 1, got %d", p.Mode, p.Every)
		}
	case SkipModeEscalate:
		if p.EscalateAfter < 1 {
			return fmt.Errorf("skip policy %s: escalate_after must be at least 1, got %d", p.Mode, p.EscalateAfter)
		}
	default:
		return fmt.Errorf("unknown skip policy mode %q", p.Mode)
	}
	return nil
}

// SkipTracker applies a SkipPolicy across the passes of one view.
type SkipTracker struct {
	policy SkipPolicy

	mutex  sync.Mutex
	frame  map[string]int
	streak map[string]int
	total  map[string]uint64
}

func NewSkipTracker(policy SkipPolicy) *SkipTracker {
	return &SkipTracker{
		policy: policy,
		frame:  make(map[string]int),
		streak: make(map[string]int),
		total:  make(map[string]uint64),
	}
}

func (t *SkipTracker) Policy() SkipPolicy {
	return t.policy
}

// Skip records one skipped draw. It returns ErrPipelineStalled the first
// time in a frame a pipeline reaches the escalation threshold.
func (t *SkipTracker) Skip(pipeline, queue string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.frame[pipeline]++
	t.total[pipeline]++
	n := t.total[pipeline]

	switch t.policy.Mode {
	case SkipModeRateLimited:
		if n == 1 || n%uint64(t.policy.Every) == 0 {
			core.LogWarn("%s: pipeline %s not ready, draw skipped (%d skips so far)", queue, pipeline, n)
		}
	default:
		core.LogWarn("%s: pipeline %s not ready, draw skipped", queue, pipeline)
	}

	if t.policy.Mode == SkipModeEscalate && t.frame[pipeline] == 1 {
		frames := t.streak[pipeline] + 1
		if frames >= t.policy.EscalateAfter {
			return fmt.Errorf("%w: %s skipped %d frames in a row", core.ErrPipelineStalled, pipeline, frames)
		}
	}
	return nil
}

// FrameSkips returns the number of draws skipped since the last EndFrame.
func (t *SkipTracker) FrameSkips() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	total := 0
	for _, n := range t.frame {
		total += n
	}
	return total
}

// EndFrame closes the frame: pipelines skipped this frame extend their
// streak, every other streak resets.
func (t *SkipTracker) EndFrame() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for name := range t.streak {
		if t.frame[name] == 0 {
			delete(t.streak, name)
		}
	}

	var stalled []string
	for name := range t.frame {
		t.streak[name]++
		if t.policy.Mode == SkipModeEscalate && t.streak[name] >= t.policy.EscalateAfter {
			stalled = append(stalled, name)
		}
	}
	clear(t.frame)

	if len(stalled) == 0 {
		return nil
	}
	sort.Strings(stalled)
	errs := make([]error, 0, len(stalled))
	for _, name := range stalled {
		errs = append(errs, fmt.Errorf("%w: %s skipped %d frames in a row", core.ErrPipelineStalled, name, t.streak[name]))
	}
	return errors.Join(errs...)
}
