package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidatesArguments(t *testing.T) {
	_, err := NewJobSystem(0, 4)
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = NewJobSystem(2, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobsRunWithCallbacks(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var ran, completed, failed, finished atomic.Int32
	for i := 0; i < 20; i++ {
		fail := i%4 == 0
		require.NoError(t, js.Submit(JobTask{
			Name: "work",
			Run: func() error {
				ran.Add(1)
				if fail {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete:           func() { completed.Add(1) },
			OnFailure:            func(error) { failed.Add(1) },
			OnCompletionCallback: func() { finished.Add(1) },
		}))
	}
	require.NoError(t, js.Shutdown())

	assert.Equal(t, int32(20), ran.Load())
	assert.Equal(t, int32(15), completed.Load())
	assert.Equal(t, int32(5), failed.Load())
	assert.Equal(t, int32(20), finished.Load())
}

func TestPanickingJobReportsFailure(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)

	var got error
	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, js.Submit(JobTask{
		Name:      "panics",
		Run:       func() error { panic("lost") },
		OnFailure: func(err error) { got = err; wg.Done() },
	}))
	require.NoError(t, js.Submit(JobTask{
		Name:      "empty",
		OnFailure: func(error) { wg.Done() },
	}))
	wg.Wait()

	require.Error(t, got)
	assert.Contains(t, got.Error(), "lost")
	require.NoError(t, js.Shutdown())
}

func TestSubmitAfterShutdown(t *testing.T) {
	js, err := NewJobSystem(2, 2)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())

	err = js.Submit(JobTask{Name: "late", Run: func() error { return nil }})
	assert.ErrorIs(t, err, ErrJobSystemClosed)
}
