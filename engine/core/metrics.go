package core

import "sync"

const AVG_COUNT uint8 = 30

// FrameSample is what a single frame reports to the metrics.
type FrameSample struct {
	// Seconds spent on the frame.
	Elapsed float64
	Draws   int
	Skipped int
}

// FrameMetrics keeps a rolling frame time average, the FPS over the last
// second and draw counters for the last frame and in total.
type FrameMetrics struct {
	mutex sync.Mutex

	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAVG              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64

	lastDraws    int
	lastSkipped  int
	totalDraws   uint64
	totalSkipped uint64
	totalFrames  uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{}
}

func (m *FrameMetrics) Update(sample FrameSample) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Calculate frame ms average
	frameMS := sample.Elapsed * 1000.0
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += m.msTimes[i]
		}
		m.msAVG = sum / float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Calculate frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
	m.frames++

	m.lastDraws = sample.Draws
	m.lastSkipped = sample.Skipped
	m.totalDraws += uint64(sample.Draws)
	m.totalSkipped += uint64(sample.Skipped)
	m.totalFrames++
}

// Frame returns the FPS and the average frame time in ms.
func (m *FrameMetrics) Frame() (float64, float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.fps, m.msAVG
}

// Draws returns the draw and skip counts of the last frame.
func (m *FrameMetrics) Draws() (int, int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastDraws, m.lastSkipped
}

func (m *FrameMetrics) Totals() (frames, draws, skipped uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.totalFrames, m.totalDraws, m.totalSkipped
}
