package telemetry

import (
	"time"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// ReadingBuffer is a bounded, time-windowed buffer of recent fuel-bearing
// readings for one vehicle. It backs the boundary resolver: for a transition
// at device time T it returns the reading whose device time is closest to T,
// regardless of arrival order.
type ReadingBuffer struct {
	capacity int
	window   time.Duration
	readings []models.TelemetryReading
}

// NewReadingBuffer builds a buffer keeping at most capacity readings within window.
func NewReadingBuffer(capacity int, window time.Duration) *ReadingBuffer {
	if capacity <= 0 {
		capacity = 64
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &ReadingBuffer{
		capacity: capacity,
		window:   window,
		readings: make([]models.TelemetryReading, 0, capacity),
	}
}

// Window returns the buffer's lookback horizon.
func (b *ReadingBuffer) Window() time.Duration {
	return b.window
}

// Add stores a reading. Readings without fuel data are ignored; the buffer
// exists only for boundary-fuel resolution.
func (b *ReadingBuffer) Add(r models.TelemetryReading) {
	if !r.HasFuel {
		return
	}
	b.readings = append(b.readings, r)
	b.prune()
}

// prune drops readings outside the window relative to the newest device time,
// then enforces the capacity bound by dropping the oldest device times.
func (b *ReadingBuffer) prune() {
	var newest time.Time
	for _, r := range b.readings {
		if r.DeviceTime.After(newest) {
			newest = r.DeviceTime
		}
	}
	cutoff := newest.Add(-b.window)

	kept := b.readings[:0]
	for _, r := range b.readings {
		if !r.DeviceTime.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	b.readings = kept

	for len(b.readings) > b.capacity {
		oldest := 0
		for i, r := range b.readings {
			if r.DeviceTime.Before(b.readings[oldest].DeviceTime) {
				oldest = i
			}
		}
		b.readings = append(b.readings[:oldest], b.readings[oldest+1:]...)
	}
}

// ClosestTo returns the reading with minimal |device_time - anchor| within
// the window horizon. The boolean is false when no reading qualifies, in
// which case the caller must record the boundary as unavailable.
func (b *ReadingBuffer) ClosestTo(anchor time.Time) (models.TelemetryReading, bool) {
	var (
		best     models.TelemetryReading
		bestDist time.Duration
		found    bool
	)
	for _, r := range b.readings {
		dist := absDuration(r.DeviceTime.Sub(anchor))
		if dist > b.window {
			continue
		}
		if !found || dist < bestDist {
			best = r
			bestDist = dist
			found = true
		}
	}
	return best, found
}

// Len returns the number of buffered readings.
func (b *ReadingBuffer) Len() int {
	return len(b.readings)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
