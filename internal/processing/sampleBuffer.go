package processing

import (
	"errors"
	"sync"

	"sleepywoodpecker/adc-sampler/internal/adc"
)

// DefaultBufferCapacity holds 2.56 s of samples at the default 10 ms period.
const DefaultBufferCapacity = 256

var ErrInvalidCapacity = errors.New("buffer capacity must be positive")

// SampleBuffer is a fixed-capacity ring of calibrated samples. Once full,
// each write overwrites the oldest slot. The sampling task is the only
// writer; readers go through the guarded accessors below.
//
// There is no valid-sample count: before the first wrap, slots at and
// after nextIndex were never written and are treated as absent.
type SampleBuffer struct {
	samples   []adc.CalibratedValue
	nextIndex int
	wrapped   bool
	mu        sync.Mutex
}

// NewSampleBuffer allocates all storage up front; the buffer never grows.
func NewSampleBuffer(capacity int) (*SampleBuffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &SampleBuffer{
		samples: make([]adc.CalibratedValue, capacity),
	}, nil
}

// Write stores v at the cursor, advances it modulo capacity and returns the
// slot that was written.
func (b *SampleBuffer) Write(v adc.CalibratedValue) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos := b.nextIndex
	b.samples[pos] = v
	b.nextIndex = (pos + 1) % len(b.samples)
	if b.nextIndex == 0 {
		b.wrapped = true
	}
	return pos
}

// View runs fn with the guard held. fn gets direct access to the slots and
// must not keep the slice after returning or call back into the buffer.
func (b *SampleBuffer) View(fn func(slots []adc.CalibratedValue, nextIndex int, wrapped bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn(b.samples, b.nextIndex, b.wrapped)
}

// Snapshot appends the logically present samples to dst, oldest first, and
// returns the extended slice.
func (b *SampleBuffer) Snapshot(dst []adc.CalibratedValue) []adc.CalibratedValue {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.wrapped {
		return append(dst, b.samples[:b.nextIndex]...)
	}
	dst = append(dst, b.samples[b.nextIndex:]...)
	return append(dst, b.samples[:b.nextIndex]...)
}

// Latest returns the most recent sample, or false if nothing was written yet.
func (b *SampleBuffer) Latest() (adc.CalibratedValue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.wrapped && b.nextIndex == 0 {
		return 0, false
	}
	n := len(b.samples)
	return b.samples[(b.nextIndex-1+n)%n], true
}

func (b *SampleBuffer) NextIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.nextIndex
}

func (b *SampleBuffer) Capacity() int {
	return len(b.samples)
}

// Reset zeroes every slot and the cursor.
func (b *SampleBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.samples)
	b.nextIndex = 0
	b.wrapped = false
}
