package processing

import (
	"sync"
	"testing"

	"sleepywoodpecker/adc-sampler/internal/adc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(vs ...int32) []adc.CalibratedValue {
	out := make([]adc.CalibratedValue, len(vs))
	for i, v := range vs {
		out[i] = adc.CalibratedValue(v)
	}
	return out
}

func TestNewSampleBufferRejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		b, err := NewSampleBuffer(c)
		assert.Nil(t, b)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestBufferOverwritesOldest(t *testing.T) {
	b, err := NewSampleBuffer(4)
	require.NoError(t, err)

	for _, v := range values(10, 20, 30, 40, 50) {
		b.Write(v)
	}

	b.View(func(slots []adc.CalibratedValue, nextIndex int, wrapped bool) {
		assert.Equal(t, values(50, 20, 30, 40), slots)
		assert.Equal(t, 1, nextIndex)
		assert.True(t, wrapped)
	})
	assert.Equal(t, 1, b.NextIndex())
	assert.Equal(t, values(20, 30, 40, 50), b.Snapshot(nil))

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, adc.CalibratedValue(50), latest)
}

func TestBufferFillsAndWraps(t *testing.T) {
	b, err := NewSampleBuffer(DefaultBufferCapacity)
	require.NoError(t, err)

	for _, v := range values(1000, 0, -1000) {
		b.Write(v)
	}
	assert.Equal(t, 3, b.NextIndex())
	b.View(func(slots []adc.CalibratedValue, _ int, wrapped bool) {
		assert.Equal(t, adc.CalibratedValue(1000), slots[0])
		assert.Equal(t, adc.CalibratedValue(-1000), slots[2])
		assert.False(t, wrapped)
	})

	for i := 3; i < DefaultBufferCapacity; i++ {
		b.Write(adc.CalibratedValue(i))
	}
	assert.Equal(t, 0, b.NextIndex())
	assert.Len(t, b.Snapshot(nil), DefaultBufferCapacity)
}

func TestBufferRetainsMostRecentInCyclicOrder(t *testing.T) {
	for capacity := 1; capacity <= 8; capacity++ {
		for writes := 0; writes <= 3*capacity+1; writes++ {
			b, err := NewSampleBuffer(capacity)
			require.NoError(t, err)

			var written []adc.CalibratedValue
			for i := 0; i < writes; i++ {
				v := adc.CalibratedValue(i*7 - 11)
				pos := b.Write(v)
				assert.Equal(t, i%capacity, pos)
				written = append(written, v)
			}

			keep := min(writes, capacity)
			var want []adc.CalibratedValue
			want = append(want, written[len(written)-keep:]...)
			assert.Equal(t, want, b.Snapshot(nil), "capacity %d writes %d", capacity, writes)
			assert.Equal(t, writes%capacity, b.NextIndex(), "capacity %d writes %d", capacity, writes)
			assert.Equal(t, capacity, b.Capacity())
		}
	}
}

func TestBufferRoundTrip(t *testing.T) {
	b, err := NewSampleBuffer(3)
	require.NoError(t, err)

	for _, v := range values(-2147483648, 2147483647, 0, -1) {
		pos := b.Write(v)
		b.View(func(slots []adc.CalibratedValue, _ int, _ bool) {
			assert.Equal(t, v, slots[pos])
		})
	}
}

func TestBufferEmpty(t *testing.T) {
	b, err := NewSampleBuffer(4)
	require.NoError(t, err)

	_, ok := b.Latest()
	assert.False(t, ok)
	assert.Empty(t, b.Snapshot(nil))
}

func TestBufferReset(t *testing.T) {
	b, err := NewSampleBuffer(2)
	require.NoError(t, err)
	b.Write(5)
	b.Write(6)
	b.Write(7)

	b.Reset()
	assert.Equal(t, 0, b.NextIndex())
	assert.Empty(t, b.Snapshot(nil))
	b.View(func(slots []adc.CalibratedValue, _ int, _ bool) {
		assert.Equal(t, values(0, 0), slots)
	})
}

// Every value written has all four bytes equal; a torn write would show up
// as a mixed pattern.
func patterned(k int) adc.CalibratedValue {
	b := int32(k%127 + 1)
	return adc.CalibratedValue(b | b<<8 | b<<16 | b<<24)
}

func isPatterned(v adc.CalibratedValue) bool {
	b := int32(v) & 0xFF
	return v == adc.CalibratedValue(b|b<<8|b<<16|b<<24)
}

func TestBufferConcurrentWriterReader(t *testing.T) {
	const writes = 20000
	b, err := NewSampleBuffer(16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < writes; i++ {
			b.Write(patterned(i))
		}
	}()

	torn := 0
	readers := 3
	var mu sync.Mutex
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := make([]adc.CalibratedValue, 0, 16)
			for {
				select {
				case <-done:
					return
				default:
				}
				snap = b.Snapshot(snap[:0])
				for _, v := range snap {
					if !isPatterned(v) {
						mu.Lock()
						torn++
						mu.Unlock()
					}
				}
				if v, ok := b.Latest(); ok && !isPatterned(v) {
					mu.Lock()
					torn++
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	assert.Zero(t, torn)
	assert.Equal(t, writes%16, b.NextIndex())
}
