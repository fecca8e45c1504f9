package processing

import (
	"context"
	"time"

	"sleepywoodpecker/adc-sampler/internal/adc"
	"sleepywoodpecker/adc-sampler/internal/metrics"

	"go.uber.org/zap"
)

// DefaultSamplingPeriod gives a 100 Hz sample rate.
const DefaultSamplingPeriod = 10 * time.Millisecond

// Source is the acquisition capability the sampling task consumes.
// *adc.Device implements it.
type Source interface {
	ReadRaw() (adc.RawSample, error)
	Convert(raw adc.RawSample) (adc.Millivolts, error)
}

// SamplingTask reads one sample per period and appends it to the buffer.
type SamplingTask struct {
	source  Source
	buffer  *SampleBuffer
	period  time.Duration
	logger  *zap.Logger
	metrics *metrics.SamplingMetrics

	// sleep is the per-cycle suspension point; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSamplingTask(source Source, buffer *SampleBuffer, period time.Duration, logger *zap.Logger, m *metrics.SamplingMetrics) *SamplingTask {
	return &SamplingTask{
		source:  source,
		buffer:  buffer,
		period:  period,
		logger:  logger,
		metrics: m,
		sleep:   sleepContext,
	}
}

// Run samples until ctx is cancelled. Errors inside a cycle never stop the
// loop: the cycle's write is skipped and the cadence is kept.
func (s *SamplingTask) Run(ctx context.Context) {
	s.logger.Info("[sampler] sampling task started", zap.Duration("period", s.period), zap.Int("bufferCapacity", s.buffer.Capacity()))

	for {
		s.Cycle()

		if err := s.sleep(ctx, s.period); err != nil {
			s.logger.Info("[sampler] received shutdown signal")
			return
		}
	}
}

// Cycle performs one read-convert-store step. It returns the slot written,
// or -1 if the cycle was skipped.
func (s *SamplingTask) Cycle() int {
	start := time.Now()

	raw, err := s.source.ReadRaw()
	if err != nil {
		s.logger.Warn("[sampler] error reading raw sample, skipping cycle", zap.Error(err))
		s.metrics.RecordError(metrics.StageRead)
		return -1
	}

	mv, err := s.source.Convert(raw)
	if err != nil {
		s.logger.Warn("[sampler] error converting raw sample, skipping cycle", zap.Error(err), zap.Uint16("raw", uint16(raw)))
		s.metrics.RecordError(metrics.StageConvert)
		return -1
	}

	value := adc.Scale(mv)
	pos := s.buffer.Write(value)

	s.logger.Debug("[sampler] stored sample",
		zap.Int32("millivolts", int32(mv)),
		zap.Int32("value", int32(value)),
		zap.Int("position", pos),
	)
	s.metrics.RecordSample(int32(value), pos, time.Since(start))
	return pos
}

// sleepContext blocks for d, or until ctx is done. There is no drift
// correction: each cycle waits a full period after it finishes.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
