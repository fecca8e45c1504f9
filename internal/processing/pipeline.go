package processing

import (
	"context"
	"io"
	"sync"
	"time"

	"sleepywoodpecker/adc-sampler/internal/adc"
	"sleepywoodpecker/adc-sampler/internal/metrics"

	"go.uber.org/zap"
)

type Options struct {
	ADC            adc.Config
	Period         time.Duration
	BufferCapacity int
	ReportInterval time.Duration
	ReportWindow   int
}

func DefaultOptions() Options {
	return Options{
		ADC:            adc.DefaultConfig(),
		Period:         DefaultSamplingPeriod,
		BufferCapacity: DefaultBufferCapacity,
		ReportInterval: 100 * time.Millisecond,
		ReportWindow:   10,
	}
}

// Pipeline owns the device, the buffer and the tasks that share them.
type Pipeline struct {
	opts     Options
	device   *adc.Device
	buffer   *SampleBuffer
	sampler  *SamplingTask
	reporter *Reporter
	logger   *zap.Logger
	metrics  *metrics.SamplingMetrics
}

// NewPipeline initializes the acquisition device and builds the buffer and
// sampling task around it. If initialization fails nothing is built, so no
// task can ever be started.
func NewPipeline(drv adc.Driver, opts Options, logger *zap.Logger, m *metrics.SamplingMetrics) (*Pipeline, error) {
	buffer, err := NewSampleBuffer(opts.BufferCapacity)
	if err != nil {
		return nil, err
	}

	device, err := adc.Initialize(drv, opts.ADC, logger)
	if err != nil {
		return nil, err
	}
	m.SetCalibrationActive(device.Calibrated())

	return &Pipeline{
		opts:    opts,
		device:  device,
		buffer:  buffer,
		sampler: NewSamplingTask(device, buffer, opts.Period, logger, m),
		logger:  logger,
		metrics: m,
	}, nil
}

// AttachReporter adds a consumer task that forwards buffer summaries to sink.
func (p *Pipeline) AttachReporter(sink io.Writer) *Reporter {
	p.reporter = NewReporter(p.opts.ReportInterval, sink, p.buffer, p.opts.ReportWindow, p.logger, p.metrics)
	return p.reporter
}

func (p *Pipeline) Device() *adc.Device {
	return p.device
}

func (p *Pipeline) Buffer() *SampleBuffer {
	return p.buffer
}

func (p *Pipeline) Sampler() *SamplingTask {
	return p.sampler
}

// Run starts the sampling task and the reporter, if attached, and blocks
// until both have returned after ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	cfg := p.device.Config()
	p.logger.Info("[pipeline] starting tasks",
		zap.Uint8("unit", uint8(cfg.Unit)),
		zap.Uint8("channel", uint8(cfg.Channel)),
		zap.Duration("period", p.opts.Period),
		zap.Bool("reporter", p.reporter != nil),
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sampler.Run(ctx)
	}()

	if p.reporter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.reporter.Run(ctx)
		}()
	}

	wg.Wait()
}
