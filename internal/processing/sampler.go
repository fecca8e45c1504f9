package processing

import (
	"context"
	"fmt"
	"io"
	"time"

	"sleepywoodpecker/adc-sampler/internal/adc"
	"sleepywoodpecker/adc-sampler/internal/metrics"

	"go.uber.org/zap"
)

const SamplingChannelName = "adcsamples"

// Reporter is a consumer task: every interval it snapshots the most recent
// window of samples under the buffer guard and forwards a summary as an
// Influx line to sink (a UDP connection to Telegraf in production).
type Reporter struct {
	interval time.Duration
	sink     io.Writer
	buffer   *SampleBuffer
	window   int
	logger   *zap.Logger
	metrics  *metrics.SamplingMetrics

	snapshot []adc.CalibratedValue
	now      func() time.Time
}

func NewReporter(interval time.Duration, sink io.Writer, buffer *SampleBuffer, window int, logger *zap.Logger, m *metrics.SamplingMetrics) *Reporter {
	if window <= 0 || window > buffer.Capacity() {
		window = buffer.Capacity()
	}
	return &Reporter{
		interval: interval,
		sink:     sink,
		buffer:   buffer,
		window:   window,
		logger:   logger,
		metrics:  m,
		snapshot: make([]adc.CalibratedValue, 0, buffer.Capacity()),
		now:      time.Now,
	}
}

// SampleAndLog sends one report. It returns false if the buffer was still
// empty or the write failed.
func (r *Reporter) SampleAndLog() bool {
	r.snapshot = r.buffer.Snapshot(r.snapshot[:0])
	if len(r.snapshot) == 0 {
		r.metrics.RecordReport("empty")
		return false
	}

	recent := r.snapshot
	if len(recent) > r.window {
		recent = recent[len(recent)-r.window:]
	}

	influxString := FormatInfluxLine(recent, r.now())

	err := r.send(influxString)
	if err != nil {
		r.logger.Warn("[reporter] Error writing data to sink", zap.Error(err))
		r.metrics.RecordReport("error")
		return false
	}
	r.logger.Debug("[reporter] sent report", zap.String("influxString", influxString))
	r.metrics.RecordReport("success")
	return true
}

// Run reports every interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.SampleAndLog()
		case <-ctx.Done():
			r.logger.Info("[reporter] received shutdown signal")
			return
		}
	}
}

// FormatInfluxLine summarises window (oldest first) as one line-protocol
// record. Values are in 0.1 mV units.
func FormatInfluxLine(window []adc.CalibratedValue, ts time.Time) string {
	latest := window[len(window)-1]
	minV, maxV := window[0], window[0]
	var sum int64
	for _, v := range window {
		minV = min(minV, v)
		maxV = max(maxV, v)
		sum += int64(v)
	}
	mean := float64(sum) / float64(len(window))

	return fmt.Sprintf("%s latest=%di,min=%di,max=%di,mean=%.2f,count=%di %d\n",
		SamplingChannelName, latest, minV, maxV, mean, len(window), ts.UnixNano())
}

func (r *Reporter) send(formattedData string) error {
	data := []byte(formattedData)
	totalWritten := 0
	for totalWritten < len(data) {
		n, err := r.sink.Write(data[totalWritten:])
		if err != nil {
			return err
		}
		totalWritten += n
	}
	return nil
}
