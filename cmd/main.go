package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sleepywoodpecker/adc-sampler/internal/adc"
	"sleepywoodpecker/adc-sampler/internal/config"
	"sleepywoodpecker/adc-sampler/internal/logger"
	"sleepywoodpecker/adc-sampler/internal/metrics"
	"sleepywoodpecker/adc-sampler/internal/processing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := rootCommand(config.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "adc-sampler",
		Short:         "Sample an analog channel into a ring buffer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(v)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			return run(settings)
		},
	}

	flags := cmd.Flags()
	flags.BoolP("debug", "d", false, "Log every sampling cycle")
	flags.String("device", config.DeviceSim, "Acquisition device: sim, serial or mcp3008")
	flags.String("port", "", "Serial or SPI port of the acquisition device")
	flags.Uint8("channel", uint8(adc.DefaultConfig().Channel), "ADC channel to sample")
	flags.Duration("period", processing.DefaultSamplingPeriod, "Sampling period")
	flags.String("telegraf", "", "Telegraf UDP address for reports, empty to disable")
	flags.String("metrics", "", "Listen address for /metrics, empty to disable")

	for key, flag := range map[string]string{
		"debug":               "debug",
		"device.kind":         "device",
		"device.serial.port":  "port",
		"device.spi.port":     "port",
		"adc.channel":         "channel",
		"sampling.period":     "period",
		"report.telegrafaddr": "telegraf",
		"metrics.listen":      "metrics",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(settings *config.Settings) error {
	// context handler for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// first initialize the main logger
	log, err := logger.NewLogger(settings.LogFile, settings.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	registry := prometheus.NewRegistry()
	samplingMetrics, err := metrics.NewSamplingMetrics(registry)
	if err != nil {
		return err
	}
	if settings.Metrics.Listen != "" {
		srv := serveMetrics(settings.Metrics.Listen, registry, log)
		defer srv.Close()
	}

	drv, closer, err := openDriver(settings, log)
	if err != nil {
		log.Error("[main] acquisition device unavailable", zap.Error(err))
		return err
	}
	defer closer.Close()

	opts, err := settings.PipelineOptions()
	if err != nil {
		return err
	}

	pipeline, err := processing.NewPipeline(drv, opts, log, samplingMetrics)
	if err != nil {
		log.Error("[main] ADC initialization failed, exiting", zap.Error(err))
		return err
	}

	// initialize UDP connection to telegraf
	if settings.Report.TelegrafAddr != "" {
		udpConn, err := dialTelegraf(settings.Report.TelegrafAddr)
		if err != nil {
			log.Error("[main] could not reach telegraf", zap.Error(err), zap.String("addr", settings.Report.TelegrafAddr))
			return err
		}
		defer udpConn.Close()
		pipeline.AttachReporter(udpConn)
	}

	done := make(chan struct{})
	go func() {
		pipeline.Run(ctx)
		close(done)
	}()

	<-sigCh
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		log.Warn("[main] tasks did not stop in time")
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openDriver(settings *config.Settings, log *zap.Logger) (adc.Driver, io.Closer, error) {
	switch settings.Device.Kind {
	case config.DeviceSerial:
		drv, link, err := adc.OpenSerialDriver(settings.Device.Serial.Port, settings.Device.Serial.BaudRate, log)
		if err != nil {
			return nil, nil, err
		}
		return drv, link, nil
	case config.DeviceMCP3008:
		drv, port, err := adc.OpenMCP3008(settings.Device.SPI.Port, adc.Millivolts(settings.Device.SPI.Vref))
		if err != nil {
			return nil, nil, err
		}
		return drv, port, nil
	case config.DeviceSim:
		return adc.NewSimDriver(float64(time.Second) / float64(settings.Sampling.Period)), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown device kind %q", settings.Device.Kind)
}

func dialTelegraf(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp", nil, udpAddr)
}

func serveMetrics(addr string, registry *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("[main] metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
