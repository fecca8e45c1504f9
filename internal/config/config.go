// Package config loads sampler settings from adcsampler.yaml, the
// environment and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sleepywoodpecker/adc-sampler/internal/adc"
	"sleepywoodpecker/adc-sampler/internal/processing"

	"github.com/spf13/viper"
)

const (
	DeviceSim     = "sim"
	DeviceSerial  = "serial"
	DeviceMCP3008 = "mcp3008"
)

type Settings struct {
	Debug   bool   // true to log every sampling cycle
	LogFile string // path of the JSON log file, empty for console only

	Device struct {
		Kind string // sim, serial or mcp3008

		Serial struct {
			Port     string // serial device path of the front end
			BaudRate int
		}

		SPI struct {
			Port string // periph SPI port name, empty for the first one
			Vref int    // reference voltage in millivolts, 0 disables calibration
		}
	}

	ADC struct {
		Unit        uint8
		Channel     uint8
		Bitwidth    uint8  // 0 for the driver default
		Attenuation string // 0db, 2.5db, 6db or 12db
		Offset      int    // calibration offset in millivolts
	}

	Sampling struct {
		Period         time.Duration // delay between cycles
		BufferCapacity int           // ring buffer slots
	}

	Report struct {
		TelegrafAddr string        // udp host:port, empty disables the reporter
		Interval     time.Duration // time between reports
		Window       int           // most recent samples summarised per report
	}

	Metrics struct {
		Listen string // host:port for /metrics, empty disables it
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("logfile", "adcsampler.log")

	v.SetDefault("device.kind", DeviceSim)
	v.SetDefault("device.serial.port", "/dev/ttyUSB0")
	v.SetDefault("device.serial.baudrate", 460800)
	v.SetDefault("device.spi.port", "")
	v.SetDefault("device.spi.vref", 3300)

	def := adc.DefaultConfig()
	v.SetDefault("adc.unit", uint8(def.Unit))
	v.SetDefault("adc.channel", uint8(def.Channel))
	v.SetDefault("adc.bitwidth", uint8(def.Bitwidth))
	v.SetDefault("adc.attenuation", def.Attenuation.String())
	v.SetDefault("adc.offset", int(def.Offset))

	v.SetDefault("sampling.period", processing.DefaultSamplingPeriod)
	v.SetDefault("sampling.buffercapacity", processing.DefaultBufferCapacity)

	opts := processing.DefaultOptions()
	v.SetDefault("report.telegrafaddr", "")
	v.SetDefault("report.interval", opts.ReportInterval)
	v.SetDefault("report.window", opts.ReportWindow)

	v.SetDefault("metrics.listen", "")
}

// New returns a viper instance with defaults, config file search paths and
// environment overrides (ADCSAMPLER_SAMPLING_PERIOD=20ms, ...) set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("adcsampler")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/adcsampler")
	v.AddConfigPath("$HOME/.adcsampler")
	v.AddConfigPath(".")

	v.SetEnvPrefix("adcsampler")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if one exists and unmarshals into Settings.
// A missing file is not an error; defaults apply.
func Load(v *viper.Viper) (*Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks the values that would otherwise fail later in a less
// obvious way.
func (s *Settings) Validate() error {
	switch s.Device.Kind {
	case DeviceSim, DeviceSerial, DeviceMCP3008:
	default:
		return fmt.Errorf("unknown device kind %q", s.Device.Kind)
	}
	if s.Sampling.Period <= 0 {
		return fmt.Errorf("sampling period must be positive, got %s", s.Sampling.Period)
	}
	if s.Sampling.BufferCapacity <= 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", s.Sampling.BufferCapacity)
	}
	if !adc.Bitwidth(s.ADC.Bitwidth).Valid() {
		return fmt.Errorf("bitwidth must be 0 or 9..13, got %d", s.ADC.Bitwidth)
	}
	if _, err := adc.ParseAttenuation(s.ADC.Attenuation); err != nil {
		return err
	}
	if s.Report.TelegrafAddr != "" && s.Report.Interval <= 0 {
		return fmt.Errorf("report interval must be positive, got %s", s.Report.Interval)
	}
	return nil
}

// PipelineOptions converts validated settings into pipeline options.
func (s *Settings) PipelineOptions() (processing.Options, error) {
	atten, err := adc.ParseAttenuation(s.ADC.Attenuation)
	if err != nil {
		return processing.Options{}, err
	}
	return processing.Options{
		ADC: adc.Config{
			Unit:        adc.Unit(s.ADC.Unit),
			Channel:     adc.Channel(s.ADC.Channel),
			Bitwidth:    adc.Bitwidth(s.ADC.Bitwidth),
			Attenuation: atten,
			Offset:      adc.Millivolts(s.ADC.Offset),
		},
		Period:         s.Sampling.Period,
		BufferCapacity: s.Sampling.BufferCapacity,
		ReportInterval: s.Report.Interval,
		ReportWindow:   s.Report.Window,
	}, nil
}
