// serialprobe talks to the ADC front end directly and prints what it sends
// back, for checking the serial link without running the sampler.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"sleepywoodpecker/adc-sampler/internal/adc"
	rserial "sleepywoodpecker/adc-sampler/internal/rSerial"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		portName string
		baudRate int
		channel  uint8
		count    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:          "serialprobe",
		Short:        "Read raw samples from the serial ADC front end",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			drv, link, err := adc.OpenSerialDriver(portName, baudRate, logger)
			if err != nil {
				return err
			}
			defer link.Close()

			if err := drv.InitUnit(adc.Unit1); err != nil {
				return err
			}
			cfg := adc.ChannelConfig{Attenuation: adc.Atten12dB}
			if err := drv.ConfigureChannel(adc.Channel(channel), cfg); err != nil {
				return err
			}

			prev := -1
			for i := 0; i < count; i++ {
				raw, err := drv.ReadRaw(adc.Channel(channel))
				if err != nil {
					var oosError *rserial.OutOfSyncError
					if errors.As(err, &oosError) {
						fmt.Printf("%4d out of sync: %v\n", i, oosError.ByteSequence)
						prev = -1
						continue
					}
					return err
				}

				delta := ""
				if prev >= 0 {
					delta = fmt.Sprintf(" (%+d)", int(raw)-prev)
				}
				fmt.Printf("%4d raw=%d%s\n", i, raw, delta)
				prev = int(raw)

				time.Sleep(interval)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&portName, "port", "p", "/dev/ttyUSB0", "Serial port of the front end")
	cmd.Flags().IntVarP(&baudRate, "baud", "b", 460800, "Baud rate")
	cmd.Flags().Uint8VarP(&channel, "channel", "c", 6, "ADC channel")
	cmd.Flags().IntVarP(&count, "count", "n", 20, "Number of reads")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 10*time.Millisecond, "Delay between reads")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
