package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/canpulse/canpulse/internal/cliconfig"
	"github.com/canpulse/canpulse/pkg/canpulse"
	"github.com/canpulse/canpulse/pkg/log"
)

const helpDescription = `
Observe a CAN bus, decode frames against a DBC database and periodically
inject a scroll-wheel flick stimulus.

Highlights:
  - Decodes every received frame and logs signal values as structured fields.
  - Watches individual signals per message id (--watch 0x3c2:VCLEFT_swcLeftScrollTicks).
  - Optional MQTT publishing of decoded frames as JSON.
  - Live DBC reload on file change (--watch-dbc).
  - Configure via file, CANPULSE_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  canpulse --dbc model3.dbc --channel can0
  canpulse --dbc model3.dbc --watch 0x3c2:VCLEFT_swcLeftScrollTicks --flick-interval 10s
  canpulse --config $HOME/.canpulse/config.toml --broker tcp://localhost:1883 --topic can/decoded
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "canpulse",
		Short:   "CAN bus observer, decoder and flick stimulus injector",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(fc, &cfg, changed); err != nil {
					return err
				}
			}

			// Env overrides file, flags override env (via changed map).
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			zl := cliconfig.NewLogger(cfg.LogLevel)

			logCfg := cfg
			if logCfg.MQTTPassword != "" {
				logCfg.MQTTPassword = "*****"
			}
			zl.Info().Interface("config", logCfg).Msg("configuration")

			libCfg, err := buildConfig(cfg)
			if err != nil {
				return err
			}

			cp, err := canpulse.New(libCfg,
				canpulse.WithLogger(log.NewZerologAdapterWithLogger(zl)),
			)
			if err != nil {
				return fmt.Errorf("create canpulse: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := cp.Start(ctx); err != nil {
				return fmt.Errorf("start canpulse: %w", err)
			}

			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						status := cp.Status()
						if status == canpulse.StateStopped || status == canpulse.StateCrashed {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case <-sigCh:
				zl.Info().Msg("received signal, stopping...")
			case <-doneCh:
				if cp.Status() == canpulse.StateCrashed {
					zl.Error().Msg("canpulse crashed")
				}
			}

			if err := cp.Stop(); err != nil {
				return fmt.Errorf("stop canpulse: %w", err)
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.canpulse/config.toml)")
	root.Flags().StringVar(&cfg.Channel, "channel", cfg.Channel, "CAN interface name")
	root.Flags().IntVar(&cfg.Bitrate, "bitrate", cfg.Bitrate, "CAN bus bitrate (informational)")
	root.Flags().StringVar(&cfg.DBCFile, "dbc", cfg.DBCFile, "path to DBC signal database")
	root.Flags().BoolVar(&cfg.WatchDBC, "watch-dbc", cfg.WatchDBC, "reload the DBC database on file change")

	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "receive poll interval when idle")

	root.Flags().StringVar(&cfg.FlickMessageID, "flick-id", cfg.FlickMessageID, "flick message id (decimal or hex)")
	root.Flags().StringVar(&cfg.FlickSignal, "flick-signal", cfg.FlickSignal, "flick signal name")
	root.Flags().Int64Var(&cfg.FlickAssert, "flick-assert", cfg.FlickAssert, "signal value for the assert phase")
	root.Flags().Int64Var(&cfg.FlickRelease, "flick-release", cfg.FlickRelease, "signal value for the release phase")
	root.Flags().DurationVar(&cfg.FlickInterval, "flick-interval", cfg.FlickInterval, "base interval between flick cycles")
	root.Flags().DurationVar(&cfg.FlickJitter, "flick-jitter", cfg.FlickJitter, "uniform jitter applied to the flick interval")
	root.Flags().DurationVar(&cfg.PulseGap, "pulse-gap", cfg.PulseGap, "gap between assert and release frames")

	root.Flags().StringArrayVar(&cfg.Watch, "watch", cfg.Watch, "watch entry id:signal[,signal...] (repeatable)")

	root.Flags().StringVar(&cfg.MQTTBroker, "broker", cfg.MQTTBroker, "MQTT broker address host:port (enables publishing)")
	root.Flags().StringVar(&cfg.MQTTTopic, "topic", cfg.MQTTTopic, "MQTT topic for decoded frames")
	root.Flags().StringVar(&cfg.MQTTClientID, "client-id", cfg.MQTTClientID, "MQTT client id")
	root.Flags().StringVar(&cfg.MQTTUsername, "username", cfg.MQTTUsername, "MQTT username")
	root.Flags().StringVar(&cfg.MQTTPassword, "password", cfg.MQTTPassword, "MQTT password")
	root.Flags().IntVar(&cfg.MQTTQoS, "qos", cfg.MQTTQoS, "MQTT publish QoS (0-2)")
	root.Flags().BoolVar(&cfg.MQTTRetain, "retain", cfg.MQTTRetain, "retain published MQTT messages")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "canpulse: %v\n", err)
		os.Exit(1)
	}
}

// buildConfig converts the CLI configuration into the library configuration.
func buildConfig(cfg cliconfig.Config) (canpulse.Config, error) {
	flickID, err := cliconfig.ParseFrameID(cfg.FlickMessageID)
	if err != nil {
		return canpulse.Config{}, err
	}

	var watches []canpulse.Watch
	for _, entry := range cfg.Watch {
		id, signals, err := cliconfig.ParseWatch(entry)
		if err != nil {
			return canpulse.Config{}, err
		}
		watches = append(watches, canpulse.Watch{ID: id, Signals: signals})
	}

	return canpulse.Config{
		Channel:        cfg.Channel,
		Bitrate:        cfg.Bitrate,
		DBCPath:        cfg.DBCFile,
		WatchDBC:       cfg.WatchDBC,
		PollInterval:   cfg.PollInterval,
		FlickMessageID: flickID,
		FlickSignal:    cfg.FlickSignal,
		FlickAssert:    cfg.FlickAssert,
		FlickRelease:   cfg.FlickRelease,
		FlickInterval:  cfg.FlickInterval,
		FlickJitter:    cfg.FlickJitter,
		PulseGap:       cfg.PulseGap,
		Watches:        watches,
		MQTT: canpulse.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			QoS:      byte(cfg.MQTTQoS),
			Retain:   cfg.MQTTRetain,
		},
	}, nil
}
