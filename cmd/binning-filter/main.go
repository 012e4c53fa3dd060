// Command binning-filter runs the binning engine inside a GStreamer
// pipeline, with optional MQTT control, frame recording and snapshots.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	binningfilter "github.com/e7canasta/orion-care-sensor/modules/binning-filter"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/control"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/pipeline"
)

const version = "v0.1.0"

func main() {
	opts, set, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("binning-filter %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := buildConfig(opts, set)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	binning, err := cfg.Binning.Filter()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if cfg.Snapshots.Dir != "" {
		if err := os.MkdirAll(cfg.Snapshots.Dir, 0755); err != nil {
			log.Fatalf("Failed to create snapshot directory: %v", err)
		}
	}

	printBanner(cfg)

	filter, err := binningfilter.NewFilter(binningfilter.FilterConfig{
		Pipeline: pipeline.Config{
			URI:     cfg.Source.URI,
			Pattern: cfg.Source.Pattern,
			Format:  cfg.Source.Format,
			Width:   cfg.Source.Width,
			Height:  cfg.Source.Height,
			FPS:     cfg.Source.FPS,
			Sink:    cfg.Sink,
		},
		Binning: binning,
		Reconnect: pipeline.ReconnectConfig{
			MaxRetries:    cfg.Reconnect.MaxRetries,
			RetryDelay:    time.Duration(cfg.Reconnect.InitialDelayMS) * time.Millisecond,
			MaxRetryDelay: time.Duration(cfg.Reconnect.MaxDelayMS) * time.Millisecond,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create filter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Consumers subscribe before Start so no early frames are missed.
	var consumers sync.WaitGroup
	var rec *recorder
	if cfg.Dump.Path != "" {
		rec, err = startRecorder(filter, cfg.Dump.Path, &consumers)
		if err != nil {
			log.Fatalf("Failed to open dump: %v", err)
		}
	}
	if cfg.Snapshots.Dir != "" {
		startSnapshots(filter, cfg.Snapshots.Dir, time.Duration(cfg.Snapshots.IntervalS)*time.Second, &consumers)
	}

	if err := filter.Start(ctx); err != nil {
		log.Fatalf("Failed to start filter: %v", err)
	}

	var client mqtt.Client
	var handler *control.Handler
	if cfg.MQTT.Broker != "" {
		client, handler = startControl(ctx, cfg, filter)
	}

	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	var ticks <-chan time.Time
	if opts.statsInterval > 0 {
		ticker := time.NewTicker(time.Duration(opts.statsInterval) * time.Second)
		defer ticker.Stop()
		ticks = ticker.C
	}

loop:
	for {
		select {
		case <-sigChan:
			fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
			break loop
		case <-filter.Done():
			if err := filter.Err(); err != nil {
				slog.Error("binning-filter: pipeline failed", "error", err)
			}
			break loop
		case <-ticks:
			printStats(filter.Stats())
			if handler != nil {
				handler.PublishStatus()
			}
		}
	}

	shutdown(cfg, filter, handler, client, rec, &consumers)
	cancel()

	finalStats := filter.Stats()
	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", finalStats.Engine.Uptime.Round(time.Second))
	fmt.Printf("  Frames Seen:        %d frames\n", finalStats.Frames)
	fmt.Printf("  Frames Processed:   %d frames\n", finalStats.Engine.FramesProcessed)
	fmt.Printf("  Frames Skipped:     %d frames\n", finalStats.Engine.FramesSkipped)
	fmt.Printf("  Format Errors:      %d\n", finalStats.Engine.FormatErrors)
	fmt.Printf("  Mean Latency:       %.2f ms\n", finalStats.Engine.LatencyMeanMS)
	fmt.Printf("  Reconnection Count: %d\n", finalStats.Reconnects)
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")

	if err := filter.Err(); err != nil {
		os.Exit(1)
	}
}

func startControl(ctx context.Context, cfg *config.Config, filter *binningfilter.Filter) (mqtt.Client, *control.Handler) {
	client, err := control.Connect(cfg.MQTT.Broker, cfg.InstanceID)
	if err != nil {
		slog.Warn("binning-filter: control plane disabled", "error", err)
		return nil, nil
	}

	engine := filter.Engine()
	handler := control.NewHandler(client, control.Topics{
		Control: cfg.MQTT.Topics.Control,
		Status:  cfg.MQTT.Topics.Status,
	}, cfg.MQTT.QoS, control.Callbacks{
		OnSetConfig: engine.Update,
		OnGetStatus: func() map[string]interface{} {
			return statusMap(filter.Stats(), engine.Config())
		},
		OnResetStats: engine.ResetStats,
	})

	if err := handler.Start(ctx); err != nil {
		slog.Warn("binning-filter: control plane disabled", "error", err)
		client.Disconnect(250)
		return nil, nil
	}
	return client, handler
}

func shutdown(cfg *config.Config, filter *binningfilter.Filter, handler *control.Handler, client mqtt.Client, rec *recorder, consumers *sync.WaitGroup) {
	slog.Info("binning-filter: stopping")

	timeout := time.Duration(cfg.ShutdownTimeoutS) * time.Second
	done := make(chan struct{})
	go func() {
		defer close(done)
		if handler != nil {
			handler.Stop()
		}
		if client != nil {
			client.Disconnect(250)
		}
		if err := filter.Stop(); err != nil {
			slog.Error("binning-filter: error stopping filter", "error", err)
		}
		consumers.Wait()
		if rec != nil {
			if err := rec.Close(); err != nil {
				slog.Error("binning-filter: error closing dump", "error", err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("binning-filter: shutdown timed out", "timeout", timeout)
	}
}
