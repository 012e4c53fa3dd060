package main

import (
	"fmt"
	"time"

	binningfilter "github.com/e7canasta/orion-care-sensor/modules/binning-filter"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/config"
)

func printBanner(cfg *config.Config) {
	source := cfg.Source.URI
	if source == "" {
		source = "videotestsrc (" + cfg.Source.Pattern + ")"
	}
	contrast := "100/100/100"
	if c := cfg.Binning.Contrast; c != nil {
		contrast = fmt.Sprintf("%d/%d/%d", c.R, c.G, c.B)
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║          Binning Filter - Orion 2.0 Module               ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Instance:      %s\n", cfg.InstanceID)
	fmt.Printf("  Source:        %s\n", source)
	fmt.Printf("  Format:        %s\n", cfg.Source.Format)
	fmt.Printf("  Algorithm:     %s\n", valueOr(cfg.Binning.Algorithm, "rgb"))
	fmt.Printf("  Bin Size:      %d\n", max(cfg.Binning.BinSize, 1))
	fmt.Printf("  Resize:        %v\n", cfg.Binning.Resize)
	fmt.Printf("  Black R/G/B:   %d/%d/%d\n", cfg.Binning.Black.R, cfg.Binning.Black.G, cfg.Binning.Black.B)
	fmt.Printf("  Contrast R/G/B: %s\n", contrast)
	fmt.Printf("  Sink:          %s\n", cfg.Sink)
	if cfg.Dump.Path != "" {
		fmt.Printf("  Dump:          %s\n", cfg.Dump.Path)
	}
	if cfg.MQTT.Broker != "" {
		fmt.Printf("  MQTT:          %s (%s)\n", cfg.MQTT.Broker, cfg.MQTT.Topics.Control)
	}
	fmt.Printf("\n")
}

func printStats(s binningfilter.FilterStats) {
	e := s.Engine

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Binning Statistics (Uptime: %s)\n", e.Uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Algorithm:          %s (N=%d, resize=%v)\n", e.Algorithm, e.BinSize, e.Resize)
	fmt.Printf("│ Frames Seen:        %6d frames\n", s.Frames)
	fmt.Printf("│ Frames Processed:   %6d frames\n", e.FramesProcessed)
	fmt.Printf("│ Frames Skipped:     %6d frames (no-op settings)\n", e.FramesSkipped)
	fmt.Printf("│ Independent/Chroma: %6d / %d\n", e.Independent, e.Chroma)
	if e.Plain > 0 || e.Resized > 0 {
		fmt.Printf("│ Plain/Resized:      %6d / %d\n", e.Plain, e.Resized)
	}
	fmt.Printf("│ Kernel Latency:     %6.2f ms mean, %.2f p95, %.2f max\n", e.LatencyMeanMS, e.LatencyP95MS, e.LatencyMaxMS)
	fmt.Printf("│ Reconnects:         %6d\n", s.Reconnects)
	if s.Fanout.Published > 0 {
		fmt.Printf("│ Frames Published:   %6d (inbox drops %d)\n", s.Fanout.Published, s.Fanout.InboxDrops)
	}

	busErrors := uint64(0)
	for _, n := range s.BusErrors {
		busErrors += n
	}
	if e.FrameErrors > 0 || e.FormatErrors > 0 || busErrors > 0 {
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Error Telemetry\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Frame Errors:       %6d\n", e.FrameErrors)
		fmt.Printf("│ Format Errors:      %6d\n", e.FormatErrors)
		fmt.Printf("│ Network Errors:     %6d\n", s.BusErrors["network"])
		fmt.Printf("│ Codec Errors:       %6d\n", s.BusErrors["codec"])
		fmt.Printf("│ Auth Errors:        %6d\n", s.BusErrors["auth"])
		fmt.Printf("│ Unknown Errors:     %6d\n", s.BusErrors["unknown"])
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

// statusMap is the get_status payload.
func statusMap(s binningfilter.FilterStats, cfg binningfilter.Config) map[string]interface{} {
	return map[string]interface{}{
		"config":           cfg,
		"uptime_s":         int64(s.Engine.Uptime.Seconds()),
		"frames_seen":      s.Frames,
		"frames_processed": s.Engine.FramesProcessed,
		"frames_skipped":   s.Engine.FramesSkipped,
		"frame_errors":     s.Engine.FrameErrors,
		"format_errors":    s.Engine.FormatErrors,
		"latency_mean_ms":  s.Engine.LatencyMeanMS,
		"latency_p95_ms":   s.Engine.LatencyP95MS,
		"latency_max_ms":   s.Engine.LatencyMaxMS,
		"reconnects":       s.Reconnects,
		"bus_errors":       s.BusErrors,
		"published":        s.Fanout.Published,
	}
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
