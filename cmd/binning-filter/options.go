package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/config"
)

// options holds the command-line flags. Flags that were set explicitly
// override the YAML file.
type options struct {
	configPath    string
	source        string
	pattern       string
	format        string
	width         int
	height        int
	fps           int
	algorithm     string
	binSize       int
	resize        bool
	black         [3]int // r, g, b
	contrast      [3]int
	sink          string
	dump          string
	snapshots     string
	mqttBroker    string
	instanceID    string
	statsInterval int
	debug         bool
	showVersion   bool
}

func parseFlags(args []string) (*options, map[string]bool, error) {
	o := &options{}
	fs := flag.NewFlagSet("binning-filter", flag.ContinueOnError)

	fs.StringVar(&o.configPath, "config", os.Getenv("BINNING_CONFIG"), "YAML configuration file")
	fs.StringVar(&o.source, "source", "", "Source URI: empty for test pattern, rtsp://..., file:///...")
	fs.StringVar(&o.pattern, "pattern", "smpte", "videotestsrc pattern when no source is set")
	fs.StringVar(&o.format, "format", "BGR", "Pixel format: BGR or RGB")
	fs.IntVar(&o.width, "width", 0, "Output width before binning (0 = source size)")
	fs.IntVar(&o.height, "height", 0, "Output height before binning (0 = source size)")
	fs.IntVar(&o.fps, "fps", 0, "Frame rate (0 = source rate)")
	fs.StringVar(&o.algorithm, "algorithm", "rgb", "Binning algorithm: rgb, chroma, test, plain")
	fs.IntVar(&o.binSize, "binsize", 1, "Bin size (1-7)")
	fs.BoolVar(&o.resize, "resize", false, "Decimate to W/N x H/N (rgb algorithm only)")
	fs.IntVar(&o.black[0], "rblack", 0, "Red black level (0-255)")
	fs.IntVar(&o.black[1], "gblack", 0, "Green black level (0-255)")
	fs.IntVar(&o.black[2], "bblack", 0, "Blue black level (0-255)")
	fs.IntVar(&o.contrast[0], "rcontrast", 100, "Red contrast in percent (-1 = average)")
	fs.IntVar(&o.contrast[1], "gcontrast", 100, "Green contrast in percent (-1 = average)")
	fs.IntVar(&o.contrast[2], "bcontrast", 100, "Blue contrast in percent (-1 = average)")
	fs.StringVar(&o.sink, "sink", "auto", "Sink: auto, fake, app")
	fs.StringVar(&o.dump, "dump", "", "Record processed frames to this file")
	fs.StringVar(&o.snapshots, "snapshots", "", "Directory for periodic PNG snapshots")
	fs.StringVar(&o.mqttBroker, "mqtt-broker", os.Getenv("MQTT_BROKER"), "MQTT broker for the control plane (host:port)")
	fs.StringVar(&o.instanceID, "instance-id", envOr("BINNING_INSTANCE_ID", "binning-filter"), "Instance identifier")
	fs.IntVar(&o.statsInterval, "stats-interval", envInt("BINNING_STATS_INTERVAL", 10), "Seconds between stats reports (0 = off)")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&o.showVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if os.Getenv("MQTT_BROKER") != "" {
		set["mqtt-broker"] = true
	}
	if os.Getenv("BINNING_INSTANCE_ID") != "" {
		set["instance-id"] = true
	}

	return o, set, nil
}

// buildConfig loads the YAML file (or defaults) and applies every flag that
// was set explicitly. Without a file, all flags apply.
func buildConfig(o *options, set map[string]bool) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.Parse([]byte("{}"))
		set = allFlags
	}
	if err != nil {
		return nil, err
	}

	apply := func(name string, fn func()) {
		if set[name] {
			fn()
		}
	}

	apply("instance-id", func() { cfg.InstanceID = o.instanceID })
	apply("source", func() { cfg.Source.URI = o.source })
	apply("pattern", func() { cfg.Source.Pattern = o.pattern })
	apply("format", func() { cfg.Source.Format = o.format })
	apply("width", func() { cfg.Source.Width = o.width })
	apply("height", func() { cfg.Source.Height = o.height })
	apply("fps", func() { cfg.Source.FPS = o.fps })
	apply("algorithm", func() { cfg.Binning.Algorithm = o.algorithm })
	apply("binsize", func() { cfg.Binning.BinSize = o.binSize })
	apply("resize", func() { cfg.Binning.Resize = o.resize })
	apply("rblack", func() { cfg.Binning.Black.R = o.black[0] })
	apply("gblack", func() { cfg.Binning.Black.G = o.black[1] })
	apply("bblack", func() { cfg.Binning.Black.B = o.black[2] })
	contrast := func() *config.RGB {
		if cfg.Binning.Contrast == nil {
			cfg.Binning.Contrast = &config.RGB{R: 100, G: 100, B: 100}
		}
		return cfg.Binning.Contrast
	}
	apply("rcontrast", func() { contrast().R = o.contrast[0] })
	apply("gcontrast", func() { contrast().G = o.contrast[1] })
	apply("bcontrast", func() { contrast().B = o.contrast[2] })
	apply("sink", func() { cfg.Sink = o.sink })
	apply("dump", func() { cfg.Dump.Path = o.dump })
	apply("snapshots", func() { cfg.Snapshots.Dir = o.snapshots })
	apply("mqtt-broker", func() { cfg.MQTT.Broker = o.mqttBroker })

	// Topics derive from the instance id; let Validate rebuild them.
	if set["instance-id"] || set["mqtt-broker"] {
		cfg.MQTT.Topics = config.MQTTTopics{}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var allFlags = map[string]bool{
	"instance-id": true, "source": true, "pattern": true, "format": true,
	"width": true, "height": true, "fps": true, "algorithm": true,
	"binsize": true, "resize": true, "rblack": true, "gblack": true,
	"bblack": true, "rcontrast": true, "gcontrast": true, "bcontrast": true,
	"sink": true, "dump": true, "snapshots": true, "mqtt-broker": true,
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
