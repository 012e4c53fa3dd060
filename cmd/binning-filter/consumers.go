package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	binningfilter "github.com/e7canasta/orion-care-sensor/modules/binning-filter"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/fanout"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/framedump"
	"github.com/e7canasta/orion-care-sensor/modules/binning-filter/internal/imageio"
)

// recorder writes every frame it receives to a dump file.
type recorder struct {
	writer *framedump.Writer
	errors int
}

func startRecorder(f *binningfilter.Filter, path string, wg *sync.WaitGroup) (*recorder, error) {
	w, err := framedump.Create(path)
	if err != nil {
		return nil, err
	}
	r := &recorder{writer: w}

	read := f.Subscribe("dump")
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			frame := read()
			if frame == nil {
				return
			}
			if err := r.writer.WriteFrame(toDump(frame)); err != nil {
				r.errors++
				slog.Error("binning-filter: failed to record frame", "error", err, "seq", frame.Seq)
			}
		}
	}()

	slog.Info("binning-filter: recording frames", "path", path)
	return r, nil
}

func (r *recorder) Close() error {
	slog.Info("binning-filter: recording closed",
		"frames", r.writer.Frames(),
		"bytes", r.writer.Bytes(),
		"errors", r.errors,
	)
	return r.writer.Close()
}

func toDump(f *fanout.Frame) framedump.Frame {
	return framedump.Frame{
		Data:      f.Data,
		Width:     f.Width,
		Height:    f.Height,
		Order:     f.Order,
		Algorithm: f.Algorithm,
		Seq:       f.SourceSeq,
		PTS:       f.PTS,
		Timestamp: f.Timestamp,
		TraceID:   f.TraceID,
	}
}

// startSnapshots saves at most one frame per interval as PNG.
func startSnapshots(f *binningfilter.Filter, dir string, interval time.Duration, wg *sync.WaitGroup) {
	read := f.Subscribe("snapshots")

	wg.Add(1)
	go func() {
		defer wg.Done()
		var last time.Time
		for {
			frame := read()
			if frame == nil {
				return
			}
			if time.Since(last) < interval {
				continue
			}
			last = time.Now()

			if err := saveSnapshot(dir, frame); err != nil {
				slog.Error("binning-filter: failed to save snapshot", "error", err, "seq", frame.SourceSeq)
			}
		}
	}()

	slog.Info("binning-filter: snapshots enabled", "directory", dir, "interval", interval)
}

func saveSnapshot(dir string, frame *fanout.Frame) error {
	img, err := imageio.ToRGBA(frame.Data, frame.Width, frame.Height, frame.Order == "BGR")
	if err != nil {
		return err
	}

	name := fmt.Sprintf("frame_%06d_%s_%s.png",
		frame.SourceSeq,
		frame.Algorithm,
		frame.Timestamp.Format("20060102_150405.000"),
	)
	return imageio.Save(filepath.Join(dir, name), img, 0)
}
