// Package framedump records binned frames to disk and reads them back, so a
// run can be compared byte for byte against reference output.
//
// File layout: the 5-byte header "BINF" + version, then one record per
// frame. Each record is a 4-byte big-endian length followed by a msgpack
// map; the pixel payload inside it is zstd-compressed.
package framedump

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	magic   = "BINF"
	version = 1

	// maxRecordSize guards against reading garbage as a length prefix.
	maxRecordSize = 256 << 20
)

var (
	// ErrBadHeader is returned when a file does not start with the dump header.
	ErrBadHeader = errors.New("framedump: not a frame dump")

	// ErrCorrupt is returned for truncated or oversized records.
	ErrCorrupt = errors.New("framedump: corrupt record")
)

// Frame is one recorded frame. Data is tightly packed, Width*3 bytes per row.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Order     string
	Algorithm string
	Seq       uint64
	PTS       time.Duration
	Timestamp time.Time
	TraceID   string
}

type record struct {
	Seq       uint64 `msgpack:"seq"`
	PTS       int64  `msgpack:"pts_ns"`
	Timestamp int64  `msgpack:"ts_unix_ns"`
	Width     int    `msgpack:"width"`
	Height    int    `msgpack:"height"`
	Order     string `msgpack:"order"`
	Algorithm string `msgpack:"algorithm,omitempty"`
	TraceID   string `msgpack:"trace_id,omitempty"`
	RawSize   int    `msgpack:"raw_size"`
	Pixels    []byte `msgpack:"zpixels"`
}

// Writer appends frames to a dump.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	enc    *zstd.Encoder
	frames uint64
	bytes  uint64
}

// NewWriter writes the header to w. Close flushes but does not close w.
func NewWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedFastest),
	)
	if err != nil {
		return nil, fmt.Errorf("framedump: zstd encoder: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return nil, fmt.Errorf("framedump: write header: %w", err)
	}
	if err := bw.WriteByte(version); err != nil {
		return nil, fmt.Errorf("framedump: write header: %w", err)
	}

	return &Writer{w: bw, enc: enc}, nil
}

// Create opens path for writing, truncating it. Close closes the file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("framedump: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WriteFrame appends one frame.
func (w *Writer) WriteFrame(f Frame) error {
	if f.Width <= 0 || f.Height <= 0 || len(f.Data) != f.Width*f.Height*3 {
		return fmt.Errorf("framedump: frame %d: %d bytes for %dx%d", f.Seq, len(f.Data), f.Width, f.Height)
	}

	rec := record{
		Seq:       f.Seq,
		PTS:       int64(f.PTS),
		Timestamp: f.Timestamp.UnixNano(),
		Width:     f.Width,
		Height:    f.Height,
		Order:     f.Order,
		Algorithm: f.Algorithm,
		TraceID:   f.TraceID,
		RawSize:   len(f.Data),
		Pixels:    w.enc.EncodeAll(f.Data, nil),
	}

	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("framedump: marshal frame %d: %w", f.Seq, err)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("framedump: write frame %d: %w", f.Seq, err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("framedump: write frame %d: %w", f.Seq, err)
	}

	w.frames++
	w.bytes += uint64(len(payload) + len(prefix))
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() uint64 { return w.frames }

// Bytes returns the number of record bytes written, excluding the header.
func (w *Writer) Bytes() uint64 { return w.bytes }

// Close flushes buffered records and releases the encoder.
func (w *Writer) Close() error {
	err := w.w.Flush()
	w.enc.Close()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("framedump: close: %w", err)
	}
	return nil
}

// Reader iterates over a dump.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	dec    *zstd.Decoder
}

// NewReader validates the header of r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var hdr [len(magic) + 1]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if string(hdr[:len(magic)]) != magic {
		return nil, ErrBadHeader
	}
	if hdr[len(magic)] != version {
		return nil, fmt.Errorf("%w: version %d", ErrBadHeader, hdr[len(magic)])
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("framedump: zstd decoder: %w", err)
	}

	return &Reader{r: br, dec: dec}, nil
}

// Open opens a dump file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framedump: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxRecordSize {
		return Frame{}, fmt.Errorf("%w: record of %d bytes", ErrCorrupt, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var rec record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	data, err := r.dec.DecodeAll(rec.Pixels, make([]byte, 0, rec.RawSize))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: frame %d pixels: %v", ErrCorrupt, rec.Seq, err)
	}
	if len(data) != rec.Width*rec.Height*3 {
		return Frame{}, fmt.Errorf("%w: frame %d: %d bytes for %dx%d", ErrCorrupt, rec.Seq, len(data), rec.Width, rec.Height)
	}

	return Frame{
		Data:      data,
		Width:     rec.Width,
		Height:    rec.Height,
		Order:     rec.Order,
		Algorithm: rec.Algorithm,
		Seq:       rec.Seq,
		PTS:       time.Duration(rec.PTS),
		Timestamp: time.Unix(0, rec.Timestamp),
		TraceID:   rec.TraceID,
	}, nil
}

// Close releases the decoder and, for Open, the file.
func (r *Reader) Close() error {
	r.dec.Close()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
