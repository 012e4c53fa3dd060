package pipeline

import (
	"strings"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies bus errors for telemetry.
type ErrorCategory int

const (
	ErrCategoryNetwork ErrorCategory = iota
	ErrCategoryCodec
	ErrCategoryAuth
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	authKeywords = []string{
		"unauthorized", "401", "403", "forbidden",
		"authentication", "credentials", "password", "username",
	}
	codecKeywords = []string{
		"codec", "decode", "format", "negotiation", "caps",
		"h264", "h265", "not negotiated", "no decoder", "missing plugin",
	}
	networkKeywords = []string{
		"connection", "timeout", "unreachable", "network", "dns",
		"resolve", "socket", "tcp", "udp", "rtsp", "not found",
		"could not connect", "failed to connect",
	}
)

// ClassifyGStreamerError categorizes a bus error.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return Classify(gerr.Error(), gerr.DebugString())
}

// Classify categorizes an error by message heuristics. Auth is checked
// first, then codec, then network; go-gst does not expose the error domain.
func Classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ErrorCounters counts bus errors per category.
type ErrorCounters struct {
	Network atomic.Uint64
	Codec   atomic.Uint64
	Auth    atomic.Uint64
	Unknown atomic.Uint64
}

// Add increments the counter for category.
func (c *ErrorCounters) Add(category ErrorCategory) {
	switch category {
	case ErrCategoryNetwork:
		c.Network.Add(1)
	case ErrCategoryCodec:
		c.Codec.Add(1)
	case ErrCategoryAuth:
		c.Auth.Add(1)
	default:
		c.Unknown.Add(1)
	}
}

// Snapshot returns the counters keyed by category name.
func (c *ErrorCounters) Snapshot() map[string]uint64 {
	return map[string]uint64{
		ErrCategoryNetwork.String(): c.Network.Load(),
		ErrCategoryCodec.String():   c.Codec.Load(),
		ErrCategoryAuth.String():    c.Auth.Load(),
		ErrCategoryUnknown.String(): c.Unknown.Load(),
	}
}
