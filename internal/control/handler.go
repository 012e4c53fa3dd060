// Package control implements the MQTT control plane: runtime
// reconfiguration, status queries and stats reset.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	binningfilter "github.com/e7canasta/orion-care-sensor/modules/binning-filter"
)

// Command names.
const (
	CmdSetConfig  = "set_config"
	CmdGetStatus  = "get_status"
	CmdResetStats = "reset_stats"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Command is a control plane request.
type Command struct {
	Command string          `json:"command"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// Response is published on the status topic for every command.
type Response struct {
	CommandAck string      `json:"command_ack"`
	Status     string      `json:"status"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

// Callbacks connect commands to the filter.
type Callbacks struct {
	OnSetConfig  func(binningfilter.Patch) (binningfilter.Config, error)
	OnGetStatus  func() map[string]interface{}
	OnResetStats func()
}

// Topics are the MQTT topics the handler uses.
type Topics struct {
	Control string
	Status  string
}

// Handler receives commands on the control topic and answers on the status
// topic.
type Handler struct {
	client    mqtt.Client
	topics    Topics
	qos       byte
	callbacks Callbacks
	commands  chan []byte
	done      chan struct{}

	stopOnce sync.Once
	now      func() time.Time
}

// NewHandler creates a handler. client may be nil for offline use; responses
// are then only returned from Handle.
func NewHandler(client mqtt.Client, topics Topics, qos byte, callbacks Callbacks) *Handler {
	return &Handler{
		client:    client,
		topics:    topics,
		qos:       qos,
		callbacks: callbacks,
		commands:  make(chan []byte, 10),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start subscribes to the control topic and processes commands until ctx is
// cancelled or Stop is called.
func (h *Handler) Start(ctx context.Context) error {
	if h.client == nil {
		return fmt.Errorf("control: no mqtt client")
	}

	slog.Info("control: subscribing", "topic", h.topics.Control, "qos", h.qos)

	token := h.client.Subscribe(h.topics.Control, h.qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control: subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control: subscription failed: %w", err)
	}

	go h.processCommands(ctx)

	slog.Info("control: handler started")
	return nil
}

// Stop unsubscribes and ends command processing. Idempotent.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		if h.client != nil && h.client.IsConnected() {
			token := h.client.Unsubscribe(h.topics.Control)
			token.WaitTimeout(2 * time.Second)
		}
		close(h.done)
		slog.Info("control: handler stopped")
	})
}

func (h *Handler) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)

	select {
	case <-h.done:
	case h.commands <- payload:
	default:
		slog.Warn("control: command queue full, dropping command")
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case payload := <-h.commands:
			h.publish(h.Handle(payload))
		}
	}
}

// Handle executes one JSON command and returns its response.
func (h *Handler) Handle(payload []byte) Response {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Warn("control: invalid command", "error", err)
		return h.fail("unknown", errors.New("invalid JSON"))
	}

	slog.Info("control: command received", "command", cmd.Command)

	switch cmd.Command {
	case CmdSetConfig:
		if h.callbacks.OnSetConfig == nil {
			return h.fail(cmd.Command, errors.New("set_config not implemented"))
		}
		patch, err := decodePatch(cmd.Config)
		if err != nil {
			return h.fail(cmd.Command, err)
		}
		cfg, err := h.callbacks.OnSetConfig(patch)
		if err != nil {
			return h.fail(cmd.Command, err)
		}
		return h.ok(cmd.Command, cfg)

	case CmdGetStatus:
		if h.callbacks.OnGetStatus == nil {
			return h.fail(cmd.Command, errors.New("get_status not implemented"))
		}
		return h.ok(cmd.Command, h.callbacks.OnGetStatus())

	case CmdResetStats:
		if h.callbacks.OnResetStats == nil {
			return h.fail(cmd.Command, errors.New("reset_stats not implemented"))
		}
		h.callbacks.OnResetStats()
		return h.ok(cmd.Command, map[string]interface{}{"stats_reset": true})

	default:
		return h.fail(cmd.Command, fmt.Errorf("unknown command: %s", cmd.Command))
	}
}

// PublishStatus publishes an unsolicited status report.
func (h *Handler) PublishStatus() {
	if h.callbacks.OnGetStatus == nil {
		return
	}
	h.publish(h.ok("status", h.callbacks.OnGetStatus()))
}

func decodePatch(raw json.RawMessage) (binningfilter.Patch, error) {
	var p binningfilter.Patch
	if len(raw) == 0 {
		return p, errors.New("missing config")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("invalid config: %w", err)
	}
	if p.Empty() {
		return p, errors.New("config changes nothing")
	}
	return p, nil
}

func (h *Handler) ok(ack string, data interface{}) Response {
	return Response{
		CommandAck: ack,
		Status:     StatusSuccess,
		Data:       data,
		Timestamp:  h.now().UTC().Format(time.RFC3339Nano),
	}
}

func (h *Handler) fail(ack string, err error) Response {
	return Response{
		CommandAck: ack,
		Status:     StatusError,
		Error:      err.Error(),
		Timestamp:  h.now().UTC().Format(time.RFC3339Nano),
	}
}

func (h *Handler) publish(resp Response) {
	if h.client == nil {
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("control: failed to marshal response", "error", err)
		return
	}

	token := h.client.Publish(h.topics.Status, h.qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("control: response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("control: failed to publish response", "error", err)
		return
	}

	slog.Debug("control: response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
