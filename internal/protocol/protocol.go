// Package protocol defines the message envelope exchanged with remote
// clients. Messages are externally tagged: variants without a payload
// encode as a bare JSON string and variants with a payload encode as an
// object with a single key naming the variant. Field and tag names are part
// of the wire contract and must stay stable.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ClientConfiguration negotiates capture parameters for a connection. It
// must be acknowledged before any frame references the new configuration.
type ClientConfiguration struct {
	StylusSupport bool `json:"stylus_support"`
	FasterCapture bool `json:"faster_capture"`
	CapturableID  int  `json:"capturable_id"`
	CaptureCursor bool `json:"capture_cursor"`
	MaxWidth      int  `json:"max_width"`
	MaxHeight     int  `json:"max_height"`
}

// MessageInbound is a client-to-server message.
type MessageInbound interface {
	inboundTag() string
}

// TryGetFrame requests at most one new frame. The server may drop the
// request instead of queueing it while a previous capture is in flight.
type TryGetFrame struct{}

// GetCapturableList requests the current target enumeration.
type GetCapturableList struct{}

func (*PointerEvent) inboundTag() string        { return "PointerEvent" }
func (TryGetFrame) inboundTag() string          { return "TryGetFrame" }
func (GetCapturableList) inboundTag() string    { return "GetCapturableList" }
func (*ClientConfiguration) inboundTag() string { return "Config" }

// MessageOutbound is a server-to-client message.
type MessageOutbound interface {
	outboundTag() string
}

// CapturableList carries the names of the currently available targets, in
// enumeration order; a client selects one by index.
type CapturableList []string

// NewVideo announces that a fresh video stream has started, for instance
// after a target or resolution change.
type NewVideo struct{}

// ConfigOk acknowledges a ClientConfiguration.
type ConfigOk struct{}

// ConfigError rejects a ClientConfiguration with a reason.
type ConfigError string

// ErrorMessage reports a server-side failure to the client.
type ErrorMessage string

func (CapturableList) outboundTag() string { return "CapturableList" }
func (NewVideo) outboundTag() string       { return "NewVideo" }
func (ConfigOk) outboundTag() string       { return "ConfigOk" }
func (ConfigError) outboundTag() string    { return "ConfigError" }
func (ErrorMessage) outboundTag() string   { return "Error" }

// DecodeInbound parses one client message.
func DecodeInbound(data []byte) (MessageInbound, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case TryGetFrame{}.inboundTag():
			return TryGetFrame{}, nil
		case GetCapturableList{}.inboundTag():
			return GetCapturableList{}, nil
		default:
			return nil, fmt.Errorf("unknown message %q", tag)
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("expected a single message tag, got %d", len(envelope))
	}
	for tag, raw := range envelope {
		switch tag {
		case "PointerEvent":
			var ev PointerEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				return nil, fmt.Errorf("malformed PointerEvent: %w", err)
			}
			return &ev, nil
		case "Config":
			var cfg ClientConfiguration
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("malformed Config: %w", err)
			}
			return &cfg, nil
		default:
			return nil, fmt.Errorf("unknown message %q", tag)
		}
	}
	return nil, fmt.Errorf("empty message")
}

// EncodeInbound serializes a client message. The server only decodes these;
// encoding exists for clients and tests.
func EncodeInbound(m MessageInbound) ([]byte, error) {
	switch v := m.(type) {
	case TryGetFrame, GetCapturableList:
		return json.Marshal(m.inboundTag())
	case *PointerEvent:
		return json.Marshal(map[string]*PointerEvent{v.inboundTag(): v})
	case *ClientConfiguration:
		return json.Marshal(map[string]*ClientConfiguration{v.inboundTag(): v})
	default:
		return nil, fmt.Errorf("unsupported inbound message %T", m)
	}
}

// EncodeOutbound serializes a server message.
func EncodeOutbound(m MessageOutbound) ([]byte, error) {
	switch v := m.(type) {
	case NewVideo, ConfigOk:
		return json.Marshal(m.outboundTag())
	case CapturableList:
		return json.Marshal(map[string][]string{v.outboundTag(): v})
	case ConfigError:
		return json.Marshal(map[string]string{v.outboundTag(): string(v)})
	case ErrorMessage:
		return json.Marshal(map[string]string{v.outboundTag(): string(v)})
	default:
		return nil, fmt.Errorf("unsupported outbound message %T", m)
	}
}

// DecodeOutbound parses a server message, the inverse of EncodeOutbound.
func DecodeOutbound(data []byte) (MessageOutbound, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case NewVideo{}.outboundTag():
			return NewVideo{}, nil
		case ConfigOk{}.outboundTag():
			return ConfigOk{}, nil
		default:
			return nil, fmt.Errorf("unknown message %q", tag)
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("expected a single message tag, got %d", len(envelope))
	}
	for tag, raw := range envelope {
		switch tag {
		case "CapturableList":
			var names []string
			if err := json.Unmarshal(raw, &names); err != nil {
				return nil, fmt.Errorf("malformed CapturableList: %w", err)
			}
			return CapturableList(names), nil
		case "ConfigError":
			var reason string
			if err := json.Unmarshal(raw, &reason); err != nil {
				return nil, fmt.Errorf("malformed ConfigError: %w", err)
			}
			return ConfigError(reason), nil
		case "Error":
			var msg string
			if err := json.Unmarshal(raw, &msg); err != nil {
				return nil, fmt.Errorf("malformed Error: %w", err)
			}
			return ErrorMessage(msg), nil
		default:
			return nil, fmt.Errorf("unknown message %q", tag)
		}
	}
	return nil, fmt.Errorf("empty message")
}
