package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"xgate/internal/policy"
)

// Kind tags the message union.
type Kind string

const (
	// KindStatus carries a decision from the monitor, either unsolicited
	// or as a reply to a poll.
	KindStatus Kind = "status"
	// KindHello greets the monitor on connect and requests an immediate
	// decision push.
	KindHello Kind = "hello"
	// KindPoll requests a correlated decision reply.
	KindPoll Kind = "poll"
	// KindPing keeps the channel from being treated as idle.
	KindPing Kind = "ping"
)

// ErrMalformed marks frames that decode but are not valid messages.
// Receivers skip such frames; they are never fatal to the connection.
var ErrMalformed = errors.New("malformed message")

// Message is the wire representation of every frame. Optional fields are
// pointers so that required-field validation can tell "absent" from zero.
type Message struct {
	Type Kind `json:"type"`

	// Correlation id on hello/poll requests.
	ID *uint64 `json:"id,omitempty"`

	// Status fields.
	ShouldBlock   *bool    `json:"should_block,omitempty"`
	AgentActive   *bool    `json:"agent_active,omitempty"`
	TimestampUnix *float64 `json:"timestamp_unix,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	ReplyTo       *uint64  `json:"reply_to,omitempty"`
}

// NewStatus builds a decision message, optionally tagged as a reply.
func NewStatus(d policy.Decision, reason string, replyTo *uint64) Message {
	ts := float64(d.Timestamp.UnixNano()) / float64(time.Second)
	return Message{
		Type:          KindStatus,
		ShouldBlock:   &d.ShouldBlock,
		AgentActive:   &d.AgentActive,
		TimestampUnix: &ts,
		Reason:        reason,
		ReplyTo:       replyTo,
	}
}

// NewHello builds the greeting sent right after connecting.
func NewHello() Message {
	return Message{Type: KindHello}
}

// NewPoll builds a correlated decision request.
func NewPoll(id uint64) Message {
	return Message{Type: KindPoll, ID: &id}
}

// NewPing builds a keepalive message.
func NewPing() Message {
	return Message{Type: KindPing}
}

// Decision reconstructs the policy decision carried by a status message.
func (m Message) Decision() policy.Decision {
	d := policy.Decision{}
	if m.ShouldBlock != nil {
		d.ShouldBlock = *m.ShouldBlock
	}
	if m.AgentActive != nil {
		d.AgentActive = *m.AgentActive
	}
	if m.TimestampUnix != nil {
		sec, frac := math.Modf(*m.TimestampUnix)
		d.Timestamp = time.Unix(int64(sec), int64(frac*float64(time.Second)))
	}
	return d
}

// Validate enforces the per-kind required fields.
func (m Message) Validate() error {
	switch m.Type {
	case KindStatus:
		if m.ShouldBlock == nil || m.AgentActive == nil {
			return fmt.Errorf("%w: status missing decision fields", ErrMalformed)
		}
	case KindHello, KindPing:
	case KindPoll:
		if m.ID == nil {
			return fmt.Errorf("%w: poll missing id", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, string(m.Type))
	}
	return nil
}

// Decode parses and validates one frame payload. Decode failures wrap
// ErrMalformed so receive loops can skip the frame and keep reading.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Encode serializes a message to a frame payload.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}
