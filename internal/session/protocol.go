// internal/session/protocol.go
package session

import (
	"encoding/json"

	"github.com/driftnet-io/drift-agent/internal/identity"
	"github.com/driftnet-io/drift-agent/internal/snapshot"
)

// MessageType constants define the coordinator wire protocol. Every message
// is a JSON object with at least a "type" field; unknown types from the
// coordinator are ignored, not errors.
const (
	// MessageTypeRegister announces this device and its first snapshot
	MessageTypeRegister = "register"

	// MessageTypeHeartbeat carries a fresh snapshot on the streaming cadence
	MessageTypeHeartbeat = "heartbeat"

	// MessageTypePong answers a coordinator ping
	MessageTypePong = "pong"

	// MessageTypeRegistrationAck acknowledges a register message
	MessageTypeRegistrationAck = "registration_ack"

	// MessageTypeHeartbeatAck acknowledges a heartbeat
	MessageTypeHeartbeatAck = "heartbeat_ack"

	// MessageTypePing is a coordinator-initiated liveness check
	MessageTypePing = "ping"
)

// Message is one protocol frame in either direction. Snapshot fields are
// flattened into the top-level object on register and heartbeat messages;
// coordinator-sent payloads beyond the recognized fields are opaque and
// tolerated.
type Message struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id,omitempty"`

	// Identity detail, sent on register
	NodeName    string `json:"node_name,omitempty"`
	Platform    string `json:"platform,omitempty"`
	CPUCount    int    `json:"cpu_count,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`

	// Seq correlates heartbeats with their acks
	Seq uint64 `json:"seq,omitempty"`

	// Snapshot fields, flattened; nil on control messages
	*snapshot.Snapshot
}

// NewRegisterMessage builds the registration frame: identity plus a full
// snapshot.
func NewRegisterMessage(id *identity.Identity, snap snapshot.Snapshot) *Message {
	return &Message{
		Type:        MessageTypeRegister,
		DeviceID:    id.DeviceID,
		NodeName:    id.NodeName,
		Platform:    id.Platform,
		CPUCount:    id.CPUCount,
		Fingerprint: id.Fingerprint,
		Snapshot:    &snap,
	}
}

// NewHeartbeatMessage builds a heartbeat frame carrying a fresh snapshot.
func NewHeartbeatMessage(deviceID string, seq uint64, snap snapshot.Snapshot) *Message {
	return &Message{
		Type:     MessageTypeHeartbeat,
		DeviceID: deviceID,
		Seq:      seq,
		Snapshot: &snap,
	}
}

// NewPongMessage builds the reply to a coordinator ping.
func NewPongMessage(deviceID string) *Message {
	return &Message{
		Type:     MessageTypePong,
		DeviceID: deviceID,
	}
}

// Marshal serializes the message to JSON.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalMessage deserializes a JSON frame. Callers treat an error as a
// malformed (ignorable) payload, not a transport failure.
func UnmarshalMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
