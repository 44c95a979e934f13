package streaming

import (
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeLookup MessageType = "lookup"
)

type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeUpstreamFailure Outcome = "upstream_failure"
)

// Message is one record on the lookup topic.
type Message struct {
	Type      MessageType `json:"type"`
	TraceID   string      `json:"trace_id,omitempty"`
	Address   string      `json:"address"`
	FromBlock int64       `json:"from_block"`
	ToBlock   int64       `json:"to_block"`
	Page      int         `json:"page"`
	Offset    int         `json:"offset"`
	Sort      string      `json:"sort"`
	Outcome   Outcome     `json:"outcome"`
	TxCount   int         `json:"tx_count,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	LatencyMS int64       `json:"latency_ms"`
	At        time.Time   `json:"at"`
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if msg.Address == "" {
		return nil, errors.New("address is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	if msg.Address == "" {
		return Message{}, errors.New("address is missing")
	}
	return msg, nil
}
