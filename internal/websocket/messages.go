package websocket

import (
	"encoding/json"
	"fmt"
)

// MessageKind classifies a parsed client message.
type MessageKind string

// Supported message kinds
const (
	MessageKindConfigure MessageKind = "configure"
	MessageKindClose     MessageKind = "close"
	MessageKindAudio     MessageKind = "audio"
	MessageKindVideo     MessageKind = "video"
)

// ClientMessage is one inbound JSON message from the kiosk. Exactly one
// of Action, Audio, or Video must be set.
type ClientMessage struct {
	Action    string  `json:"action,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	MaxFaces  int     `json:"max_faces,omitempty"`
	Audio     string  `json:"audio,omitempty"` // base64 PCM or WAV
	Video     string  `json:"video,omitempty"` // base64 JPEG
}

// Kind classifies the message, or returns an error when the payload does
// not carry exactly one media or control field.
func (m *ClientMessage) Kind() (MessageKind, error) {
	set := 0
	var kind MessageKind

	if m.Action != "" {
		set++
		switch m.Action {
		case "configure":
			kind = MessageKindConfigure
		case "close":
			kind = MessageKindClose
		default:
			return "", fmt.Errorf("unknown action %q", m.Action)
		}
	}
	if m.Audio != "" {
		set++
		kind = MessageKindAudio
	}
	if m.Video != "" {
		set++
		kind = MessageKindVideo
	}

	if set != 1 {
		return "", fmt.Errorf("message must carry exactly one of action, audio, or video")
	}
	return kind, nil
}

// ParseClientMessage decodes and classifies one inbound message.
func ParseClientMessage(data []byte) (*ClientMessage, MessageKind, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, "", fmt.Errorf("invalid JSON format: %w", err)
	}
	kind, err := msg.Kind()
	if err != nil {
		return nil, "", err
	}
	return &msg, kind, nil
}

// MediaReply is the outbound result of one media cycle. Invalid replies
// carry no audio and tell the kiosk to stay idle.
type MediaReply struct {
	Valid      bool            `json:"valid"`
	Audio      string          `json:"audio,omitempty"` // base64 WAV
	Lipsync    json.RawMessage `json:"lipsync,omitempty"`
	IsGreeting bool            `json:"is_greeting"`
}

// ErrorReply is the outbound shape for a failed message.
type ErrorReply struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewErrorReply builds an error reply payload.
func NewErrorReply(message string) []byte {
	payload, _ := json.Marshal(ErrorReply{Status: "error", Error: message})
	return payload
}
