package websocket

import (
	"encoding/json"
	"testing"
)

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantKind MessageKind
		wantErr  bool
	}{
		{
			name:     "configure",
			message:  `{"action":"configure","threshold":0.6,"max_faces":3}`,
			wantKind: MessageKindConfigure,
		},
		{
			name:     "close",
			message:  `{"action":"close"}`,
			wantKind: MessageKindClose,
		},
		{
			name:     "audio",
			message:  `{"audio":"SGVsbG8gV29ybGQ="}`,
			wantKind: MessageKindAudio,
		},
		{
			name:     "video",
			message:  `{"video":"SGVsbG8gV29ybGQ="}`,
			wantKind: MessageKindVideo,
		},
		{
			name:    "unknown action",
			message: `{"action":"reboot"}`,
			wantErr: true,
		},
		{
			name:    "audio and video together",
			message: `{"audio":"QQ==","video":"QQ=="}`,
			wantErr: true,
		},
		{
			name:    "empty message",
			message: `{}`,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			message: `{not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, kind, err := ParseClientMessage([]byte(tt.message))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got kind %q", kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if msg == nil {
				t.Error("parsed message is nil")
			}
		})
	}
}

func TestParseClientMessage_ConfigureFields(t *testing.T) {
	msg, _, err := ParseClientMessage([]byte(`{"action":"configure","threshold":0.7,"max_faces":5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Threshold != 0.7 {
		t.Errorf("threshold = %f, want 0.7", msg.Threshold)
	}
	if msg.MaxFaces != 5 {
		t.Errorf("max_faces = %d, want 5", msg.MaxFaces)
	}
}

func TestMediaReplyShape(t *testing.T) {
	reply := MediaReply{
		Valid:      true,
		Audio:      "QQ==",
		Lipsync:    json.RawMessage(`{"mouthCues":[]}`),
		IsGreeting: true,
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"valid", "audio", "lipsync", "is_greeting"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("reply missing %q field", key)
		}
	}
}

func TestMediaReply_InvalidOmitsMedia(t *testing.T) {
	payload, err := json.Marshal(MediaReply{Valid: false})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["audio"]; ok {
		t.Error("invalid reply should omit audio")
	}
	if _, ok := decoded["lipsync"]; ok {
		t.Error("invalid reply should omit lipsync")
	}
}

func TestNewErrorReply(t *testing.T) {
	var reply ErrorReply
	if err := json.Unmarshal(NewErrorReply("boom"), &reply); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if reply.Status != "error" || reply.Error != "boom" {
		t.Errorf("reply = %+v, want status=error error=boom", reply)
	}
}
