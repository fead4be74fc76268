package face

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
)

// fakeBackend records messages and serves canned recognition results.
type fakeBackend struct {
	t        *testing.T
	server   *httptest.Server
	received chan map[string]interface{}
	response map[string]interface{}

	// mute makes the backend swallow frames without answering.
	mute bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:        t,
		received: make(chan map[string]interface{}, 16),
		response: map[string]interface{}{
			"matches": []map[string]interface{}{
				{"person_id": "alice", "confidence": 0.92, "bbox": []float64{10, 20, 100, 120}},
			},
			"face_detected":   true,
			"processed_faces": 1,
			"status":          "ok",
		},
	}

	upgrader := websocket.Upgrader{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			b.received <- msg
			// Configure and close are acknowledged silently; frames get a
			// recognition result.
			if _, isFrame := msg["image"]; isFrame && !b.mute {
				if err := conn.WriteJSON(b.response); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *fakeBackend) next(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case msg := <-b.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backend message")
		return nil
	}
}

func TestStream_IdentifySendsConfigureFirst(t *testing.T) {
	backend := newFakeBackend(t)
	stream := NewStream(StreamConfig{URL: backend.wsURL()}, zap.NewNop())

	frame, err := stream.Identify(context.Background(), []byte{0xFF, 0xD8, 0xFF})
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}

	// First message on a fresh link must be the channel configuration.
	first := backend.next(t)
	if first["action"] != "configure" {
		t.Errorf("first message action = %v, want configure", first["action"])
	}
	second := backend.next(t)
	if _, ok := second["image"]; !ok {
		t.Error("second message carries no image")
	}

	if !frame.FaceDetected || len(frame.Matches) != 1 {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	m := frame.Matches[0]
	if m.PersonID != "alice" {
		t.Errorf("person = %q, want alice", m.PersonID)
	}
	if m.Box.X != 10 || m.Box.Y != 20 || m.Box.Width != 100 || m.Box.Height != 120 {
		t.Errorf("box = %+v, want {10 20 100 120}", m.Box)
	}
}

func TestStream_ConfigureIsResentOnValuesChange(t *testing.T) {
	backend := newFakeBackend(t)
	stream := NewStream(StreamConfig{URL: backend.wsURL()}, zap.NewNop())

	if _, err := stream.Identify(context.Background(), []byte{0xFF, 0xD8, 0xFF}); err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	backend.next(t) // configure
	backend.next(t) // frame

	cfg := repositories.FaceStreamConfig{Threshold: 0.8, MaxFaces: 2}
	if err := stream.Configure(context.Background(), cfg); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	msg := backend.next(t)
	if msg["action"] != "configure" {
		t.Fatalf("message action = %v, want configure", msg["action"])
	}
	if msg["threshold"] != 0.8 {
		t.Errorf("threshold = %v, want 0.8", msg["threshold"])
	}
}

func TestStream_BackendErrorStatus(t *testing.T) {
	backend := newFakeBackend(t)
	backend.response = map[string]interface{}{
		"status": "error",
		"error":  "model not loaded",
	}
	stream := NewStream(StreamConfig{URL: backend.wsURL()}, zap.NewNop())

	_, err := stream.Identify(context.Background(), []byte{0xFF, 0xD8, 0xFF})
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error = %v, want backend error surfaced", err)
	}
}

func TestStream_DialFailureIsProviderUnavailable(t *testing.T) {
	stream := NewStream(StreamConfig{URL: "ws://127.0.0.1:1/nowhere", RecvTimeout: time.Second}, zap.NewNop())

	_, err := stream.Identify(context.Background(), []byte{0xFF, 0xD8, 0xFF})
	if !errors.Is(err, entities.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestStream_CloseRejectsFurtherUse(t *testing.T) {
	backend := newFakeBackend(t)
	stream := NewStream(StreamConfig{URL: backend.wsURL()}, zap.NewNop())

	if _, err := stream.Identify(context.Background(), []byte{0xFF, 0xD8, 0xFF}); err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if err := stream.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := stream.Identify(context.Background(), []byte{0xFF, 0xD8, 0xFF})
	if !errors.Is(err, entities.ErrLinkClosed) {
		t.Errorf("error after close = %v, want ErrLinkClosed", err)
	}
}

func TestStream_CloseDuringInflightIdentify(t *testing.T) {
	backend := newFakeBackend(t)
	backend.mute = true
	stream := NewStream(StreamConfig{
		URL:         backend.wsURL(),
		RecvTimeout: 3 * time.Second,
		LockTimeout: 100 * time.Millisecond,
	}, zap.NewNop())

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Identify(context.Background(), []byte{0xFF, 0xD8, 0xFF})
		errCh <- err
	}()

	backend.next(t) // configure
	backend.next(t) // frame sent; the exchange is now waiting for a result

	// Teardown while the exchange holds the link. Close cannot take the
	// semaphore, so it shuts the transport underneath the holder.
	if err := stream.Close(context.Background()); err == nil {
		t.Error("Close returned nil while an exchange held the link")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, entities.ErrLinkClosed) {
			t.Errorf("in-flight error = %v, want ErrLinkClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Identify still blocked after Close")
	}
}

func TestStream_JSONMarshalOfConfig(t *testing.T) {
	payload, err := json.Marshal(configureMessage{Action: "configure", Threshold: 0.5, MaxFaces: 5})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"action":"configure","threshold":0.5,"max_faces":5}`
	if string(payload) != want {
		t.Errorf("payload = %s, want %s", payload, want)
	}
}
