package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
	"github.com/wicaksana/sapa-server/usecase"
)

type stubVoice struct{}

func (s *stubVoice) Recognize(ctx context.Context, wav []byte) ([]entities.VoiceResult, error) {
	return []entities.VoiceResult{{UserID: "alice", Transcript: "where is reception", Score: 0.9}}, nil
}

type stubStore struct{}

func (s *stubStore) EnrollVoice(ctx context.Context, personID string, wav []byte) error { return nil }
func (s *stubStore) EnrollFace(ctx context.Context, personID string, jpeg []byte) error { return nil }
func (s *stubStore) RebindFace(ctx context.Context, personID string, jpeg []byte) error { return nil }

type stubAnswers struct{}

func (s *stubAnswers) Answer(ctx context.Context, queries []repositories.Query) (string, error) {
	return "straight ahead", nil
}

func (s *stubAnswers) Greet(ctx context.Context, userID string) (string, error) {
	return "welcome back", nil
}

type stubSpeech struct{}

func (s *stubSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return []byte("audio"), nil
}

type stubLipsync struct{}

func (s *stubLipsync) Extract(ctx context.Context, wav []byte) (json.RawMessage, error) {
	return json.RawMessage(`{"mouthCues":[]}`), nil
}

type stubStream struct{}

func (s *stubStream) Configure(ctx context.Context, cfg repositories.FaceStreamConfig) error {
	return nil
}

func (s *stubStream) Identify(ctx context.Context, jpeg []byte) (*entities.FaceFrame, error) {
	return &entities.FaceFrame{
		Matches: []entities.FaceMatch{{
			PersonID:   "alice",
			Confidence: 0.9,
			Box:        entities.BoundingBox{Width: 100, Height: 100},
		}},
		FaceDetected:   true,
		ProcessedFaces: 1,
	}, nil
}

func (s *stubStream) Close(ctx context.Context) error { return nil }

func setupTestHub(t testing.TB) *Hub {
	t.Helper()
	logger := zap.NewNop()
	service := usecase.NewReceptionService(
		&stubVoice{}, &stubStore{}, &stubAnswers{}, &stubSpeech{}, &stubLipsync{}, nil, logger)
	hub := NewHub(service, func() repositories.FaceStream { return &stubStream{} }, logger)
	go hub.Run()
	return hub
}

func dialTestServer(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, "kiosk-test", zap.NewNop())
	})
	server := httptest.NewServer(e)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("dial failed: %v", err)
	}

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestHub_NewHub(t *testing.T) {
	hub := setupTestHub(t)
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("clients map not initialized")
	}
}

func TestHub_AudioRoundTrip(t *testing.T) {
	hub := setupTestHub(t)
	conn, teardown := dialTestServer(t, hub)
	defer teardown()

	// Prime the session with a frame so fusion has visual evidence.
	jpegB64 := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	if err := conn.WriteJSON(ClientMessage{Video: jpegB64}); err != nil {
		t.Fatalf("send video failed: %v", err)
	}
	readReply(t, conn) // frame reply, not greeted yet

	audioB64 := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03, 0x04})
	if err := conn.WriteJSON(ClientMessage{Audio: audioB64}); err != nil {
		t.Fatalf("send audio failed: %v", err)
	}

	reply := readReply(t, conn)
	if !reply.Valid {
		t.Fatal("expected a valid audio reply")
	}
	if reply.Audio == "" {
		t.Error("reply carries no audio")
	}
	if reply.IsGreeting {
		t.Error("question reply flagged as greeting")
	}
}

func TestHub_MalformedMessageGetsErrorReply(t *testing.T) {
	hub := setupTestHub(t)
	conn, teardown := dialTestServer(t, hub)
	defer teardown()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{}`)); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var reply ErrorReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if reply.Status != "error" {
		t.Errorf("status = %q, want error", reply.Status)
	}
}

func TestHub_CloseActionEndsSession(t *testing.T) {
	hub := setupTestHub(t)
	conn, teardown := dialTestServer(t, hub)
	defer teardown()

	if err := conn.WriteJSON(ClientMessage{Action: "close"}); err != nil {
		t.Fatalf("send close failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // server closed the connection
		}
	}
}

func TestHub_ReplyAfterUnregisterDoesNotPanic(t *testing.T) {
	hub := setupTestHub(t)

	client := &Client{
		hub:     hub,
		send:    make(chan WriteData, 1),
		kioskID: "kiosk-gone",
		session: usecase.NewSession("kiosk-gone", &stubStream{}),
		logger:  zap.NewNop(),
	}

	hub.register <- client
	hub.unregister <- client

	// Wait for the hub loop to process the unregister.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		_, registered := hub.clients[client.kioskID]
		hub.mu.RUnlock()
		if !registered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(time.Millisecond)
	}

	// A cycle goroutine finishing after disconnect must drop its reply,
	// not crash the server.
	client.reply([]byte(`{"valid":false}`))
	client.replyMedia(&usecase.Reply{Valid: true, Audio: []byte("late")})

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("reply written to a closed client")
		}
	default:
		t.Error("send channel left open after unregister")
	}
}

func readReply(t *testing.T, conn *websocket.Conn) MediaReply {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read reply failed: %v", err)
	}
	var reply MediaReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		t.Fatalf("unmarshal reply failed: %v", err)
	}
	return reply
}
