package face

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
)

const (
	defaultRecvTimeout = 5 * time.Second
	defaultLockTimeout = 5 * time.Second
	defaultThreshold   = 0.5
	defaultMaxFaces    = 5

	livenessWriteWait = 2 * time.Second
)

// StreamConfig configures the persistent face-recognition link.
type StreamConfig struct {
	// URL is the ws:// endpoint of the face backend's identify channel.
	URL string
	// RecvTimeout bounds the wait for each recognition response.
	RecvTimeout time.Duration
	// LockTimeout bounds the wait to acquire the link for one exchange.
	LockTimeout time.Duration
}

// Stream is a per-session persistent WebSocket link to the face backend.
// One frame exchange (send + receive) holds the link exclusively, so
// concurrent video frames never interleave requests and responses. Before
// every send the link's liveness is probed and a dead link is redialed,
// re-sending the channel configuration first.
type Stream struct {
	cfg    StreamConfig
	logger *zap.Logger

	// sem serializes exchanges; capacity one, acquired with a bounded wait.
	sem chan struct{}

	// mu guards conn and closed. Close runs concurrently with an exchange
	// that holds the semaphore, so these never move without the lock.
	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	channel repositories.FaceStreamConfig
}

var _ repositories.FaceStream = (*Stream)(nil)

// NewStream creates an unconnected link; the first Identify dials it.
func NewStream(cfg StreamConfig, logger *zap.Logger) *Stream {
	if cfg.RecvTimeout == 0 {
		cfg.RecvTimeout = defaultRecvTimeout
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	s := &Stream{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, 1),
		channel: repositories.FaceStreamConfig{
			Threshold: defaultThreshold,
			MaxFaces:  defaultMaxFaces,
		},
	}
	return s
}

type configureMessage struct {
	Action    string  `json:"action"`
	Threshold float64 `json:"threshold"`
	MaxFaces  int     `json:"max_faces"`
}

type identifyRequest struct {
	Image     string `json:"image"`
	Timestamp int64  `json:"timestamp"`
}

type identifyResponse struct {
	Matches []struct {
		PersonID   string    `json:"person_id"`
		Confidence float64   `json:"confidence"`
		BBox       []float64 `json:"bbox"`
	} `json:"matches"`
	FaceDetected   bool     `json:"face_detected"`
	ProcessedFaces int      `json:"processed_faces"`
	NewFaces       []string `json:"new_faces"`
	Status         string   `json:"status"`
	Error          string   `json:"error"`
}

// acquire takes the link semaphore with a bounded wait.
func (s *Stream) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.LockTimeout):
		return fmt.Errorf("face link busy: %w", entities.ErrProviderUnavailable)
	}
}

func (s *Stream) release() {
	<-s.sem
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// dropConn tears down the transport after an IO failure.
func (s *Stream) dropConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// ensureConnection probes liveness and redials when the link is down,
// returning the connection to use for this exchange. Must be called with
// the semaphore held.
func (s *Stream) ensureConnection(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, entities.ErrLinkClosed
	}
	conn := s.conn
	channel := s.channel
	s.mu.Unlock()

	if conn != nil {
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(livenessWriteWait))
		if err == nil {
			return conn, nil
		}
		s.logger.Warn("face link liveness probe failed, reconnecting", zap.Error(err))
		s.dropConn()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial face backend %s: %w", s.cfg.URL, entities.ErrProviderUnavailable)
	}

	cfg := configureMessage{
		Action:    "configure",
		Threshold: channel.Threshold,
		MaxFaces:  channel.MaxFaces,
	}
	if err := conn.WriteJSON(cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure face channel: %w", entities.ErrProviderUnavailable)
	}

	s.mu.Lock()
	if s.closed {
		// Close won the race; do not resurrect the link.
		s.mu.Unlock()
		conn.Close()
		return nil, entities.ErrLinkClosed
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("face link established",
		zap.String("url", s.cfg.URL),
		zap.Float64("threshold", cfg.Threshold),
		zap.Int("maxFaces", cfg.MaxFaces))
	return conn, nil
}

// Configure updates the channel configuration, pushing it to a live link
// immediately. The stored values are re-sent on every reconnect.
func (s *Stream) Configure(ctx context.Context, cfg repositories.FaceStreamConfig) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	s.channel = cfg
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	msg := configureMessage{Action: "configure", Threshold: cfg.Threshold, MaxFaces: cfg.MaxFaces}
	if err := conn.WriteJSON(msg); err != nil {
		s.dropConn()
		return fmt.Errorf("push face channel config: %w", entities.ErrProviderUnavailable)
	}
	return nil
}

// Identify submits one JPEG frame and waits for the recognition result.
func (s *Stream) Identify(ctx context.Context, jpeg []byte) (*entities.FaceFrame, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	conn, err := s.ensureConnection(ctx)
	if err != nil {
		return nil, err
	}

	req := identifyRequest{
		Image:     base64.StdEncoding.EncodeToString(jpeg),
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(req); err != nil {
		s.dropConn()
		return nil, fmt.Errorf("send frame: %w", entities.ErrProviderUnavailable)
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.RecvTimeout)); err != nil {
		s.dropConn()
		return nil, fmt.Errorf("arm read deadline: %w", entities.ErrProviderUnavailable)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.dropConn()
		if s.isClosed() {
			return nil, entities.ErrLinkClosed
		}
		return nil, fmt.Errorf("recv recognition result: %w", entities.ErrProviderUnavailable)
	}

	var resp identifyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode recognition result: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("face backend: %s", resp.Error)
	}

	frame := &entities.FaceFrame{
		FaceDetected:   resp.FaceDetected,
		ProcessedFaces: resp.ProcessedFaces,
		NewFaces:       resp.NewFaces,
	}
	for _, m := range resp.Matches {
		match := entities.FaceMatch{PersonID: m.PersonID, Confidence: m.Confidence}
		if len(m.BBox) == 4 {
			match.Box = entities.BoundingBox{X: m.BBox[0], Y: m.BBox[1], Width: m.BBox[2], Height: m.BBox[3]}
		}
		frame.Matches = append(frame.Matches, match)
	}
	return frame, nil
}

// Close sends an explicit close message to the backend, then tears down
// the transport. In-flight exchanges observe the closed link and fail.
func (s *Stream) Close(ctx context.Context) error {
	// Mark closed first so a stuck exchange cannot resurrect the link.
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if err := s.acquire(ctx); err != nil {
		// Could not take the link; close the transport underneath the
		// holder, which will surface as a read/write error there.
		if conn != nil {
			conn.Close()
		}
		return err
	}
	defer s.release()

	s.mu.Lock()
	conn = s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.WriteJSON(map[string]string{"action": "close"}); err != nil {
		s.logger.Warn("failed to send close action", zap.Error(err))
	}
	err := conn.Close()
	s.logger.Info("face link closed")
	return err
}
