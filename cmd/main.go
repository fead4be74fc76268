package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/adapters/answer"
	"github.com/wicaksana/sapa-server/adapters/face"
	"github.com/wicaksana/sapa-server/adapters/lipsync"
	"github.com/wicaksana/sapa-server/adapters/memory"
	"github.com/wicaksana/sapa-server/adapters/mongo"
	"github.com/wicaksana/sapa-server/adapters/tts"
	"github.com/wicaksana/sapa-server/adapters/voice"
	"github.com/wicaksana/sapa-server/domain/repositories"
	"github.com/wicaksana/sapa-server/internal/api"
	"github.com/wicaksana/sapa-server/internal/websocket"
	"github.com/wicaksana/sapa-server/usecase"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	voiceClient, err := voice.NewClient(voice.ClientConfig{
		BaseURL: envOr("VOICE_SERVICE_URL", "http://localhost:8001"),
	}, logger)
	if err != nil {
		logger.Fatal("voice client init failed", zap.Error(err))
	}

	identityStore, err := face.NewStore(face.StoreConfig{
		FaceBaseURL:  envOr("FACE_SERVICE_URL", "http://localhost:8002"),
		VoiceBaseURL: envOr("VOICE_SERVICE_URL", "http://localhost:8001"),
	}, logger)
	if err != nil {
		logger.Fatal("identity store init failed", zap.Error(err))
	}

	var fallback repositories.AnswerProvider
	if os.Getenv("GEMINI_API_KEY") != "" {
		fallback, err = answer.NewGemini(logger)
		if err != nil {
			logger.Fatal("gemini fallback init failed", zap.Error(err))
		}
		logger.Info("Gemini fallback answer provider enabled")
	}

	answers, err := answer.NewRAG(answer.RAGConfig{
		RAGBaseURL:  envOr("RAG_SERVICE_URL", "http://localhost:8003"),
		UserBaseURL: envOr("USER_SERVICE_URL", "http://localhost:8004"),
	}, fallback, logger)
	if err != nil {
		logger.Fatal("answer provider init failed", zap.Error(err))
	}

	synthesizer, err := newSynthesizer(logger)
	if err != nil {
		logger.Fatal("synthesizer init failed", zap.Error(err))
	}

	extractor := lipsync.NewRhubarb(lipsync.RhubarbConfig{
		Binary: os.Getenv("RHUBARB_BINARY"),
	}, logger)

	var exchangeRepo repositories.ExchangeRepository
	if os.Getenv("MONGODB_URI") != "" {
		mongoClient, err := mongo.NewClient(mongo.ClientConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("mongo init failed", zap.Error(err))
		}
		defer mongoClient.Close(context.Background())
		exchangeRepo = mongo.NewExchangeRepository(mongoClient, logger)
	} else {
		logger.Info("MONGODB_URI not set, interaction log disabled")
	}

	kioskRepo := memory.NewKioskRepository()

	// Initialize usecase services
	receptionService := usecase.NewReceptionService(
		voiceClient, identityStore, answers, synthesizer, extractor, exchangeRepo, logger)

	// Each session gets its own persistent face link.
	faceStreamURL := envOr("FACE_STREAM_URL", "ws://localhost:8002/api/v2/identify")
	newStream := func() repositories.FaceStream {
		return face.NewStream(face.StreamConfig{URL: faceStreamURL}, logger)
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(receptionService, newStream, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, kioskRepo, exchangeRepo, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newSynthesizer prefers the in-house synthesis service and falls back to
// the hosted Eleven Labs API when none is configured.
func newSynthesizer(logger *zap.Logger) (repositories.SpeechSynthesizer, error) {
	if url := os.Getenv("TTS_SERVICE_URL"); url != "" {
		return tts.NewService(tts.ServiceConfig{BaseURL: url}, logger)
	}
	return tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
