package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/repositories"
	"github.com/wicaksana/sapa-server/internal/auth"
	"github.com/wicaksana/sapa-server/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	kioskRepo repositories.KioskRepository,
	exchangeRepo repositories.ExchangeRepository,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "sapa-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Kiosk APIs
	v1.POST("/kiosk/auth", func(c echo.Context) error {
		return kioskAuth(c, kioskRepo, logger)
	})

	// Interaction history
	v1.GET("/users/:id/exchanges", func(c echo.Context) error {
		return listExchanges(c, exchangeRepo, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

func kioskAuth(c echo.Context, kioskRepo repositories.KioskRepository, logger *zap.Logger) error {
	var req KioskAuthRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind kiosk auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	kiosk, err := kioskRepo.ValidateKiosk(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Kiosk authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid kiosk credentials",
		})
	}

	token, expiresAt, err := auth.GenerateKioskToken(kiosk.ID)
	if err != nil {
		logger.Error("Failed to generate kiosk token",
			zap.String("kiosk_id", kiosk.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Kiosk authenticated successfully",
		zap.String("kiosk_id", kiosk.ID),
		zap.String("serial_number", kiosk.SerialNumber))

	return c.JSON(http.StatusOK, KioskAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		KioskID:   kiosk.ID,
	})
}

func listExchanges(c echo.Context, exchangeRepo repositories.ExchangeRepository, logger *zap.Logger) error {
	if exchangeRepo == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_configured",
			Message: "Interaction log is not configured",
		})
	}

	userID := c.Param("id")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	exchanges, err := exchangeRepo.ListByUser(c.Request().Context(), userID, limit)
	if err != nil {
		logger.Error("Failed to list exchanges",
			zap.String("user_id", userID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load interaction history",
		})
	}

	out := make([]ExchangeResponse, 0, len(exchanges))
	for _, ex := range exchanges {
		out = append(out, ExchangeResponse{
			UserID:     ex.UserID,
			Question:   ex.Question,
			Answer:     ex.Answer,
			IsGreeting: ex.IsGreeting,
			CreatedAt:  ex.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	// Extract JWT token from Authorization header only
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleKiosk {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only kiosk tokens are allowed for WebSocket connections",
		})
	}

	kioskID := claims.KioskID
	if kioskID == "" {
		logger.Error("WebSocket connection rejected: missing kiosk ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Kiosk ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("kiosk_id", kioskID),
		zap.String("role", claims.Role))

	return websocket.HandleWebSocketWithAuth(hub, c, kioskID, logger)
}
