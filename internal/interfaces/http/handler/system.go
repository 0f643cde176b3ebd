package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/enterprisecrm/backend/internal/interfaces/http/dto"
	"github.com/enterprisecrm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TestHandler serves the /api/test smoke endpoints
type TestHandler struct {
	BaseHandler
	now func() time.Time
}

// NewTestHandler creates a new TestHandler
func NewTestHandler() *TestHandler {
	return &TestHandler{now: time.Now}
}

// PingResponse represents the public test response
// @name HandlerPingResponse
type PingResponse struct {
	Message   string    `json:"message" example:"API is working"`
	Timestamp time.Time `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// WhoAmIResponse echoes the identity carried by the access token
type WhoAmIResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Public godoc
// @ID           testPublic
// @Summary      Check that the API is reachable
// @Tags         test
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /test [get]
func (h *TestHandler) Public(c *gin.Context) {
	h.Success(c, PingResponse{Message: "API is working", Timestamp: h.now().UTC()})
}

// Secure godoc
// @ID           testSecure
// @Summary      Check that a bearer token is accepted
// @Tags         test
// @Produce      json
// @Success      200 {object} APIResponse[WhoAmIResponse]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /test/secure [get]
func (h *TestHandler) Secure(c *gin.Context) {
	h.whoAmI(c, "Authenticated")
}

// Admin godoc
// @ID           testAdmin
// @Summary      Check that the caller is an admin
// @Tags         test
// @Produce      json
// @Success      200 {object} APIResponse[WhoAmIResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /test/admin [get]
func (h *TestHandler) Admin(c *gin.Context) {
	h.whoAmI(c, "Admin access granted")
}

func (h *TestHandler) whoAmI(c *gin.Context, message string) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	h.Success(c, WhoAmIResponse{
		Message:  message,
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	})
}

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	startTime time.Time
	version   string
	timeout   time.Duration
	checks    map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler. Nil checks are skipped.
func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		timeout:   2 * time.Second,
		checks:    active,
	}
}

// HealthResponse represents the liveness response
// @name HandlerHealthResponse
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// ReadinessResponse reports every dependency check
type ReadinessResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// Live godoc
// @ID           healthLive
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, HealthResponse{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready godoc
// @ID           healthReady
// @Summary      Readiness probe
// @Description  Pings the database and, when configured, Redis.
// @Tags         health
// @Produce      json
// @Success      200 {object} APIResponse[ReadinessResponse]
// @Failure      503 {object} APIResponse[ReadinessResponse]
// @Router       /health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			logger.L(ctx).Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "down"
			resp.Status = "not_ready"
			continue
		}
		resp.Checks[name] = "up"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}
