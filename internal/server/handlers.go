// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stylist-pipeline/internal/common/config"
	"stylist-pipeline/internal/common/database"
	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/common/validation"
	"stylist-pipeline/internal/models"
	"stylist-pipeline/internal/notify"
	"stylist-pipeline/internal/pipeline"
	"stylist-pipeline/internal/wardrobe"
)

// maxRequestBytes caps the request body. Captured pages carry full HTML and
// a base64 screenshot, so the cap is generous.
const maxRequestBytes = 25 << 20

// notifyTimeout bounds the post-response notification send.
const notifyTimeout = 10 * time.Second

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// PipelineRunner executes one styling run. It always returns a terminal
// result, never an error.
type PipelineRunner interface {
	Run(ctx context.Context, req *models.AnalysisRequest) *models.AnalysisResult
}

// ResultNotifier delivers the terminal result to the user out of band.
type ResultNotifier interface {
	NotifyResult(ctx context.Context, profile *models.UserProfile, result *models.AnalysisResult) *notify.Delivery
}

// ==========================
// 1. Analyze Handler
// ==========================

// AnalyzeHandler serves POST /analyze-and-style. It owns request decoding
// and validation; everything after that belongs to the pipeline.
type AnalyzeHandler struct {
	runner   PipelineRunner
	provider wardrobe.Provider
	notifier ResultNotifier
	errors   *cerrors.ErrorHandler
	logger   Logger
}

func NewAnalyzeHandler(runner PipelineRunner, provider wardrobe.Provider, notifier ResultNotifier, errHandler *cerrors.ErrorHandler, logger Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		runner:   runner,
		provider: provider,
		notifier: notifier,
		errors:   errHandler,
		logger:   logger.With(map[string]interface{}{"component": "analyze-handler"}),
	}
}

func (h *AnalyzeHandler) Handle(c *gin.Context) {
	requestID := uuid.New().String()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.reject(c, requestID, cerrors.NewParseError("request body unreadable: "+err.Error()))
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		h.reject(c, requestID, cerrors.NewParseError("request body is not valid JSON"))
		return
	}

	if result := validation.ValidateInput(payload, requestSchema()); result.HasErrors() {
		h.reject(c, requestID, cerrors.NewParseError(strings.Join(result.GetErrorMessages(), "; ")))
		return
	}

	var req analyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.reject(c, requestID, cerrors.NewParseError("request fields have wrong types"))
		return
	}

	if req.HTMLContent == "" && req.ScreenshotImage == "" {
		h.reject(c, requestID, cerrors.NewParseError("one of htmlContent or screenshotImage is required"))
		return
	}
	if !validation.ValidateURL(req.PageURL) {
		h.reject(c, requestID, cerrors.NewParseError("pageUrl is not a valid URL"))
		return
	}

	screenshot, screenshotFormat, err := decodeScreenshot(req.ScreenshotImage)
	if err != nil {
		h.reject(c, requestID, cerrors.NewParseError(err.Error()))
		return
	}

	analysisReq := &models.AnalysisRequest{
		RequestID:        requestID,
		UserID:           req.UserID,
		Credential:       req.Credential,
		PageURL:          req.PageURL,
		PageTitle:        req.PageTitle,
		HTMLContent:      req.HTMLContent,
		Screenshot:       screenshot,
		ScreenshotFormat: screenshotFormat,
	}

	h.logger.Info("Accepted styling request", map[string]interface{}{
		"requestId":     requestID,
		"userId":        req.UserID,
		"pageUrl":       req.PageURL,
		"hasHtml":       req.HTMLContent != "",
		"hasScreenshot": len(screenshot) > 0,
	})

	result := h.runner.Run(c.Request.Context(), analysisReq)

	if h.notifier != nil {
		go h.notifyOutcome(req.UserID, result)
	}

	c.JSON(statusForResult(result), result)
}

// reject answers a request that never reached the pipeline. The body mirrors
// the failed-result shape so clients parse one format.
func (h *AnalyzeHandler) reject(c *gin.Context, requestID string, err error) {
	status, fields := h.errors.Handle(requestID, err)
	c.JSON(status, gin.H{
		"requestId": requestID,
		"status":    string(models.StatusFailed),
		"error":     fields,
	})
}

// notifyOutcome re-fetches the profile and sends the completion notice. Runs
// after the response is written; failures are logged, never surfaced.
func (h *AnalyzeHandler) notifyOutcome(userID string, result *models.AnalysisResult) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	profile, err := h.provider.FetchProfile(ctx, userID)
	if err != nil {
		h.logger.Warn("Skipping notification, profile unavailable", map[string]interface{}{
			"requestId": result.RequestID,
			"userId":    userID,
			"error":     err.Error(),
		})
		return
	}

	delivery := h.notifier.NotifyResult(ctx, profile, result)
	h.logger.Info("Completion notification attempted", map[string]interface{}{
		"requestId":      result.RequestID,
		"notificationId": delivery.NotificationID,
		"status":         delivery.Status,
	})
}

// statusForResult maps a terminal result onto an HTTP status. Pipeline
// failures still answer 200 with status "failed" in the body; only lookup
// problems earn an error status.
func statusForResult(result *models.AnalysisResult) int {
	if result.Status != models.StatusFailed || result.Error == nil {
		return http.StatusOK
	}
	return cerrors.HTTPStatusFor(&cerrors.StandardError{Code: cerrors.ErrorCode(result.Error.Code)})
}

// ==========================
// 2. Status Handler
// ==========================

// StatusHandler serves GET /status/:request_id from the retained Redis copy
// of the last terminal update.
type StatusHandler struct {
	redis  *database.RedisClient
	config config.StatusConfig
	logger Logger
}

func NewStatusHandler(redis *database.RedisClient, cfg config.StatusConfig, logger Logger) *StatusHandler {
	return &StatusHandler{
		redis:  redis,
		config: cfg,
		logger: logger.With(map[string]interface{}{"component": "status-handler"}),
	}
}

func (h *StatusHandler) Handle(c *gin.Context) {
	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_id is required"})
		return
	}

	if h.redis == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status store not available"})
		return
	}

	raw, err := h.redis.Get(c.Request.Context(), pipeline.StatusKey(h.config.ChannelPrefix, requestID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no status for request", "requestId": requestID})
		return
	}

	// The retained value is the StatusUpdate JSON; pass it through verbatim.
	c.Data(http.StatusOK, "application/json", []byte(raw))
}

// ==========================
// 3. Health Handlers
// ==========================

// HealthHandler answers liveness and readiness probes.
type HealthHandler struct {
	app      config.AppConfig
	postgres *database.PostgresClient
	redis    *database.RedisClient
}

func NewHealthHandler(app config.AppConfig, postgres *database.PostgresClient, redis *database.RedisClient) *HealthHandler {
	return &HealthHandler{app: app, postgres: postgres, redis: redis}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.app.Name,
		"version": h.app.Version,
	})
}

// Ready pings the dependencies this instance was wired with. A nil client
// means the dependency is not in use and does not gate readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if h.postgres != nil {
		if err := h.postgres.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			ready = false
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
