// internal/stages/extract-product-info/handler.go
package extractproductinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/common/genai"
	"stylist-pipeline/internal/common/metrics"
	"stylist-pipeline/internal/models"
)

const StageName = "extract"

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// ModelService is the slice of the genai adapter this stage uses.
type ModelService interface {
	GenerateStructured(ctx context.Context, req genai.StructuredRequest) (json.RawMessage, error)
}

type Handler struct {
	config *Config
	model  ModelService
	logger Logger
}

func NewHandler(config *Config, model ModelService, log Logger) *Handler {
	return &Handler{
		config: config,
		model:  model,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute extracts product facts from the captured page. Schema mismatch
// earns one stricter-prompt retry; invocation failures and timeouts
// escalate immediately.
func (h *Handler) Execute(ctx context.Context, req *models.AnalysisRequest) (*models.ProductInfo, error) {
	start := time.Now()

	product, err := h.execute(ctx, req)

	metrics.StageDuration.WithLabelValues(StageName).Observe(time.Since(start).Seconds())
	if err != nil {
		if se, ok := cerrors.AsStandard(err); ok {
			metrics.StageFailures.WithLabelValues(StageName, string(se.Code)).Inc()
		} else {
			metrics.StageFailures.WithLabelValues(StageName, string(cerrors.ErrCodeInternal)).Inc()
		}
	}
	return product, err
}

func (h *Handler) execute(ctx context.Context, req *models.AnalysisRequest) (*models.ProductInfo, error) {
	htmlContent := truncateHTML(req.HTMLContent, h.config.HTMLMaxChars)

	h.logger.Info("extracting product facts", map[string]interface{}{
		"requestId":     req.RequestID,
		"pageUrl":       req.PageURL,
		"htmlChars":     len(htmlContent),
		"hasScreenshot": req.HasScreenshot(),
	})

	retryBudget := cerrors.GetRetryCount(cerrors.ErrCodeValidation)
	var lastErr error

	for attempt := 0; attempt <= retryBudget; attempt++ {
		strict := attempt > 0
		if strict {
			h.logger.Warn("retrying extraction with stricter prompt", map[string]interface{}{
				"requestId": req.RequestID,
				"attempt":   attempt,
				"cause":     lastErr.Error(),
			})

			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, cerrors.NewStageTimeoutError(StageName, h.config.Budget)
			}
		}

		doc, err := h.model.GenerateStructured(ctx, genai.StructuredRequest{
			Credential: req.Credential,
			Depth:      genai.DepthFast,
			Prompt:     buildPrompt(req, htmlContent, strict),
			Images:     screenshotParts(req),
			Schema:     productSchema(),
		})
		if err == nil {
			return decodeProduct(doc)
		}

		if ctx.Err() != nil {
			return nil, cerrors.NewStageTimeoutError(StageName, h.config.Budget)
		}
		if errors.Is(err, genai.ErrInvalidOutput) {
			lastErr = err
			continue
		}
		return nil, cerrors.NewInvocationError(StageName, err)
	}

	return nil, cerrors.NewValidationError(StageName, lastErr.Error())
}

func buildPrompt(req *models.AnalysisRequest, htmlContent string, strict bool) string {
	var sb strings.Builder

	sb.WriteString("Extract the facts about the single product being sold on this shopping page.\n")
	sb.WriteString("Answer with a JSON object holding: name, color, brand, price, category, material, description.\n")
	sb.WriteString("category is the garment type (e.g. jacket, jeans, sneakers, dress, accessory).\n")
	sb.WriteString("Use an empty string for anything the page does not state. Never invent values.\n")

	if strict {
		sb.WriteString("\nYour previous answer did not match the required shape. ")
		sb.WriteString("Respond with ONLY the JSON object, no prose, no markdown fences, ")
		sb.WriteString("with every key present: name, color, brand, price, category, material, description. ")
		sb.WriteString("name and category must be non-empty strings.\n")
	}

	fmt.Fprintf(&sb, "\nPage title: %s\n", req.PageTitle)
	fmt.Fprintf(&sb, "Page URL: %s\n", req.PageURL)
	fmt.Fprintf(&sb, "\nPage HTML:\n%s\n", htmlContent)

	if req.HasScreenshot() {
		sb.WriteString("\nA screenshot of the page is attached; prefer it when the HTML is ambiguous.\n")
	}

	return sb.String()
}

func screenshotParts(req *models.AnalysisRequest) []genai.ImagePart {
	if !req.HasScreenshot() {
		return nil
	}
	return []genai.ImagePart{{
		Format: genai.NormalizeFormat(req.ScreenshotFormat),
		Data:   req.Screenshot,
	}}
}

func decodeProduct(doc json.RawMessage) (*models.ProductInfo, error) {
	var raw rawProduct
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, cerrors.NewValidationError(StageName, fmt.Sprintf("decode product: %v", err))
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return nil, cerrors.NewValidationError(StageName, "product name is empty")
	}

	return &models.ProductInfo{
		Name:        name,
		Color:       strings.TrimSpace(raw.Color),
		Brand:       strings.TrimSpace(raw.Brand),
		Price:       priceToString(raw.Price),
		Category:    models.ParseCategory(raw.Category),
		Material:    strings.TrimSpace(raw.Material),
		Description: strings.TrimSpace(raw.Description),
	}, nil
}

func priceToString(price interface{}) string {
	switch v := price.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// truncateHTML caps the page markup fed to the model. Pages routinely carry
// hundreds of KB of scripts; the product facts live near the top.
func truncateHTML(htmlContent string, maxChars int) string {
	if maxChars <= 0 || len(htmlContent) <= maxChars {
		return htmlContent
	}
	return htmlContent[:maxChars]
}
