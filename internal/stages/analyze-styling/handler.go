// internal/stages/analyze-styling/handler.go
package analyzestyling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/common/genai"
	"stylist-pipeline/internal/common/metrics"
	"stylist-pipeline/internal/models"
)

const StageName = "analysis"

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

// Input gathers everything the scoring call needs.
type Input struct {
	Request  *models.AnalysisRequest
	Product  *models.ProductInfo
	Profile  *models.UserProfile
	Wardrobe []models.WardrobeItem
}

// Execute scores the product against the wardrobe and picks at most one
// item per category. An empty candidate set short-circuits to a neutral
// result without a model call.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.StylingAnalysis, error) {
	start := time.Now()

	analysis, err := h.execute(ctx, input)

	metrics.StageDuration.WithLabelValues(StageName).Observe(time.Since(start).Seconds())
	if err != nil {
		if se, ok := cerrors.AsStandard(err); ok {
			metrics.StageFailures.WithLabelValues(StageName, string(se.Code)).Inc()
		} else {
			metrics.StageFailures.WithLabelValues(StageName, string(cerrors.ErrCodeInternal)).Inc()
		}
	}
	return analysis, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*models.StylingAnalysis, error) {
	visible := models.FilterByCategories(input.Wardrobe, models.VisibleCategories(input.Product.Category))

	h.logger.Info("analyzing styling fit", map[string]interface{}{
		"requestId":    input.Request.RequestID,
		"product":      input.Product.Name,
		"category":     string(input.Product.Category),
		"wardrobeSize": len(input.Wardrobe),
		"candidates":   len(visible),
	})

	if len(visible) == 0 {
		h.logger.Info("no wardrobe candidates, using neutral analysis", map[string]interface{}{
			"requestId": input.Request.RequestID,
		})
		return h.neutralAnalysis(input.Product), nil
	}

	retryBudget := cerrors.GetRetryCount(cerrors.ErrCodeValidation)
	var lastErr error

	for attempt := 0; attempt <= retryBudget; attempt++ {
		strict := attempt > 0
		if strict {
			h.logger.Warn("retrying analysis with stricter prompt", map[string]interface{}{
				"requestId": input.Request.RequestID,
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
			Credential: input.Request.Credential,
			Depth:      genai.DepthThorough,
			Prompt:     buildPrompt(input.Product, input.Profile, visible, strict),
			Schema:     analysisSchema(),
		})
		if err == nil {
			return h.decodeAnalysis(input.Request.RequestID, doc, visible, parseRestrictions(input.Profile))
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

// neutralAnalysis is the sparse-wardrobe answer: a middle score, nothing
// selected, and a tip that still mentions the product.
func (h *Handler) neutralAnalysis(product *models.ProductInfo) *models.StylingAnalysis {
	return &models.StylingAnalysis{
		FitScore:      models.ClampFitScore(h.config.NeutralFitScore),
		SelectedItems: []models.SelectedItem{},
		StylingTip:    fmt.Sprintf("Pair the %s with neutral basics until your wardrobe grows around it.", product.Name),
		Conflicts:     nil,
	}
}

func buildPrompt(product *models.ProductInfo, profile *models.UserProfile, visible []models.WardrobeItem, strict bool) string {
	var sb strings.Builder

	sb.WriteString("You are a personal stylist. Judge how well the new product fits this user's existing wardrobe.\n")
	sb.WriteString("Answer with a JSON object holding: fitScore (0-100), selectedItems, stylingTip, conflicts.\n")
	sb.WriteString("selectedItems pairs the product with wardrobe pieces: pick AT MOST ONE item per category,\n")
	sb.WriteString("only from the listed ids, each as {\"id\", \"matchReason\"}. Select nothing that clashes.\n")
	sb.WriteString("conflicts lists wardrobe pieces or color families that fight with the product, empty when none.\n")

	if strict {
		sb.WriteString("\nYour previous answer did not match the required shape. ")
		sb.WriteString("Respond with ONLY the JSON object, no prose, no markdown fences. ")
		sb.WriteString("fitScore must be a number and every selected item needs an id from the list and a matchReason.\n")
	}

	sb.WriteString("\nNew product:\n")
	fmt.Fprintf(&sb, "- name: %s\n", product.Name)
	fmt.Fprintf(&sb, "- category: %s\n", product.Category)
	writeIfSet(&sb, "color", product.Color)
	writeIfSet(&sb, "brand", product.Brand)
	writeIfSet(&sb, "material", product.Material)
	writeIfSet(&sb, "description", product.Description)

	sb.WriteString("\nUser:\n")
	if profile != nil {
		writeIfSet(&sb, "gender", profile.Gender)
		if profile.HeightCM > 0 {
			fmt.Fprintf(&sb, "- height: %d cm\n", profile.HeightCM)
		}
		if profile.WeightKG > 0 {
			fmt.Fprintf(&sb, "- weight: %d kg\n", profile.WeightKG)
		}
		writeIfSet(&sb, "skin tone", profile.SkinTone)
		if len(profile.StyleNotes) > 0 {
			fmt.Fprintf(&sb, "- style notes: %s\n", strings.Join(profile.StyleNotes, ", "))
		}
	}

	sb.WriteString("\nWardrobe candidates:\n")
	for _, item := range visible {
		fmt.Fprintf(&sb, "- id: %s | name: %s | category: %s | color: %s\n",
			item.ID, item.Name, item.Category, item.ColorHex)
	}

	return sb.String()
}

func writeIfSet(sb *strings.Builder, label, value string) {
	if strings.TrimSpace(value) != "" {
		fmt.Fprintf(sb, "- %s: %s\n", label, value)
	}
}

// decodeAnalysis turns the model document into a StylingAnalysis, enforcing
// the invariants the model cannot be trusted with: the score is clamped,
// unknown ids are dropped, restricted items become conflict notes, and one
// selection per category survives.
func (h *Handler) decodeAnalysis(requestID string, doc json.RawMessage, visible []models.WardrobeItem, restrictions []restriction) (*models.StylingAnalysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, cerrors.NewValidationError(StageName, fmt.Sprintf("decode analysis: %v", err))
	}

	var conflicts []string
	for _, c := range raw.Conflicts {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			conflicts = append(conflicts, trimmed)
		}
	}

	byID := models.ItemsByID(visible)
	seenCategory := make(map[models.Category]bool)
	selected := make([]models.SelectedItem, 0, len(raw.SelectedItems))

	for _, sel := range raw.SelectedItems {
		item, known := byID[sel.ID]
		if !known {
			h.logger.Warn("dropping selection with unknown item id", map[string]interface{}{
				"requestId": requestID,
				"itemId":    sel.ID,
			})
			continue
		}
		if vetoed, note := firstRestrictionHit(item, restrictions); vetoed {
			h.logger.Warn("dropping selection that conflicts with a stated preference", map[string]interface{}{
				"requestId":  requestID,
				"itemId":     sel.ID,
				"preference": note,
			})
			conflicts = append(conflicts, fmt.Sprintf("%s conflicts with your preference %q", item.Name, note))
			continue
		}
		if seenCategory[item.Category] {
			h.logger.Warn("dropping duplicate selection for category", map[string]interface{}{
				"requestId": requestID,
				"itemId":    sel.ID,
				"category":  string(item.Category),
			})
			continue
		}
		seenCategory[item.Category] = true

		selected = append(selected, models.SelectedItem{
			ID:          item.ID,
			Name:        item.Name,
			Category:    item.Category,
			ColorHex:    item.ColorHex,
			MatchReason: strings.TrimSpace(sel.MatchReason),
		})
	}

	analysis := &models.StylingAnalysis{
		FitScore:      models.ClampFitScore(int(math.Round(raw.FitScore))),
		SelectedItems: selected,
		StylingTip:    strings.TrimSpace(raw.StylingTip),
		Conflicts:     conflicts,
	}

	h.logger.Info("styling analysis complete", map[string]interface{}{
		"requestId": requestID,
		"fitScore":  analysis.FitScore,
		"selected":  len(analysis.SelectedItems),
		"conflicts": len(analysis.Conflicts),
	})

	return analysis, nil
}

// restriction is one exclusion the user stated in their style notes, kept
// with its original wording for the conflict message.
type restriction struct {
	term string
	note string
}

// parseRestrictions pulls vetoes out of the style notes. Notes phrased
// "no leather" or "avoid bright colors" become terms matched against item
// names and categories; everything else is advisory and stays prompt-only.
func parseRestrictions(profile *models.UserProfile) []restriction {
	if profile == nil {
		return nil
	}

	var restrictions []restriction
	for _, note := range profile.StyleNotes {
		trimmed := strings.TrimSpace(note)
		lower := strings.ToLower(trimmed)

		var term string
		switch {
		case strings.HasPrefix(lower, "no "):
			term = lower[len("no "):]
		case strings.HasPrefix(lower, "avoid "):
			term = lower[len("avoid "):]
		default:
			continue
		}

		if term = strings.TrimSpace(term); term != "" {
			restrictions = append(restrictions, restriction{term: term, note: trimmed})
		}
	}
	return restrictions
}

func firstRestrictionHit(item models.WardrobeItem, restrictions []restriction) (bool, string) {
	text := strings.ToLower(item.Name + " " + string(item.Category))
	for _, r := range restrictions {
		if strings.Contains(text, r.term) {
			return true, r.note
		}
	}
	return false, ""
}
