// internal/stages/generate-tryon-images/handler.go
package generatetryonimages

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/common/genai"
	"stylist-pipeline/internal/common/metrics"
	"stylist-pipeline/internal/imagestore"
	"stylist-pipeline/internal/models"
)

const (
	StagePrimary = "primary"
	StageAngle   = "angle"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// ModelService is the slice of the genai adapter this stage uses.
type ModelService interface {
	SynthesizeImage(ctx context.Context, req genai.ImageRequest) (*genai.GeneratedImage, error)
}

// ImageResolver turns stored image handles into bytes.
type ImageResolver interface {
	Resolve(ctx context.Context, handle string) (*imagestore.ResolvedImage, error)
}

// Input carries everything the renditions need. Analysis and Product come
// from the preceding stages' successful outputs.
type Input struct {
	Request  *models.AnalysisRequest
	Product  *models.ProductInfo
	Profile  *models.UserProfile
	Analysis *models.StylingAnalysis
	Wardrobe []models.WardrobeItem
}

type Handler struct {
	config   *Config
	model    ModelService
	resolver ImageResolver
	logger   Logger
}

func NewHandler(config *Config, model ModelService, resolver ImageResolver, log Logger) *Handler {
	return &Handler{
		config:   config,
		model:    model,
		resolver: resolver,
		logger: log.With(map[string]interface{}{
			"stage": "images",
		}),
	}
}

// GeneratePrimary renders the front-view composite. Any failure here is
// terminal for the request; without a front image there is nothing to show.
func (h *Handler) GeneratePrimary(ctx context.Context, input *Input) (*genai.GeneratedImage, error) {
	start := time.Now()

	image, err := h.generatePrimary(ctx, input)

	metrics.StageDuration.WithLabelValues(StagePrimary).Observe(time.Since(start).Seconds())
	if err != nil {
		if se, ok := cerrors.AsStandard(err); ok {
			metrics.StageFailures.WithLabelValues(StagePrimary, string(se.Code)).Inc()
		} else {
			metrics.StageFailures.WithLabelValues(StagePrimary, string(cerrors.ErrCodeInternal)).Inc()
		}
	}
	return image, err
}

func (h *Handler) generatePrimary(ctx context.Context, input *Input) (*genai.GeneratedImage, error) {
	refs, labels, err := h.collectReferences(ctx, input)
	if err != nil {
		return nil, err
	}

	h.logger.Info("generating primary rendition", map[string]interface{}{
		"requestId":  input.Request.RequestID,
		"references": len(refs),
	})

	image, err := h.model.SynthesizeImage(ctx, genai.ImageRequest{
		Credential:  input.Request.Credential,
		Capability:  genai.CapabilityPrimaryTryOn,
		Instruction: buildPrimaryInstruction(input.Product, input.Analysis, labels),
		References:  refs,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, cerrors.NewStageTimeoutError(StagePrimary, h.config.PrimaryBudget)
		}
		return nil, cerrors.NewInvocationError(StagePrimary, err)
	}
	return image, nil
}

// collectReferences assembles the primary call's reference images in a fixed
// order: user photo, product capture, then selected wardrobe pieces. The user
// photo is mandatory; wardrobe images are best effort.
func (h *Handler) collectReferences(ctx context.Context, input *Input) ([]genai.ImagePart, []string, error) {
	photo, err := h.resolver.Resolve(ctx, input.Profile.PhotoRef)
	if err != nil {
		return nil, nil, cerrors.NewProviderError("imagestore",
			fmt.Errorf("user photo %q: %w", input.Profile.PhotoRef, err))
	}

	refs := []genai.ImagePart{{Format: genai.NormalizeFormat(photo.MIMEType), Data: photo.Data}}
	labels := []string{"the person to dress"}

	if input.Request.HasScreenshot() {
		refs = append(refs, genai.ImagePart{
			Format: genai.NormalizeFormat(input.Request.ScreenshotFormat),
			Data:   input.Request.Screenshot,
		})
		labels = append(labels, "the shopping page showing the product")
	}

	byID := models.ItemsByID(input.Wardrobe)
	attached := 0
	for _, selected := range input.Analysis.SelectedItems {
		if attached >= h.config.MaxWardrobeRefs {
			break
		}
		item, ok := byID[selected.ID]
		if !ok || strings.TrimSpace(item.ImageRef) == "" {
			continue
		}
		resolved, err := h.resolver.Resolve(ctx, item.ImageRef)
		if err != nil {
			h.logger.Warn("skipping wardrobe reference", map[string]interface{}{
				"itemId": item.ID,
				"error":  err.Error(),
			})
			continue
		}
		refs = append(refs, genai.ImagePart{Format: genai.NormalizeFormat(resolved.MIMEType), Data: resolved.Data})
		labels = append(labels, fmt.Sprintf("the wardrobe item %q", item.Name))
		attached++
	}

	return refs, labels, nil
}

// GenerateAngles fans out the three secondary viewpoints and joins on all of
// them. Failures are folded, never escalated: the returned set carries the
// front rendition plus whichever angles came back.
func (h *Handler) GenerateAngles(ctx context.Context, credential string, primary *genai.GeneratedImage) models.TryOnImageSet {
	start := time.Now()

	images := models.TryOnImageSet{}
	images.Set(models.AngleFront, primary.DataURL())

	reference := genai.ImagePart{
		Format: genai.NormalizeFormat(primary.MIMEType),
		Data:   primary.Data,
	}

	angles := models.SecondaryAngles()
	outcomes := make([]angleOutcome, len(angles))

	var wg sync.WaitGroup
	for i, angle := range angles {
		wg.Add(1)
		go func(i int, angle models.Angle) {
			defer wg.Done()
			outcomes[i] = h.generateAngle(ctx, credential, angle, reference)
		}(i, angle)
	}
	wg.Wait()

	metrics.StageDuration.WithLabelValues(StageAngle).Observe(time.Since(start).Seconds())

	for _, outcome := range outcomes {
		if outcome.err != nil {
			metrics.AngleFailures.WithLabelValues(string(outcome.angle)).Inc()
			h.logger.Warn("angle rendition failed", map[string]interface{}{
				"angle": string(outcome.angle),
				"error": outcome.err.Error(),
			})
			continue
		}
		images.Set(outcome.angle, outcome.image.DataURL())
	}

	return images
}

type angleOutcome struct {
	angle models.Angle
	image *genai.GeneratedImage
	err   error
}

func (h *Handler) generateAngle(ctx context.Context, credential string, angle models.Angle, reference genai.ImagePart) angleOutcome {
	angleCtx, cancel := context.WithTimeout(ctx, h.config.AngleBudget)
	defer cancel()

	image, err := h.model.SynthesizeImage(angleCtx, genai.ImageRequest{
		Credential:  credential,
		Capability:  genai.CapabilityAngleVariant,
		Instruction: angleInstruction(angle),
		References:  []genai.ImagePart{reference},
	})
	if err != nil {
		if angleCtx.Err() != nil {
			err = cerrors.NewStageTimeoutError(StageAngle, h.config.AngleBudget)
		}
		return angleOutcome{angle: angle, err: err}
	}
	return angleOutcome{angle: angle, image: image}
}

func buildPrimaryInstruction(product *models.ProductInfo, analysis *models.StylingAnalysis, labels []string) string {
	var sb strings.Builder

	sb.WriteString("Render one photorealistic front-view photo of the person wearing the product.\n")
	sb.WriteString("Keep the person's face, hair, build and skin tone exactly as in their photo.\n")
	sb.WriteString("Keep the product's color, pattern and details exactly as shown on the page.\n\n")

	for i, label := range labels {
		fmt.Fprintf(&sb, "Reference image %d is %s.\n", i+1, label)
	}

	fmt.Fprintf(&sb, "\nProduct: %s", product.Name)
	if product.Color != "" {
		fmt.Fprintf(&sb, ", %s", product.Color)
	}
	if product.Brand != "" {
		fmt.Fprintf(&sb, " by %s", product.Brand)
	}
	sb.WriteString("\n")

	if len(analysis.SelectedItems) > 0 {
		sb.WriteString("Complete the outfit with these pieces from the person's wardrobe:\n")
		for _, item := range analysis.SelectedItems {
			fmt.Fprintf(&sb, "- %s (%s)\n", item.Name, item.Category)
		}
	}

	sb.WriteString("\nFull body, natural pose, soft lighting, plain studio background.")
	return sb.String()
}

func angleInstruction(angle models.Angle) string {
	var view string
	switch angle {
	case models.AngleLeft:
		view = "left profile"
	case models.AngleRight:
		view = "right profile"
	case models.AngleBack:
		view = "back view"
	default:
		view = string(angle)
	}
	return fmt.Sprintf("Show the same person, outfit and setting from the %s. "+
		"Change nothing about the person, the clothing or the lighting; only the camera moves.", view)
}
