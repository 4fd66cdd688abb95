// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"stylist-pipeline/internal/common/config"
	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/common/genai"
	"stylist-pipeline/internal/common/metrics"
	"stylist-pipeline/internal/common/observability"
	"stylist-pipeline/internal/models"
	analyzestyling "stylist-pipeline/internal/stages/analyze-styling"
	extractproductinfo "stylist-pipeline/internal/stages/extract-product-info"
	generatetryonimages "stylist-pipeline/internal/stages/generate-tryon-images"
	"stylist-pipeline/internal/wardrobe"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// ExtractStage produces product facts from the captured page.
type ExtractStage interface {
	Execute(ctx context.Context, req *models.AnalysisRequest) (*models.ProductInfo, error)
}

// AnalysisStage scores the product against the wardrobe.
type AnalysisStage interface {
	Execute(ctx context.Context, input *analyzestyling.Input) (*models.StylingAnalysis, error)
}

// ImageStage renders the try-on set: one gated primary call, then the
// isolated angle fan-out.
type ImageStage interface {
	GeneratePrimary(ctx context.Context, input *generatetryonimages.Input) (*genai.GeneratedImage, error)
	GenerateAngles(ctx context.Context, credential string, primary *genai.GeneratedImage) models.TryOnImageSet
}

// Deps wires the orchestrator. Metrics and Tracing may be nil; the
// orchestrator then skips those signals.
type Deps struct {
	Config   *config.Config
	Wardrobe wardrobe.Provider
	Extract  ExtractStage
	Analyze  AnalysisStage
	Images   ImageStage
	Observer StatusObserver
	Metrics  *observability.Observability
	Tracing  *observability.Tracing
	Logger   Logger
}

// Orchestrator owns the stage order and the per-stage deadlines. All state
// for a run lives on the goroutine executing Run; nothing is shared between
// concurrent requests.
type Orchestrator struct {
	cfg      *config.Config
	wardrobe wardrobe.Provider
	extract  ExtractStage
	analyze  AnalysisStage
	images   ImageStage
	observer StatusObserver
	obs      *observability.Observability
	tracing  *observability.Tracing
	logger   Logger
}

func NewOrchestrator(deps Deps) *Orchestrator {
	observer := deps.Observer
	if observer == nil {
		observer = NoopStatusObserver{}
	}
	return &Orchestrator{
		cfg:      deps.Config,
		wardrobe: deps.Wardrobe,
		extract:  deps.Extract,
		analyze:  deps.Analyze,
		images:   deps.Images,
		observer: observer,
		obs:      deps.Metrics,
		tracing:  deps.Tracing,
		logger:   deps.Logger.With(map[string]interface{}{"component": "pipeline"}),
	}
}

// Run executes the full pipeline for one request and always returns a
// result; failures are folded into it rather than escaping as errors.
func (o *Orchestrator) Run(ctx context.Context, req *models.AnalysisRequest) *models.AnalysisResult {
	start := time.Now()
	logger := o.logger.With(map[string]interface{}{
		"requestId": req.RequestID,
		"userId":    req.UserID,
	})
	logger.Info("pipeline started", map[string]interface{}{
		"pageUrl": req.PageURL,
	})

	result := o.run(ctx, req, logger)

	status := string(result.Status)
	metrics.PipelineRequests.WithLabelValues(status).Inc()
	if o.obs != nil {
		o.obs.RecordRequestProcessed(ctx, status)
		o.obs.RecordRequestDuration(ctx, time.Since(start), status)
	}

	logger.Info("pipeline finished", map[string]interface{}{
		"status":     status,
		"durationMs": time.Since(start).Milliseconds(),
	})

	// The terminal update must land even when the caller's context is
	// already cancelled, otherwise pollers never learn the outcome.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	o.observer.Publish(notifyCtx, StatusUpdate{
		RequestID: req.RequestID,
		State:     terminalState(result.Status),
		Result:    result,
		Timestamp: time.Now().UTC(),
	})

	return result
}

func (o *Orchestrator) run(ctx context.Context, req *models.AnalysisRequest, logger Logger) *models.AnalysisResult {
	// Profile and wardrobe are read fresh on every request; nothing about
	// the user is cached between runs.
	profile, items, err := o.fetchUser(ctx, req.UserID)
	if err != nil {
		logger.Error("user lookup failed", map[string]interface{}{"error": err.Error()})
		return Aggregate(req.RequestID, nil, nil, models.TryOnImageSet{}, err)
	}

	o.transition(ctx, req.RequestID, StateExtracting)
	product, err := o.runExtract(ctx, req)
	if err != nil {
		logger.Error("extraction failed", map[string]interface{}{"error": err.Error()})
		return Aggregate(req.RequestID, nil, nil, models.TryOnImageSet{}, err)
	}

	o.transition(ctx, req.RequestID, StateAnalyzing)
	analysis, err := o.runAnalysis(ctx, req, product, profile, items)
	if err != nil {
		logger.Error("analysis failed", map[string]interface{}{"error": err.Error()})
		return Aggregate(req.RequestID, product, nil, models.TryOnImageSet{}, err)
	}

	o.transition(ctx, req.RequestID, StateGeneratingPrimary)
	primary, err := o.runPrimary(ctx, req, product, profile, analysis, items)
	if err != nil {
		logger.Error("primary rendition failed", map[string]interface{}{"error": err.Error()})
		return Aggregate(req.RequestID, product, analysis, models.TryOnImageSet{}, err)
	}

	o.transition(ctx, req.RequestID, StateGeneratingAngles)
	images := o.runAngles(ctx, req, primary)

	return Aggregate(req.RequestID, product, analysis, images, nil)
}

func (o *Orchestrator) fetchUser(ctx context.Context, userID string) (*models.UserProfile, []models.WardrobeItem, error) {
	profile, err := o.wardrobe.FetchProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, wardrobe.ErrUserNotFound) {
			return nil, nil, cerrors.NewUserNotFoundError(userID)
		}
		return nil, nil, cerrors.NewProviderError("wardrobe", err)
	}

	items, err := o.wardrobe.FetchWardrobe(ctx, userID)
	if err != nil {
		if errors.Is(err, wardrobe.ErrUserNotFound) {
			return nil, nil, cerrors.NewUserNotFoundError(userID)
		}
		return nil, nil, cerrors.NewProviderError("wardrobe", err)
	}

	return profile, items, nil
}

func (o *Orchestrator) runExtract(ctx context.Context, req *models.AnalysisRequest) (*models.ProductInfo, error) {
	ctx, span := o.startSpan(ctx, extractproductinfo.StageName, req.RequestID)
	defer span.End()
	defer o.recordStage(ctx, extractproductinfo.StageName, time.Now())

	stageCtx, cancel := context.WithTimeout(ctx, config.StageBudget(o.cfg, extractproductinfo.StageName))
	defer cancel()

	metrics.PipelineActive.WithLabelValues(extractproductinfo.StageName).Inc()
	defer metrics.PipelineActive.WithLabelValues(extractproductinfo.StageName).Dec()

	return o.extract.Execute(stageCtx, req)
}

func (o *Orchestrator) runAnalysis(ctx context.Context, req *models.AnalysisRequest, product *models.ProductInfo, profile *models.UserProfile, items []models.WardrobeItem) (*models.StylingAnalysis, error) {
	ctx, span := o.startSpan(ctx, analyzestyling.StageName, req.RequestID)
	defer span.End()
	defer o.recordStage(ctx, analyzestyling.StageName, time.Now())

	stageCtx, cancel := context.WithTimeout(ctx, config.StageBudget(o.cfg, analyzestyling.StageName))
	defer cancel()

	metrics.PipelineActive.WithLabelValues(analyzestyling.StageName).Inc()
	defer metrics.PipelineActive.WithLabelValues(analyzestyling.StageName).Dec()

	return o.analyze.Execute(stageCtx, &analyzestyling.Input{
		Request:  req,
		Product:  product,
		Profile:  profile,
		Wardrobe: items,
	})
}

func (o *Orchestrator) runPrimary(ctx context.Context, req *models.AnalysisRequest, product *models.ProductInfo, profile *models.UserProfile, analysis *models.StylingAnalysis, items []models.WardrobeItem) (*genai.GeneratedImage, error) {
	ctx, span := o.startSpan(ctx, generatetryonimages.StagePrimary, req.RequestID)
	defer span.End()
	defer o.recordStage(ctx, generatetryonimages.StagePrimary, time.Now())

	stageCtx, cancel := context.WithTimeout(ctx, config.StageBudget(o.cfg, generatetryonimages.StagePrimary))
	defer cancel()

	metrics.PipelineActive.WithLabelValues(generatetryonimages.StagePrimary).Inc()
	defer metrics.PipelineActive.WithLabelValues(generatetryonimages.StagePrimary).Dec()

	return o.images.GeneratePrimary(stageCtx, &generatetryonimages.Input{
		Request:  req,
		Product:  product,
		Profile:  profile,
		Analysis: analysis,
		Wardrobe: items,
	})
}

// runAngles leaves the per-angle deadlines to the image stage; the three
// calls run concurrently under the request context so a caller cancel still
// reaches them.
func (o *Orchestrator) runAngles(ctx context.Context, req *models.AnalysisRequest, primary *genai.GeneratedImage) models.TryOnImageSet {
	ctx, span := o.startSpan(ctx, generatetryonimages.StageAngle, req.RequestID)
	defer span.End()
	defer o.recordStage(ctx, generatetryonimages.StageAngle, time.Now())

	metrics.PipelineActive.WithLabelValues(generatetryonimages.StageAngle).Inc()
	defer metrics.PipelineActive.WithLabelValues(generatetryonimages.StageAngle).Dec()

	return o.images.GenerateAngles(ctx, req.Credential, primary)
}

// recordStage is deferred with the stage's start time so the histogram sees
// the full stage wall time, timeouts included.
func (o *Orchestrator) recordStage(ctx context.Context, stage string, start time.Time) {
	if o.obs != nil {
		o.obs.RecordStageDuration(ctx, stage, time.Since(start))
	}
}

func (o *Orchestrator) transition(ctx context.Context, requestID string, state StageState) {
	o.observer.Publish(ctx, StatusUpdate{
		RequestID: requestID,
		State:     state,
		Timestamp: time.Now().UTC(),
	})
}

func (o *Orchestrator) startSpan(ctx context.Context, stage, requestID string) (context.Context, trace.Span) {
	if o.tracing == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracing.StartStageSpan(ctx, stage, requestID)
}
