// test/e2e/pipeline_e2e_test.go
//
// Runs the full styling pipeline in process: real router, orchestrator,
// stage handlers, wardrobe provider, image resolver and status observer,
// with only the model service stubbed out.
package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stylist-pipeline/internal/common/config"
	"stylist-pipeline/internal/common/database"
	"stylist-pipeline/internal/common/genai"
	commonhttp "stylist-pipeline/internal/common/http"
	"stylist-pipeline/internal/common/logger"
	"stylist-pipeline/internal/imagestore"
	"stylist-pipeline/internal/models"
	"stylist-pipeline/internal/notify"
	"stylist-pipeline/internal/pipeline"
	"stylist-pipeline/internal/server"
	analyzestyling "stylist-pipeline/internal/stages/analyze-styling"
	extractproductinfo "stylist-pipeline/internal/stages/extract-product-info"
	generatetryonimages "stylist-pipeline/internal/stages/generate-tryon-images"
	"stylist-pipeline/internal/wardrobe"
	"stylist-pipeline/pkg/catalog"
)

// Logger adapters to bridge logger.Logger to package-specific Logger interfaces

type imagestoreLoggerAdapter struct {
	logger.Logger
}

func (a *imagestoreLoggerAdapter) With(fields map[string]interface{}) imagestore.Logger {
	return &imagestoreLoggerAdapter{a.Logger.With(fields)}
}

type extractLoggerAdapter struct {
	logger.Logger
}

func (a *extractLoggerAdapter) With(fields map[string]interface{}) extractproductinfo.Logger {
	return &extractLoggerAdapter{a.Logger.With(fields)}
}

type analysisLoggerAdapter struct {
	logger.Logger
}

func (a *analysisLoggerAdapter) With(fields map[string]interface{}) analyzestyling.Logger {
	return &analysisLoggerAdapter{a.Logger.With(fields)}
}

type imagesLoggerAdapter struct {
	logger.Logger
}

func (a *imagesLoggerAdapter) With(fields map[string]interface{}) generatetryonimages.Logger {
	return &imagesLoggerAdapter{a.Logger.With(fields)}
}

type pipelineLoggerAdapter struct {
	logger.Logger
}

func (a *pipelineLoggerAdapter) With(fields map[string]interface{}) pipeline.Logger {
	return &pipelineLoggerAdapter{a.Logger.With(fields)}
}

type serverLoggerAdapter struct {
	logger.Logger
}

func (a *serverLoggerAdapter) With(fields map[string]interface{}) server.Logger {
	return &serverLoggerAdapter{a.Logger.With(fields)}
}

// ==========================
// Stub model service
// ==========================

// stubModel answers both structured calls and image synthesis. Dispatch is
// on reasoning depth: extraction asks fast, analysis asks thorough.
type stubModel struct {
	mu          sync.Mutex
	credentials []string
	structured  int
	primary     int
	angles      int

	failExtract          error
	failAngleInstruction string
}

func (s *stubModel) GenerateStructured(ctx context.Context, req genai.StructuredRequest) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, req.Credential)
	s.structured++

	if req.Depth == genai.DepthFast {
		if s.failExtract != nil {
			return nil, s.failExtract
		}
		return json.RawMessage(`{
			"name": "Aurora Denim Jacket",
			"color": "indigo",
			"brand": "Atelier North",
			"price": "129.00",
			"category": "jacket",
			"material": "cotton denim",
			"description": "Relaxed fit trucker jacket with brushed hardware."
		}`), nil
	}

	return json.RawMessage(`{
		"fitScore": 84,
		"selectedItems": [
			{"id": "w-003", "matchReason": "The indigo wash echoes the jacket."},
			{"id": "w-005", "matchReason": "Clean white grounds the outfit."},
			{"id": "w-006", "matchReason": "Warm leather adds contrast."}
		],
		"stylingTip": "Roll the cuffs and keep the rest of the outfit minimal.",
		"conflicts": []
	}`), nil
}

func (s *stubModel) SynthesizeImage(ctx context.Context, req genai.ImageRequest) (*genai.GeneratedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, req.Credential)

	if req.Capability == genai.CapabilityPrimaryTryOn {
		s.primary++
		return &genai.GeneratedImage{MIMEType: "image/png", Data: pngPixel("front")}, nil
	}

	s.angles++
	if s.failAngleInstruction != "" && strings.Contains(req.Instruction, s.failAngleInstruction) {
		return nil, fmt.Errorf("%w: angle call returned text only", genai.ErrNoImageReturned)
	}
	return &genai.GeneratedImage{MIMEType: "image/png", Data: pngPixel(req.Instruction)}, nil
}

func (s *stubModel) snapshot() (structured, primary, angles int, credentials []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.structured, s.primary, s.angles, append([]string(nil), s.credentials...)
}

func pngPixel(tag string) []byte {
	return append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte(tag)...)
}

func pngDataURL(tag string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel(tag))
}

// testCatalog uses data URLs for every image handle so the real resolver
// works without S3 or HTTP.
func testCatalog() *catalog.WardrobeCatalog {
	return &catalog.WardrobeCatalog{
		Version: "1.0.0",
		Users: []catalog.UserEntry{
			{
				UserID:      "demo-user",
				DisplayName: "Jordan",
				Email:       "jordan@example.com",
				PhotoRef:    pngDataURL("user-photo"),
				Wardrobe: []catalog.ItemEntry{
					{ID: "w-003", Name: "Slim Indigo Jeans", Category: "bottom", ColorHex: "#2C3A57", ImageRef: pngDataURL("jeans")},
					{ID: "w-005", Name: "White Leather Sneakers", Category: "shoes", ColorHex: "#FAFAFA", ImageRef: pngDataURL("sneakers")},
					{ID: "w-006", Name: "Brown Leather Belt", Category: "accessory", ColorHex: "#5C4033", ImageRef: pngDataURL("belt")},
				},
			},
		},
	}
}

// ==========================
// Stack wiring
// ==========================

type notifiedResult struct {
	profile *models.UserProfile
	result  *models.AnalysisResult
}

type recordingNotifier struct {
	calls chan notifiedResult
}

func (n *recordingNotifier) NotifyResult(ctx context.Context, profile *models.UserProfile, result *models.AnalysisResult) *notify.Delivery {
	n.calls <- notifiedResult{profile: profile, result: result}
	return &notify.Delivery{NotificationID: "e2e-1", Status: notify.StatusSent, SentAt: time.Now().UTC().Format(time.RFC3339)}
}

type e2eStack struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	notifier *recordingNotifier
	cfg      *config.Config
}

func newStack(t *testing.T, stub *stubModel) *e2eStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	redisClient, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	cfg := &config.Config{
		App: config.AppConfig{Name: "stylist-pipeline", Version: "e2e", Environment: "test"},
		Pipeline: config.PipelineConfig{
			ExtractTimeout:  10000,
			AnalysisTimeout: 15000,
			PrimaryTimeout:  20000,
			AngleTimeout:    15000,
			HTMLMaxChars:    30000,
			MaxImageRefs:    5,
			MaxWardrobeRefs: 3,
		},
		Status: config.StatusConfig{Enabled: true, ChannelPrefix: "styling:status:", RetainTTL: 60000},
	}

	log := logger.NewTestLogger(t)

	provider := wardrobe.NewFileProviderFromCatalog(testCatalog())
	resolver := imagestore.NewResolver(nil, commonhttp.NewClient(2*time.Second), "", &imagestoreLoggerAdapter{log})

	extractHandler := extractproductinfo.NewHandler(
		&extractproductinfo.Config{HTMLMaxChars: cfg.Pipeline.HTMLMaxChars, Budget: 10 * time.Second},
		stub, &extractLoggerAdapter{log},
	)
	analysisHandler := analyzestyling.NewHandler(analyzestyling.LoadConfig(), stub, &analysisLoggerAdapter{log})
	imagesHandler := generatetryonimages.NewHandler(generatetryonimages.LoadConfig(), stub, resolver, &imagesLoggerAdapter{log})

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Config:   cfg,
		Wardrobe: provider,
		Extract:  extractHandler,
		Analyze:  analysisHandler,
		Images:   imagesHandler,
		Observer: pipeline.NewRedisStatusObserver(redisClient, cfg.Status, &pipelineLoggerAdapter{log}),
		Logger:   &pipelineLoggerAdapter{log},
	})

	notifier := &recordingNotifier{calls: make(chan notifiedResult, 4)}

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Runner:   orchestrator,
		Wardrobe: provider,
		Notifier: notifier,
		Redis:    redisClient,
		Logger:   &serverLoggerAdapter{log},
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &e2eStack{server: ts, redis: mr, notifier: notifier, cfg: cfg}
}

func (s *e2eStack) analyze(t *testing.T, body map[string]interface{}) (*http.Response, *models.AnalysisResult) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(s.server.URL+"/api/v1/analyze-and-style", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var result models.AnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp, &result
}

func (s *e2eStack) status(t *testing.T, requestID string) (*http.Response, *pipeline.StatusUpdate) {
	t.Helper()

	resp, err := http.Get(s.server.URL + "/api/v1/status/" + requestID)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	var update pipeline.StatusUpdate
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&update))
	return resp, &update
}

func analyzeBody() map[string]interface{} {
	return map[string]interface{}{
		"userId":      "demo-user",
		"credential":  "key-live-123",
		"pageUrl":     "https://shop.example.com/jackets/aurora",
		"pageTitle":   "Aurora Denim Jacket | Atelier North",
		"htmlContent": "<html><body><h1>Aurora Denim Jacket</h1><p>$129.00</p></body></html>",
	}
}

// ==========================
// Scenarios
// ==========================

func TestStylingPipelineEndToEnd(t *testing.T) {
	stub := &stubModel{}
	stack := newStack(t, stub)

	resp, result := stack.analyze(t, analyzeBody())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, models.StatusComplete, result.Status)
	require.NotEmpty(t, result.RequestID)
	require.Nil(t, result.Error)

	// Product facts come from the extraction stage.
	require.NotNil(t, result.Product)
	assert.Equal(t, "Aurora Denim Jacket", result.Product.Name)
	assert.Equal(t, "Atelier North", result.Product.Brand)
	assert.Equal(t, models.CategoryOuterwear, result.Product.Category)

	// Selections carry wardrobe truth, not model output.
	assert.Equal(t, 84, result.FitScore)
	require.Len(t, result.SelectedItems, 3)
	names := []string{result.SelectedItems[0].Name, result.SelectedItems[1].Name, result.SelectedItems[2].Name}
	assert.Contains(t, names, "Slim Indigo Jeans")
	assert.Contains(t, names, "White Leather Sneakers")
	assert.Contains(t, names, "Brown Leather Belt")
	assert.Equal(t, "Roll the cuffs and keep the rest of the outfit minimal.", result.StylingTip)

	// All four renditions present, front distinct from the variants.
	for _, angle := range []models.Angle{models.AngleFront, models.AngleLeft, models.AngleRight, models.AngleBack} {
		img := result.GeneratedImages.Get(angle)
		assert.True(t, strings.HasPrefix(img, "data:image/png;base64,"), "missing %s rendition", angle)
	}
	assert.NotEqual(t, result.GeneratedImages.Front, result.GeneratedImages.Left)

	// Two structured calls, one primary, three angles; the credential rode
	// on every one of them.
	structured, primary, angles, credentials := stub.snapshot()
	assert.Equal(t, 2, structured)
	assert.Equal(t, 1, primary)
	assert.Equal(t, 3, angles)
	require.Len(t, credentials, 6)
	for _, cred := range credentials {
		assert.Equal(t, "key-live-123", cred)
	}

	// The terminal update is retained for pollers.
	statusResp, update := stack.status(t, result.RequestID)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
	assert.Equal(t, pipeline.StateDone, update.State)
	require.NotNil(t, update.Result)
	assert.Equal(t, models.StatusComplete, update.Result.Status)

	key := pipeline.StatusKey(stack.cfg.Status.ChannelPrefix, result.RequestID)
	assert.Equal(t, 60*time.Second, stack.redis.TTL(key))

	// The completion notice fires after the response.
	select {
	case call := <-stack.notifier.calls:
		assert.Equal(t, "jordan@example.com", call.profile.Email)
		assert.Equal(t, models.StatusComplete, call.result.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("completion notifier was not invoked")
	}
}

func TestAngleFailureYieldsPartialResult(t *testing.T) {
	stub := &stubModel{failAngleInstruction: "right profile"}
	stack := newStack(t, stub)

	resp, result := stack.analyze(t, analyzeBody())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusPartial, result.Status)
	assert.Nil(t, result.Error)

	// The failed angle is absent; everything else survives.
	assert.NotEmpty(t, result.GeneratedImages.Front)
	assert.NotEmpty(t, result.GeneratedImages.Left)
	assert.Empty(t, result.GeneratedImages.Right)
	assert.NotEmpty(t, result.GeneratedImages.Back)
	assert.Equal(t, 84, result.FitScore)

	// A partial run still terminates as done.
	statusResp, update := stack.status(t, result.RequestID)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
	assert.Equal(t, pipeline.StateDone, update.State)
}

func TestUnknownUserReturns404(t *testing.T) {
	stub := &stubModel{}
	stack := newStack(t, stub)

	body := analyzeBody()
	body["userId"] = "ghost"

	resp, result := stack.analyze(t, body)

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, "USER_NOT_FOUND", result.Error.Code)

	structured, primary, angles, _ := stub.snapshot()
	assert.Zero(t, structured+primary+angles, "no model calls for an unknown user")
}

func TestModelOutageFailsRun(t *testing.T) {
	stub := &stubModel{failExtract: fmt.Errorf("%w: quota exhausted", genai.ErrInvocationFailed)}
	stack := newStack(t, stub)

	resp, result := stack.analyze(t, analyzeBody())

	// Pipeline failures still answer 200; the body carries the failure.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, "INVOCATION_ERROR", result.Error.Code)
	assert.Equal(t, "extract", result.Error.Stage)
	assert.Empty(t, result.GeneratedImages.Front)

	// Invocation failures are not retried.
	structured, primary, angles, _ := stub.snapshot()
	assert.Equal(t, 1, structured)
	assert.Zero(t, primary+angles)

	statusResp, update := stack.status(t, result.RequestID)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)
	assert.Equal(t, pipeline.StateFailed, update.State)
}
