// internal/stages/generate-tryon-images/handler_test.go
package generatetryonimages

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/common/genai"
	"stylist-pipeline/internal/imagestore"
	"stylist-pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Doubles
// ==========================

type TestLogger struct {
	t testing.TB
}

func NewTestLogger(t testing.TB) *TestLogger { return &TestLogger{t: t} }

func (l *TestLogger) Info(msg string, fields map[string]interface{})  { l.t.Logf("INFO: %s %v", msg, fields) }
func (l *TestLogger) Warn(msg string, fields map[string]interface{})  { l.t.Logf("WARN: %s %v", msg, fields) }
func (l *TestLogger) Error(msg string, fields map[string]interface{}) { l.t.Logf("ERROR: %s %v", msg, fields) }
func (l *TestLogger) With(fields map[string]interface{}) Logger       { return l }

// fakeImageModel is safe for the concurrent angle fan-out.
type fakeImageModel struct {
	mu    sync.Mutex
	calls []genai.ImageRequest
	reply func(req genai.ImageRequest) (*genai.GeneratedImage, error)
}

func (f *fakeImageModel) SynthesizeImage(ctx context.Context, req genai.ImageRequest) (*genai.GeneratedImage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.reply != nil {
		return f.reply(req)
	}
	return &genai.GeneratedImage{MIMEType: "image/png", Data: []byte("rendered")}, nil
}

func (f *fakeImageModel) snapshot() []genai.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]genai.ImageRequest(nil), f.calls...)
}

type fakeResolver struct {
	images map[string]*imagestore.ResolvedImage
	errs   map[string]error
}

func (f *fakeResolver) Resolve(ctx context.Context, handle string) (*imagestore.ResolvedImage, error) {
	if err, ok := f.errs[handle]; ok {
		return nil, err
	}
	if img, ok := f.images[handle]; ok {
		return img, nil
	}
	return nil, fmt.Errorf("%w: %s", imagestore.ErrFetchFailed, handle)
}

func resolvedPNG(tag string) *imagestore.ResolvedImage {
	return &imagestore.ResolvedImage{Data: []byte(tag), MIMEType: "image/png"}
}

func testInput() *Input {
	return &Input{
		Request: &models.AnalysisRequest{
			RequestID:        "req-1",
			UserID:           "u-1",
			Credential:       "key-123",
			Screenshot:       []byte("page-capture"),
			ScreenshotFormat: "image/jpeg",
		},
		Product: &models.ProductInfo{
			Name:     "Denim Jacket",
			Color:    "indigo",
			Brand:    "Acme",
			Category: models.CategoryOuterwear,
		},
		Profile: &models.UserProfile{UserID: "u-1", PhotoRef: "s3://wardrobe/u-1/photo.png"},
		Analysis: &models.StylingAnalysis{
			FitScore: 80,
			SelectedItems: []models.SelectedItem{
				{ID: "w-003", Name: "Slim Indigo Jeans", Category: models.CategoryBottom},
				{ID: "w-005", Name: "White Sneakers", Category: models.CategoryShoes},
			},
		},
		Wardrobe: []models.WardrobeItem{
			{ID: "w-003", Name: "Slim Indigo Jeans", Category: models.CategoryBottom, ImageRef: "s3://wardrobe/u-1/w-003.png"},
			{ID: "w-005", Name: "White Sneakers", Category: models.CategoryShoes, ImageRef: "s3://wardrobe/u-1/w-005.png"},
		},
	}
}

func testResolver() *fakeResolver {
	return &fakeResolver{images: map[string]*imagestore.ResolvedImage{
		"s3://wardrobe/u-1/photo.png": resolvedPNG("user-photo"),
		"s3://wardrobe/u-1/w-003.png": resolvedPNG("jeans"),
		"s3://wardrobe/u-1/w-005.png": resolvedPNG("sneakers"),
	}}
}

func newTestHandler(t *testing.T, model ModelService, resolver ImageResolver) *Handler {
	return NewHandler(LoadConfig(), model, resolver, NewTestLogger(t))
}

// ==========================
// Primary Rendition Tests
// ==========================

func TestGeneratePrimary_Success(t *testing.T) {
	model := &fakeImageModel{}
	handler := newTestHandler(t, model, testResolver())

	image, err := handler.GeneratePrimary(context.Background(), testInput())
	require.NoError(t, err)
	require.NotNil(t, image)

	calls := model.snapshot()
	require.Len(t, calls, 1)
	call := calls[0]

	assert.Equal(t, "key-123", call.Credential)
	assert.Equal(t, genai.CapabilityPrimaryTryOn, call.Capability)

	// User photo first, page capture second, wardrobe pieces after.
	require.Len(t, call.References, 4)
	assert.Equal(t, []byte("user-photo"), call.References[0].Data)
	assert.Equal(t, "png", call.References[0].Format)
	assert.Equal(t, []byte("page-capture"), call.References[1].Data)
	assert.Equal(t, "jpeg", call.References[1].Format)
	assert.Equal(t, []byte("jeans"), call.References[2].Data)
	assert.Equal(t, []byte("sneakers"), call.References[3].Data)

	assert.Contains(t, call.Instruction, "Denim Jacket")
	assert.Contains(t, call.Instruction, "Slim Indigo Jeans")
	assert.Contains(t, call.Instruction, "front-view")
}

func TestGeneratePrimary_NoScreenshot(t *testing.T) {
	model := &fakeImageModel{}
	handler := newTestHandler(t, model, testResolver())

	input := testInput()
	input.Request.Screenshot = nil

	_, err := handler.GeneratePrimary(context.Background(), input)
	require.NoError(t, err)

	calls := model.snapshot()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].References, 3)
	assert.Equal(t, []byte("user-photo"), calls[0].References[0].Data)
	assert.Equal(t, []byte("jeans"), calls[0].References[1].Data)
}

func TestGeneratePrimary_CapsWardrobeReferences(t *testing.T) {
	resolver := testResolver()
	input := testInput()

	// Four selections with images; only three may ride along, keeping the
	// total at the five-reference cap.
	input.Analysis.SelectedItems = nil
	input.Wardrobe = nil
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("w-%03d", i)
		ref := fmt.Sprintf("s3://wardrobe/u-1/%s.png", id)
		input.Analysis.SelectedItems = append(input.Analysis.SelectedItems,
			models.SelectedItem{ID: id, Name: id, Category: models.CategoryAccessory})
		input.Wardrobe = append(input.Wardrobe,
			models.WardrobeItem{ID: id, Name: id, Category: models.CategoryAccessory, ImageRef: ref})
		resolver.images[ref] = resolvedPNG(id)
	}

	model := &fakeImageModel{}
	handler := newTestHandler(t, model, resolver)

	_, err := handler.GeneratePrimary(context.Background(), input)
	require.NoError(t, err)

	calls := model.snapshot()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].References, 5)
}

func TestGeneratePrimary_SkipsUnresolvableWardrobeImage(t *testing.T) {
	resolver := testResolver()
	resolver.errs = map[string]error{
		"s3://wardrobe/u-1/w-003.png": fmt.Errorf("%w: gone", imagestore.ErrFetchFailed),
	}

	model := &fakeImageModel{}
	handler := newTestHandler(t, model, resolver)

	_, err := handler.GeneratePrimary(context.Background(), testInput())
	require.NoError(t, err)

	calls := model.snapshot()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].References, 3)
	assert.Equal(t, []byte("sneakers"), calls[0].References[2].Data)
}

func TestGeneratePrimary_UserPhotoFailureIsTerminal(t *testing.T) {
	resolver := testResolver()
	resolver.errs = map[string]error{
		"s3://wardrobe/u-1/photo.png": fmt.Errorf("%w: denied", imagestore.ErrFetchFailed),
	}

	model := &fakeImageModel{}
	handler := newTestHandler(t, model, resolver)

	_, err := handler.GeneratePrimary(context.Background(), testInput())
	require.Error(t, err)

	se, ok := cerrors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, cerrors.ErrCodeProvider, se.Code)
	assert.Empty(t, model.snapshot(), "model must not be invoked without the user photo")
}

func TestGeneratePrimary_InvocationErrorIsTerminal(t *testing.T) {
	model := &fakeImageModel{reply: func(genai.ImageRequest) (*genai.GeneratedImage, error) {
		return nil, fmt.Errorf("%w: model declined", genai.ErrNoImageReturned)
	}}
	handler := newTestHandler(t, model, testResolver())

	_, err := handler.GeneratePrimary(context.Background(), testInput())
	require.Error(t, err)
	assert.True(t, cerrors.IsInvocation(err))
	assert.Len(t, model.snapshot(), 1)
}

func TestGeneratePrimary_TimeoutSurfacesAsStageTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeImageModel{reply: func(genai.ImageRequest) (*genai.GeneratedImage, error) {
		return nil, fmt.Errorf("%w: %v", genai.ErrInvocationFailed, context.Canceled)
	}}
	handler := newTestHandler(t, model, testResolver())

	_, err := handler.GeneratePrimary(ctx, testInput())
	require.Error(t, err)
	assert.True(t, cerrors.IsTimeout(err))
}

// ==========================
// Angle Fan-Out Tests
// ==========================

func primaryImage() *genai.GeneratedImage {
	return &genai.GeneratedImage{MIMEType: "image/png", Data: []byte("front-view")}
}

func TestGenerateAngles_AllSucceed(t *testing.T) {
	model := &fakeImageModel{}
	handler := newTestHandler(t, model, testResolver())

	images := handler.GenerateAngles(context.Background(), "key-123", primaryImage())

	assert.Equal(t, primaryImage().DataURL(), images.Front)
	for _, angle := range models.SecondaryAngles() {
		assert.True(t, images.Has(angle), "angle %s missing", angle)
	}
	assert.Empty(t, images.MissingSecondary())

	calls := model.snapshot()
	require.Len(t, calls, 3)

	views := make(map[string]bool)
	for _, call := range calls {
		assert.Equal(t, "key-123", call.Credential)
		assert.Equal(t, genai.CapabilityAngleVariant, call.Capability)
		require.Len(t, call.References, 1, "angle calls take the primary as sole reference")
		assert.Equal(t, []byte("front-view"), call.References[0].Data)

		for _, view := range []string{"left profile", "right profile", "back view"} {
			if strings.Contains(call.Instruction, view) {
				views[view] = true
			}
		}
	}
	assert.Len(t, views, 3, "each directional instruction dispatched once")
}

func TestGenerateAngles_OneFailureIsIsolated(t *testing.T) {
	model := &fakeImageModel{reply: func(req genai.ImageRequest) (*genai.GeneratedImage, error) {
		if strings.Contains(req.Instruction, "right profile") {
			return nil, fmt.Errorf("%w: quota", genai.ErrInvocationFailed)
		}
		return &genai.GeneratedImage{MIMEType: "image/png", Data: []byte("rendered")}, nil
	}}
	handler := newTestHandler(t, model, testResolver())

	images := handler.GenerateAngles(context.Background(), "key-123", primaryImage())

	assert.True(t, images.Has(models.AngleFront))
	assert.True(t, images.Has(models.AngleLeft))
	assert.True(t, images.Has(models.AngleBack))
	assert.False(t, images.Has(models.AngleRight))
	assert.Equal(t, []models.Angle{models.AngleRight}, images.MissingSecondary())

	assert.Len(t, model.snapshot(), 3, "one failure must not cancel the siblings")
}

func TestGenerateAngles_TimeoutOnOneAngleYieldsTheOtherTwo(t *testing.T) {
	model := &fakeImageModel{reply: func(req genai.ImageRequest) (*genai.GeneratedImage, error) {
		if strings.Contains(req.Instruction, "right profile") {
			// Outlive the per-angle budget; the deadline must cut this off.
			time.Sleep(150 * time.Millisecond)
			return nil, fmt.Errorf("%w: %v", genai.ErrInvocationFailed, context.DeadlineExceeded)
		}
		return &genai.GeneratedImage{MIMEType: "image/png", Data: []byte("rendered")}, nil
	}}

	cfg := &Config{PrimaryBudget: time.Second, AngleBudget: 30 * time.Millisecond, MaxWardrobeRefs: 3}
	handler := NewHandler(cfg, model, testResolver(), NewTestLogger(t))

	images := handler.GenerateAngles(context.Background(), "key-123", primaryImage())

	assert.True(t, images.Has(models.AngleLeft))
	assert.True(t, images.Has(models.AngleBack))
	assert.False(t, images.Has(models.AngleRight))
	assert.Equal(t, []models.Angle{models.AngleRight}, images.MissingSecondary())
}

func TestGenerateAngles_AllFailuresLeaveFrontOnly(t *testing.T) {
	model := &fakeImageModel{reply: func(genai.ImageRequest) (*genai.GeneratedImage, error) {
		return nil, fmt.Errorf("%w: outage", genai.ErrInvocationFailed)
	}}
	handler := newTestHandler(t, model, testResolver())

	images := handler.GenerateAngles(context.Background(), "key-123", primaryImage())

	assert.True(t, images.Has(models.AngleFront))
	assert.Len(t, images.MissingSecondary(), 3)
}

// ==========================
// Instruction Tests
// ==========================

func TestAngleInstruction(t *testing.T) {
	assert.Contains(t, angleInstruction(models.AngleLeft), "left profile")
	assert.Contains(t, angleInstruction(models.AngleRight), "right profile")
	assert.Contains(t, angleInstruction(models.AngleBack), "back view")
}
