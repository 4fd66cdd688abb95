// internal/stages/extract-product-info/handler_test.go
package extractproductinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/common/genai"
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

type structuredReply struct {
	doc json.RawMessage
	err error
}

type fakeModel struct {
	calls   []genai.StructuredRequest
	replies []structuredReply
}

func (f *fakeModel) GenerateStructured(ctx context.Context, req genai.StructuredRequest) (json.RawMessage, error) {
	f.calls = append(f.calls, req)
	idx := len(f.calls) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	reply := f.replies[idx]
	return reply.doc, reply.err
}

func testRequest() *models.AnalysisRequest {
	return &models.AnalysisRequest{
		RequestID:   "req-1",
		UserID:      "u-1",
		Credential:  "key-123",
		PageURL:     "https://shop.example.com/p/denim-jacket",
		PageTitle:   "Classic Denim Jacket | Example Shop",
		HTMLContent: `<html><body><h1>Classic Denim Jacket</h1><p>Indigo, 100% cotton</p></body></html>`,
	}
}

func validProductDoc() json.RawMessage {
	return json.RawMessage(`{
		"name": "Classic Denim Jacket",
		"color": "indigo",
		"brand": "Example",
		"price": 89.5,
		"category": "Denim Jacket",
		"material": "cotton",
		"description": "A classic indigo denim jacket."
	}`)
}

func newTestHandler(t *testing.T, model ModelService) *Handler {
	return NewHandler(LoadConfig(), model, NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestExecute_Success(t *testing.T) {
	model := &fakeModel{replies: []structuredReply{{doc: validProductDoc()}}}
	handler := newTestHandler(t, model)

	product, err := handler.Execute(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "Classic Denim Jacket", product.Name)
	assert.Equal(t, "indigo", product.Color)
	assert.Equal(t, "89.5", product.Price)
	assert.Equal(t, models.CategoryOuterwear, product.Category)

	require.Len(t, model.calls, 1)
	call := model.calls[0]
	assert.Equal(t, "key-123", call.Credential)
	assert.Equal(t, genai.DepthFast, call.Depth)
	assert.Empty(t, call.Images)
	assert.Contains(t, call.Prompt, "Classic Denim Jacket | Example Shop")
	assert.NotNil(t, call.Schema)
}

func TestExecute_RetriesOnceOnInvalidOutput(t *testing.T) {
	model := &fakeModel{replies: []structuredReply{
		{err: fmt.Errorf("%w: not JSON", genai.ErrInvalidOutput)},
		{doc: validProductDoc()},
	}}
	handler := newTestHandler(t, model)

	product, err := handler.Execute(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Classic Denim Jacket", product.Name)

	require.Len(t, model.calls, 2)
	assert.NotContains(t, model.calls[0].Prompt, "ONLY the JSON object")
	assert.Contains(t, model.calls[1].Prompt, "ONLY the JSON object")
}

func TestExecute_ValidationFailureAfterRetry(t *testing.T) {
	model := &fakeModel{replies: []structuredReply{
		{err: fmt.Errorf("%w: missing name", genai.ErrInvalidOutput)},
		{err: fmt.Errorf("%w: still missing name", genai.ErrInvalidOutput)},
	}}
	handler := newTestHandler(t, model)

	_, err := handler.Execute(context.Background(), testRequest())
	require.Error(t, err)

	assert.True(t, cerrors.IsValidation(err))
	assert.Len(t, model.calls, 2, "retry budget for validation errors is exactly one")
}

func TestExecute_InvocationErrorEscalatesImmediately(t *testing.T) {
	model := &fakeModel{replies: []structuredReply{
		{err: fmt.Errorf("%w: quota exhausted", genai.ErrInvocationFailed)},
	}}
	handler := newTestHandler(t, model)

	_, err := handler.Execute(context.Background(), testRequest())
	require.Error(t, err)

	assert.True(t, cerrors.IsInvocation(err))
	assert.False(t, cerrors.IsTimeout(err))
	assert.Len(t, model.calls, 1, "invocation errors are never retried")
}

func TestExecute_TimeoutSurfacesAsStageTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeModel{replies: []structuredReply{
		{err: fmt.Errorf("%w: %v", genai.ErrInvocationFailed, context.Canceled)},
	}}
	handler := newTestHandler(t, model)

	_, err := handler.Execute(ctx, testRequest())
	require.Error(t, err)

	assert.True(t, cerrors.IsInvocation(err))
	assert.True(t, cerrors.IsTimeout(err))
}

// ==========================
// Input Shaping Tests
// ==========================

func TestExecute_TruncatesHTML(t *testing.T) {
	cfg := &Config{HTMLMaxChars: 50, Budget: 10 * time.Second}
	model := &fakeModel{replies: []structuredReply{{doc: validProductDoc()}}}
	handler := NewHandler(cfg, model, NewTestLogger(t))

	req := testRequest()
	req.HTMLContent = strings.Repeat("x", 500)

	_, err := handler.Execute(context.Background(), req)
	require.NoError(t, err)

	prompt := model.calls[0].Prompt
	assert.Contains(t, prompt, strings.Repeat("x", 50))
	assert.NotContains(t, prompt, strings.Repeat("x", 51))
}

func TestExecute_AttachesScreenshot(t *testing.T) {
	model := &fakeModel{replies: []structuredReply{{doc: validProductDoc()}}}
	handler := newTestHandler(t, model)

	req := testRequest()
	req.Screenshot = []byte{0x89, 0x50}
	req.ScreenshotFormat = "image/png"

	_, err := handler.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, model.calls[0].Images, 1)
	assert.Equal(t, "png", model.calls[0].Images[0].Format)
	assert.Contains(t, model.calls[0].Prompt, "screenshot")
}

// ==========================
// Decoding Tests
// ==========================

func TestDecodeProduct(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    *models.ProductInfo
		wantErr bool
	}{
		{
			name: "string price",
			doc:  `{"name": " Tee ", "price": "$25", "category": "t-shirt"}`,
			want: &models.ProductInfo{Name: "Tee", Price: "$25", Category: models.CategoryTop},
		},
		{
			name: "integer price",
			doc:  `{"name": "Boots", "price": 120, "category": "boots"}`,
			want: &models.ProductInfo{Name: "Boots", Price: "120", Category: models.CategoryShoes},
		},
		{
			name:    "empty name",
			doc:     `{"name": "   ", "category": "jeans"}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			doc:     `[1, 2, 3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product, err := decodeProduct(json.RawMessage(tt.doc))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, product)
		})
	}
}

func TestTruncateHTML(t *testing.T) {
	assert.Equal(t, "abc", truncateHTML("abc", 10))
	assert.Equal(t, "abcde", truncateHTML("abcdefgh", 5))
	assert.Equal(t, "abcdefgh", truncateHTML("abcdefgh", 0))
}
