// internal/common/genai/client.go
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stylist-pipeline/internal/common/config"
	"stylist-pipeline/internal/common/metrics"

	gemini "github.com/google/generative-ai-go/genai"
	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/api/option"
)

var (
	ErrMissingCredential = errors.New("MISSING_CREDENTIAL")
	ErrInvocationFailed  = errors.New("INVOCATION_FAILED")
	ErrInvalidOutput     = errors.New("INVALID_MODEL_OUTPUT")
	ErrNoImageReturned   = errors.New("NO_IMAGE_RETURNED")
	ErrBadReferenceCount = errors.New("BAD_REFERENCE_COUNT")
	ErrUnknownDepth      = errors.New("UNKNOWN_REASONING_DEPTH")
	ErrUnknownCapability = errors.New("UNKNOWN_CAPABILITY")
)

// Logger interface definition
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Service is the only place the repo talks to the model API. Calls are
// single-shot: retry policy lives with the callers. The credential arrives
// on every request and is never cached here.
type Service struct {
	models  config.ModelsConfig
	maxRefs int
	logger  Logger
}

func NewService(models config.ModelsConfig, maxRefs int, log Logger) *Service {
	if maxRefs <= 0 {
		maxRefs = 5
	}
	return &Service{
		models:  models,
		maxRefs: maxRefs,
		logger:  log.With(map[string]interface{}{"component": "genai"}),
	}
}

// GenerateStructured performs one structured-output model call and returns
// the raw JSON document. Schema mismatch reports ErrInvalidOutput; transport
// and service failures report ErrInvocationFailed.
func (s *Service) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return nil, fmt.Errorf("%w: structured call without credential", ErrMissingCredential)
	}

	client, err := gemini.NewClient(ctx, option.WithAPIKey(req.Credential))
	if err != nil {
		metrics.ModelCalls.WithLabelValues("structured", "invocation_error").Inc()
		return nil, fmt.Errorf("%w: create client: %v", ErrInvocationFailed, err)
	}
	defer client.Close()

	modelName, err := s.modelForDepth(req.Depth)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(s.models.Temperature)
	model.SetMaxOutputTokens(maxTokensForDepth(req.Depth))
	model.ResponseMIMEType = "application/json"

	parts := make([]gemini.Part, 0, len(req.Images)+1)
	parts = append(parts, gemini.Text(req.Prompt))
	for _, img := range req.Images {
		parts = append(parts, gemini.ImageData(img.Format, img.Data))
	}

	s.logger.Debug("structured call", map[string]interface{}{
		"model":  modelName,
		"depth":  req.Depth.String(),
		"images": len(req.Images),
	})

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		metrics.ModelCalls.WithLabelValues("structured", "invocation_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvocationFailed, err)
	}

	text := collectText(resp)
	if text == "" {
		metrics.ModelCalls.WithLabelValues("structured", "invalid_output").Inc()
		return nil, fmt.Errorf("%w: empty response", ErrInvalidOutput)
	}

	doc, err := parseStructuredOutput(text, req.Schema)
	if err != nil {
		metrics.ModelCalls.WithLabelValues("structured", "invalid_output").Inc()
		return nil, err
	}

	metrics.ModelCalls.WithLabelValues("structured", "ok").Inc()
	return doc, nil
}

// SynthesizeImage performs one image synthesis call. The model is chosen by
// capability and the reference count is bounded to 1..maxRefs.
func (s *Service) SynthesizeImage(ctx context.Context, req ImageRequest) (*GeneratedImage, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return nil, fmt.Errorf("%w: image call without credential", ErrMissingCredential)
	}
	if len(req.References) == 0 || len(req.References) > s.maxRefs {
		return nil, fmt.Errorf("%w: got %d references, want 1..%d", ErrBadReferenceCount, len(req.References), s.maxRefs)
	}

	capability := req.Capability.String()

	client, err := gemini.NewClient(ctx, option.WithAPIKey(req.Credential))
	if err != nil {
		metrics.ModelCalls.WithLabelValues(capability, "invocation_error").Inc()
		return nil, fmt.Errorf("%w: create client: %v", ErrInvocationFailed, err)
	}
	defer client.Close()

	modelName, err := s.modelForCapability(req.Capability)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(modelName)

	parts := make([]gemini.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		parts = append(parts, gemini.ImageData(ref.Format, ref.Data))
	}
	parts = append(parts, gemini.Text(req.Instruction))

	s.logger.Debug("image call", map[string]interface{}{
		"model":      modelName,
		"capability": capability,
		"references": len(req.References),
	})

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		metrics.ModelCalls.WithLabelValues(capability, "invocation_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvocationFailed, err)
	}

	image := firstImage(resp)
	if image == nil {
		metrics.ModelCalls.WithLabelValues(capability, "no_image").Inc()
		if refusal := collectText(resp); refusal != "" {
			return nil, fmt.Errorf("%w: model answered with text: %.120s", ErrNoImageReturned, refusal)
		}
		return nil, fmt.Errorf("%w: response held no image part", ErrNoImageReturned)
	}

	metrics.ModelCalls.WithLabelValues(capability, "ok").Inc()
	return image, nil
}

func (s *Service) modelForDepth(depth ReasoningDepth) (string, error) {
	switch depth {
	case DepthFast, DepthStandard, DepthThorough:
		return s.models.Structured, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownDepth, int(depth))
	}
}

func (s *Service) modelForCapability(capability Capability) (string, error) {
	switch capability {
	case CapabilityPrimaryTryOn:
		return s.models.PrimaryImage, nil
	case CapabilityAngleVariant:
		return s.models.AngleImage, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownCapability, int(capability))
	}
}

// maxTokensForDepth is how depth shows up on the wire: the hosted API offers
// no direct reasoning knob, so depth widens the output budget instead.
func maxTokensForDepth(depth ReasoningDepth) int32 {
	switch depth {
	case DepthFast:
		return 2048
	case DepthThorough:
		return 8192
	default:
		return 4096
	}
}

// parseStructuredOutput checks the text is a JSON document and, when a
// schema is given, validates it.
func parseStructuredOutput(text string, schema map[string]interface{}) (json.RawMessage, error) {
	trimmed := stripCodeFence(text)

	var probe interface{}
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, fmt.Errorf("%w: not JSON: %v", ErrInvalidOutput, err)
	}

	if len(schema) > 0 {
		schemaLoader := gojsonschema.NewGoLoader(schema)
		documentLoader := gojsonschema.NewStringLoader(trimmed)

		result, err := gojsonschema.Validate(schemaLoader, documentLoader)
		if err != nil {
			return nil, fmt.Errorf("%w: schema check: %v", ErrInvalidOutput, err)
		}
		if !result.Valid() {
			errs := make([]string, len(result.Errors()))
			for i, desc := range result.Errors() {
				errs[i] = desc.String()
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, errs)
		}
	}

	return json.RawMessage(trimmed), nil
}

// stripCodeFence removes a ```json fence the model sometimes wraps around
// its answer even in JSON mode.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func collectText(resp *gemini.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(gemini.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func firstImage(resp *gemini.GenerateContentResponse) *GeneratedImage {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(gemini.Blob); ok && len(blob.Data) > 0 {
				return &GeneratedImage{MIMEType: blob.MIMEType, Data: blob.Data}
			}
		}
	}
	return nil
}
