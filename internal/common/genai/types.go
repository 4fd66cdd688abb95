// internal/common/genai/types.go
package genai

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ReasoningDepth selects how much latitude the structured model gets for a
// call. It is a closed set: dispatch over it must be exhaustive.
type ReasoningDepth int

const (
	DepthFast ReasoningDepth = iota
	DepthStandard
	DepthThorough
)

func (d ReasoningDepth) String() string {
	switch d {
	case DepthFast:
		return "fast"
	case DepthStandard:
		return "standard"
	case DepthThorough:
		return "thorough"
	default:
		return fmt.Sprintf("ReasoningDepth(%d)", int(d))
	}
}

// Capability selects the image model class for a synthesis call. Closed set,
// same rule as ReasoningDepth.
type Capability int

const (
	CapabilityPrimaryTryOn Capability = iota
	CapabilityAngleVariant
)

func (c Capability) String() string {
	switch c {
	case CapabilityPrimaryTryOn:
		return "primary_tryon"
	case CapabilityAngleVariant:
		return "angle_variant"
	default:
		return fmt.Sprintf("Capability(%d)", int(c))
	}
}

// ImagePart is one inline image handed to a model call. Format is the
// subtype the SDK expects ("jpeg", "png"), not a full MIME type.
type ImagePart struct {
	Format string
	Data   []byte
}

// NormalizeFormat reduces a MIME type like "image/png" to the bare subtype.
func NormalizeFormat(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
	if format == "" {
		return "jpeg"
	}
	return format
}

// StructuredRequest asks the structured model for a JSON document. When
// Schema is set the response is validated against it before being returned.
type StructuredRequest struct {
	Credential string
	Depth      ReasoningDepth
	Prompt     string
	Images     []ImagePart
	Schema     map[string]interface{}
}

// ImageRequest asks an image model for a single synthesized image guided by
// an instruction and 1..MaxReferences reference images.
type ImageRequest struct {
	Credential  string
	Capability  Capability
	Instruction string
	References  []ImagePart
}

// GeneratedImage is the inline result of an image synthesis call.
type GeneratedImage struct {
	MIMEType string
	Data     []byte
}

// DataURL renders the image as a data: URL for transport in JSON responses.
func (g *GeneratedImage) DataURL() string {
	mime := g.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(g.Data)
}
