// internal/server/models.go
package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"stylist-pipeline/internal/common/validation"
)

// analyzeRequest is the wire shape of POST /analyze-and-style. The
// screenshot arrives base64 encoded, bare or as a data URL.
type analyzeRequest struct {
	UserID          string `json:"userId"`
	Credential      string `json:"credential"`
	PageURL         string `json:"pageUrl"`
	PageTitle       string `json:"pageTitle"`
	HTMLContent     string `json:"htmlContent"`
	ScreenshotImage string `json:"screenshotImage,omitempty"`
}

func requestSchema() validation.JSONSchema {
	minOne := 1
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"userId", "credential", "pageUrl"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"userId":          {Type: "string", MinLength: &minOne},
			"credential":      {Type: "string", MinLength: &minOne},
			"pageUrl":         {Type: "string", MinLength: &minOne},
			"pageTitle":       {Type: "string"},
			"htmlContent":     {Type: "string"},
			"screenshotImage": {Type: "string"},
		},
	}
}

// decodeScreenshot accepts a bare base64 string or a data URL and returns
// the image bytes plus their MIME type.
func decodeScreenshot(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", nil
	}

	mimeType := ""
	if strings.HasPrefix(encoded, "data:") {
		meta, rest, found := strings.Cut(encoded[len("data:"):], ",")
		if !found {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		encoded = rest
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode screenshot: %w", err)
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("screenshot is %s, not an image", mimeType)
	}

	return data, mimeType, nil
}
