// internal/models/request.go
package models

// AnalysisRequest is one styling run over a captured shopping page. The
// credential rides on the request and must never outlive it.
type AnalysisRequest struct {
	RequestID        string `json:"requestId"`
	UserID           string `json:"userId"`
	Credential       string `json:"credential"`
	PageURL          string `json:"pageUrl"`
	PageTitle        string `json:"pageTitle"`
	HTMLContent      string `json:"htmlContent"`
	Screenshot       []byte `json:"-"`
	ScreenshotFormat string `json:"-"`
}

// HasScreenshot reports whether the captured page included a screenshot.
func (r *AnalysisRequest) HasScreenshot() bool {
	return len(r.Screenshot) > 0
}
