// internal/models/result.go
package models

// ResultStatus is the terminal state of a styling run. Closed set.
type ResultStatus string

const (
	StatusComplete ResultStatus = "complete"
	StatusPartial  ResultStatus = "partial"
	StatusFailed   ResultStatus = "failed"
)

// Angle names one rendition viewpoint. Front is the primary rendition; the
// other three are fan-out variants derived from it.
type Angle string

const (
	AngleFront Angle = "front"
	AngleLeft  Angle = "left"
	AngleRight Angle = "right"
	AngleBack  Angle = "back"
)

// SecondaryAngles are the fan-out viewpoints, in response order.
func SecondaryAngles() []Angle {
	return []Angle{AngleLeft, AngleRight, AngleBack}
}

// TryOnImageSet carries the rendered images as data URLs. An empty string
// means the angle is absent, never a placeholder.
type TryOnImageSet struct {
	Front string `json:"front,omitempty"`
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
	Back  string `json:"back,omitempty"`
}

// Get returns the image for an angle, empty when absent.
func (s TryOnImageSet) Get(angle Angle) string {
	switch angle {
	case AngleFront:
		return s.Front
	case AngleLeft:
		return s.Left
	case AngleRight:
		return s.Right
	case AngleBack:
		return s.Back
	default:
		return ""
	}
}

// Set stores the image for an angle. Unknown angles are dropped.
func (s *TryOnImageSet) Set(angle Angle, dataURL string) {
	switch angle {
	case AngleFront:
		s.Front = dataURL
	case AngleLeft:
		s.Left = dataURL
	case AngleRight:
		s.Right = dataURL
	case AngleBack:
		s.Back = dataURL
	}
}

// Has reports whether the angle rendered.
func (s TryOnImageSet) Has(angle Angle) bool {
	return s.Get(angle) != ""
}

// MissingSecondary lists the fan-out angles that did not render.
func (s TryOnImageSet) MissingSecondary() []Angle {
	var missing []Angle
	for _, angle := range SecondaryAngles() {
		if !s.Has(angle) {
			missing = append(missing, angle)
		}
	}
	return missing
}

// ErrorInfo is the error block of a failed result.
type ErrorInfo struct {
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// AnalysisResult is the aggregate answer for one styling run and the wire
// shape of the API response. Status invariants: complete means the front
// rendition exists, partial means product, fitScore and front exist while
// at least one angle is absent, failed means Error is set.
type AnalysisResult struct {
	RequestID       string         `json:"requestId"`
	Product         *ProductInfo   `json:"product,omitempty"`
	SelectedItems   []SelectedItem `json:"selectedItems"`
	FitScore        int            `json:"fitScore"`
	StylingTip      string         `json:"stylingTip,omitempty"`
	Conflicts       []string       `json:"conflicts,omitempty"`
	GeneratedImages TryOnImageSet  `json:"generatedImages"`
	Status          ResultStatus   `json:"status"`
	Error           *ErrorInfo     `json:"error,omitempty"`
}
