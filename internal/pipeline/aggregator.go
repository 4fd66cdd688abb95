// internal/pipeline/aggregator.go
package pipeline

import (
	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/models"
)

// Aggregate folds whatever the stages produced into the response shape.
// Pure function: status is derived from which fields exist, and missing
// fields stay missing rather than being backfilled with placeholders.
func Aggregate(requestID string, product *models.ProductInfo, analysis *models.StylingAnalysis, images models.TryOnImageSet, failure error) *models.AnalysisResult {
	result := &models.AnalysisResult{
		RequestID:       requestID,
		Product:         product,
		SelectedItems:   []models.SelectedItem{},
		GeneratedImages: images,
	}

	if analysis != nil {
		if analysis.SelectedItems != nil {
			result.SelectedItems = analysis.SelectedItems
		}
		result.FitScore = analysis.FitScore
		result.StylingTip = analysis.StylingTip
		result.Conflicts = analysis.Conflicts
	}

	switch {
	case failure != nil:
		result.Status = models.StatusFailed
		result.Error = errorInfo(failure)
	case !images.Has(models.AngleFront):
		// Unreachable when the orchestrator is driving; kept so the
		// derivation never reports complete without a front rendition.
		result.Status = models.StatusFailed
		result.Error = &models.ErrorInfo{
			Code:    string(cerrors.ErrCodeInternal),
			Message: "no front rendition was produced",
		}
	case len(images.MissingSecondary()) > 0:
		result.Status = models.StatusPartial
	default:
		result.Status = models.StatusComplete
	}

	return result
}

func errorInfo(err error) *models.ErrorInfo {
	if se, ok := cerrors.AsStandard(err); ok {
		message := se.Message
		if se.Details != "" {
			message = message + ": " + se.Details
		}
		return &models.ErrorInfo{
			Code:    string(se.Code),
			Stage:   se.Stage,
			Message: message,
		}
	}
	return &models.ErrorInfo{
		Code:    string(cerrors.ErrCodeInternal),
		Message: err.Error(),
	}
}
