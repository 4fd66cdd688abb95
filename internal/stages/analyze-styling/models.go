// internal/stages/analyze-styling/models.go
package analyzestyling

// rawAnalysis is the JSON shape the model is asked for. Selections carry
// only the item id and the reasoning; everything else about an item is
// resolved from the wardrobe, never trusted from the model.
type rawAnalysis struct {
	FitScore      float64        `json:"fitScore"`
	SelectedItems []rawSelection `json:"selectedItems"`
	StylingTip    string         `json:"stylingTip"`
	Conflicts     []string       `json:"conflicts"`
}

type rawSelection struct {
	ID          string `json:"id"`
	MatchReason string `json:"matchReason"`
}

func analysisSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"fitScore", "selectedItems", "stylingTip"},
		"properties": map[string]interface{}{
			"fitScore": map[string]interface{}{"type": "number"},
			"selectedItems": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"id", "matchReason"},
					"properties": map[string]interface{}{
						"id":          map[string]interface{}{"type": "string", "minLength": 1},
						"matchReason": map[string]interface{}{"type": "string", "minLength": 1},
					},
				},
			},
			"stylingTip": map[string]interface{}{"type": "string"},
			"conflicts": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
	}
}
