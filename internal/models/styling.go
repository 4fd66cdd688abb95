// internal/models/styling.go
package models

// SelectedItem is one wardrobe piece the analysis chose to pair with the
// product, with the reasoning that picked it.
type SelectedItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	ColorHex    string   `json:"colorHex,omitempty"`
	MatchReason string   `json:"matchReason"`
}

// StylingAnalysis scores the product against the user's wardrobe. FitScore
// is always within 0..100 and SelectedItems holds at most one item per
// wardrobe category.
type StylingAnalysis struct {
	FitScore      int            `json:"fitScore"`
	SelectedItems []SelectedItem `json:"selectedItems"`
	StylingTip    string         `json:"stylingTip,omitempty"`
	Conflicts     []string       `json:"conflicts,omitempty"`
}

// ClampFitScore forces a raw model score into 0..100.
func ClampFitScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SelectedCategories returns the set of categories used by the selection.
func (a *StylingAnalysis) SelectedCategories() map[Category]int {
	counts := make(map[Category]int)
	for _, item := range a.SelectedItems {
		counts[item.Category]++
	}
	return counts
}
