// internal/models/wardrobe.go
package models

// WardrobeItem is one piece the user already owns.
type WardrobeItem struct {
	ID       string   `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Category Category `json:"category" db:"category"`
	ColorHex string   `json:"colorHex" db:"color_hex"`
	ImageRef string   `json:"imageRef,omitempty" db:"image_ref"`
}

// UserProfile describes the person the outfit is rendered for. PhotoRef is
// an image handle; the resolved photo anchors every try-on rendition.
type UserProfile struct {
	UserID      string   `json:"userId" db:"user_id"`
	DisplayName string   `json:"displayName,omitempty" db:"display_name"`
	Gender      string   `json:"gender,omitempty" db:"gender"`
	HeightCM    int      `json:"heightCm,omitempty" db:"height_cm"`
	WeightKG    int      `json:"weightKg,omitempty" db:"weight_kg"`
	SkinTone    string   `json:"skinTone,omitempty" db:"skin_tone"`
	StyleNotes  []string `json:"styleNotes,omitempty" db:"style_notes"`
	PhotoRef    string   `json:"photoRef,omitempty" db:"photo_ref"`
	// Contact details are only read by the completion notifier.
	Email string `json:"email,omitempty" db:"email"`
	Phone string `json:"phone,omitempty" db:"phone"`
}

// ItemsByID indexes wardrobe items for selection lookups.
func ItemsByID(items []WardrobeItem) map[string]WardrobeItem {
	byID := make(map[string]WardrobeItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return byID
}

// FilterByCategories keeps the items whose category is in the given set,
// preserving order.
func FilterByCategories(items []WardrobeItem, categories []Category) []WardrobeItem {
	allowed := make(map[Category]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}

	var filtered []WardrobeItem
	for _, item := range items {
		if allowed[item.Category] {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
