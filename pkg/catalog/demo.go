// pkg/catalog/demo.go
package catalog

// DefaultCatalog returns the built-in demo wardrobe used by local runs and
// tests when no catalog file is configured.
func DefaultCatalog() *WardrobeCatalog {
	return &WardrobeCatalog{
		Version:     "1.0.0",
		LastUpdated: "2026-08-01",
		Users: []UserEntry{
			{
				UserID:      "demo-user",
				DisplayName: "Demo User",
				HeightCM:    172,
				SkinTone:    "medium",
				StyleNotes:  []string{"casual", "prefers earth tones"},
				PhotoRef:    "https://storage.example.com/users/demo-user/photo.jpg",
				Wardrobe: []ItemEntry{
					{ID: "w-001", Name: "White Oxford Shirt", Category: "top", ColorHex: "#F5F5F0", ImageRef: "https://storage.example.com/wardrobe/w-001.jpg"},
					{ID: "w-002", Name: "Charcoal Crewneck Sweater", Category: "top", ColorHex: "#3B3B3B", ImageRef: "https://storage.example.com/wardrobe/w-002.jpg"},
					{ID: "w-003", Name: "Slim Indigo Jeans", Category: "bottom", ColorHex: "#2C3A57", ImageRef: "https://storage.example.com/wardrobe/w-003.jpg"},
					{ID: "w-004", Name: "Olive Chinos", Category: "bottom", ColorHex: "#6B6B47", ImageRef: "https://storage.example.com/wardrobe/w-004.jpg"},
					{ID: "w-005", Name: "White Leather Sneakers", Category: "shoes", ColorHex: "#FAFAFA", ImageRef: "https://storage.example.com/wardrobe/w-005.jpg"},
					{ID: "w-006", Name: "Brown Leather Belt", Category: "accessory", ColorHex: "#5C4033", ImageRef: "https://storage.example.com/wardrobe/w-006.jpg"},
				},
			},
		},
	}
}
