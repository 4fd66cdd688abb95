// pkg/catalog/schema.go
package catalog

type WardrobeCatalog struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Users       []UserEntry `json:"users"`
}

type UserEntry struct {
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName,omitempty"`
	Gender      string      `json:"gender,omitempty"`
	HeightCM    int         `json:"heightCm,omitempty"`
	WeightKG    int         `json:"weightKg,omitempty"`
	SkinTone    string      `json:"skinTone,omitempty"`
	StyleNotes  []string    `json:"styleNotes,omitempty"`
	PhotoRef    string      `json:"photoRef,omitempty"`
	Email       string      `json:"email,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Wardrobe    []ItemEntry `json:"wardrobe"`
}

type ItemEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	ColorHex string `json:"colorHex"`
	ImageRef string `json:"imageRef,omitempty"`
}

// FindUser returns the entry for a user id, nil when absent.
func (c *WardrobeCatalog) FindUser(userID string) *UserEntry {
	for i := range c.Users {
		if c.Users[i].UserID == userID {
			return &c.Users[i]
		}
	}
	return nil
}
