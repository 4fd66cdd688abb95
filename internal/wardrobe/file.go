// internal/wardrobe/file.go
package wardrobe

import (
	"context"
	"fmt"

	"stylist-pipeline/internal/models"
	"stylist-pipeline/pkg/catalog"
)

// FileProvider serves profiles and wardrobes from a catalog file. The
// catalog is read once at construction; lookups never touch disk.
type FileProvider struct {
	catalog *catalog.WardrobeCatalog
}

func NewFileProvider(path string) (*FileProvider, error) {
	cat, err := catalog.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("load wardrobe catalog: %w", err)
	}
	return &FileProvider{catalog: cat}, nil
}

// NewFileProviderFromCatalog wraps an in-memory catalog, used by local runs
// with the built-in demo data.
func NewFileProviderFromCatalog(cat *catalog.WardrobeCatalog) *FileProvider {
	return &FileProvider{catalog: cat}
}

func (p *FileProvider) FetchProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	entry := p.catalog.FindUser(userID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	return &models.UserProfile{
		UserID:      entry.UserID,
		DisplayName: entry.DisplayName,
		Gender:      entry.Gender,
		HeightCM:    entry.HeightCM,
		WeightKG:    entry.WeightKG,
		SkinTone:    entry.SkinTone,
		StyleNotes:  entry.StyleNotes,
		PhotoRef:    entry.PhotoRef,
		Email:       entry.Email,
		Phone:       entry.Phone,
	}, nil
}

func (p *FileProvider) FetchWardrobe(ctx context.Context, userID string) ([]models.WardrobeItem, error) {
	entry := p.catalog.FindUser(userID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	items := make([]models.WardrobeItem, 0, len(entry.Wardrobe))
	for _, raw := range entry.Wardrobe {
		items = append(items, models.WardrobeItem{
			ID:       raw.ID,
			Name:     raw.Name,
			Category: models.ParseCategory(raw.Category),
			ColorHex: raw.ColorHex,
			ImageRef: raw.ImageRef,
		})
	}
	return items, nil
}
