// internal/wardrobe/provider.go
package wardrobe

import (
	"context"
	"errors"

	"stylist-pipeline/internal/models"
)

var ErrUserNotFound = errors.New("USER_NOT_FOUND")

// Provider answers profile and wardrobe lookups for a user id. Both calls
// report ErrUserNotFound for unknown users; an empty wardrobe is a valid
// answer, not an error.
type Provider interface {
	FetchProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	FetchWardrobe(ctx context.Context, userID string) ([]models.WardrobeItem, error)
}
