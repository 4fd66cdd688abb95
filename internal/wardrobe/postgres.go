// internal/wardrobe/postgres.go
package wardrobe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stylist-pipeline/internal/common/database"
	"stylist-pipeline/internal/models"

	"github.com/lib/pq"
)

// PostgresProvider reads profiles and wardrobes from PostgreSQL.
type PostgresProvider struct {
	client *database.PostgresClient
}

func NewPostgresProvider(client *database.PostgresClient) *PostgresProvider {
	return &PostgresProvider{client: client}
}

func (p *PostgresProvider) FetchProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	var styleNotes []string

	err := p.client.QueryRow(ctx, `
		SELECT user_id, display_name, gender, height_cm, weight_kg,
		       skin_tone, style_notes, photo_ref, email, phone
		FROM user_profiles
		WHERE user_id = $1`, userID).Scan(
		&profile.UserID, &profile.DisplayName, &profile.Gender,
		&profile.HeightCM, &profile.WeightKG,
		&profile.SkinTone, pq.Array(&styleNotes), &profile.PhotoRef,
		&profile.Email, &profile.Phone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	profile.StyleNotes = styleNotes
	return &profile, nil
}

func (p *PostgresProvider) FetchWardrobe(ctx context.Context, userID string) ([]models.WardrobeItem, error) {
	rows, err := p.client.Query(ctx, `
		SELECT id, name, category, color_hex, image_ref
		FROM wardrobe_items
		WHERE user_id = $1
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch wardrobe: %w", err)
	}
	defer rows.Close()

	var items []models.WardrobeItem
	for rows.Next() {
		var item models.WardrobeItem
		var category string
		if err := rows.Scan(&item.ID, &item.Name, &category, &item.ColorHex, &item.ImageRef); err != nil {
			return nil, fmt.Errorf("scan wardrobe item: %w", err)
		}
		item.Category = models.ParseCategory(category)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wardrobe: %w", err)
	}

	return items, nil
}
